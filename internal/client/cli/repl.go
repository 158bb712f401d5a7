package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
)

// errUnknownCommand is returned by dispatch for anything it does not know.
var errUnknownCommand = errors.New("unknown command")

// commander is the command surface dispatch needs. App satisfies it; tests
// use a recording stub.
type commander interface {
	Seal(ctx context.Context, args []string) error
	Open(ctx context.Context, args []string) error
	Purge(ctx context.Context, args []string) error
	Migrate(ctx context.Context) error
	Verify(ctx context.Context) error
	Health(ctx context.Context) error
	Watch(ctx context.Context) error
	Stats(ctx context.Context) error
	Cleanup(ctx context.Context) error
	Rotate(ctx context.Context) error
}

const helpText = "Available commands: seal, open, purge, migrate, verify, health, watch, stats, cleanup, rotate, exit"

// dispatch runs one command. quit is true for exit/quit. In the REPL the
// health watcher already runs in the background, so watch only reports that.
func dispatch(ctx context.Context, a commander, args []string, interactive bool, w io.Writer) (quit bool, err error) {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(w, helpText)
	case "seal":
		err = a.Seal(ctx, rest)
	case "open", "get":
		err = a.Open(ctx, rest)
	case "purge":
		err = a.Purge(ctx, rest)
	case "migrate":
		err = a.Migrate(ctx)
	case "verify":
		err = a.Verify(ctx)
	case "health":
		err = a.Health(ctx)
	case "watch":
		if interactive {
			fmt.Fprintln(w, "the health watcher is running in the background")
			return false, nil
		}
		err = a.Watch(ctx)
	case "stats":
		err = a.Stats(ctx)
	case "cleanup":
		err = a.Cleanup(ctx)
	case "rotate":
		err = a.Rotate(ctx)
	case "exit", "quit":
		if interactive {
			fmt.Fprintln(w, "Bye!")
		}
		return true, nil
	default:
		fmt.Fprintln(w, "Unknown command:", cmd)
		return false, reportedError{fmt.Errorf("%w: %s", errUnknownCommand, cmd)}
	}
	return false, err
}

// runREPL reads commands from reader until EOF or exit. Command errors are
// printed unless already reported, and the loop goes on.
func runREPL(ctx context.Context, a commander, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(w, "sealctl %s> ", statusFn())

		line, err := reader.ReadString('\n')
		parts := strings.Fields(line)
		if len(parts) > 0 {
			quit, cmdErr := dispatch(ctx, a, parts, true, w)
			if quit {
				return
			}
			if cmdErr != nil && !Reported(cmdErr) {
				fmt.Fprintf(w, "error (%s): %v\n", common.KindOf(cmdErr), cmdErr)
			}
		}
		if err != nil {
			return
		}
	}
}
