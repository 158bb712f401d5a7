// Command custodian runs the salt custodian service.
//
//	custodian [-a addr] [-g grpc-addr] [-d dsn] [-s secret] ...
//	custodian token -client <name> [-s secret] [-t hours]
//
// The token subcommand prints a bearer credential for the primary store
// and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/saltkeeper/internal/flagx"
	"github.com/dmitrijs2005/saltkeeper/internal/logging"
	"github.com/dmitrijs2005/saltkeeper/internal/server"
	"github.com/dmitrijs2005/saltkeeper/internal/server/auth"
	"github.com/dmitrijs2005/saltkeeper/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()

	if pos := flagx.Positional(os.Args[1:]); len(pos) > 0 && pos[0] == "token" {
		if err := runToken(os.Stdout, cfg, os.Args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return
	}

	ctx := context.Background()
	logger := logging.New(os.Stdout, "json", cfg.LogLevel)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "custodian failed", "error", err)
		os.Exit(1)
	}
}

// runToken mints a token for -client with the configured secret and
// validity.
func runToken(w io.Writer, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	clientID := fs.String("client", "", "client name recorded in the token")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-client", "--client"})); err != nil {
		return err
	}

	tok, err := auth.GenerateToken(*clientID, []byte(cfg.SecretKey), cfg.TokenValidityDuration)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}

	_, err = fmt.Fprintln(w, tok)
	return err
}
