package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/records"
)

// reportedError marks an error the user has already been told about.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// Reported tells whether err was already shown to the user.
func Reported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

const keyUsage = "<namespace> <primary> <secondary>"

func parseKey(args []string) (records.LogicalKey, error) {
	if len(args) != 3 {
		return records.LogicalKey{}, fmt.Errorf("expected %s: %w", keyUsage, common.ErrorValidation)
	}
	return records.LogicalKey{Namespace: args[0], Primary: args[1], Secondary: args[2]}, nil
}

// Seal stores a value. Text after the key is the value; without it the
// value is read as multiline input.
func (a *App) Seal(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: seal %s [text]: %w", keyUsage, common.ErrorValidation)
	}
	key, err := parseKey(args[:3])
	if err != nil {
		return err
	}

	text := strings.Join(args[3:], " ")
	if text == "" {
		text, err = GetMultiline(a.reader, "Value", a.out)
		if err != nil {
			return err
		}
	}

	stored, err := a.sealer.Seal(ctx, key, []byte(text))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "sealed %s (salt %s)\n", key, *stored.SaltRef)
	return nil
}

// Open prints the plaintext, or the public failure message.
func (a *App) Open(ctx context.Context, args []string) error {
	key, err := parseKey(args)
	if err != nil {
		return err
	}

	pt, err := a.sealer.Open(ctx, key)
	if err != nil {
		fmt.Fprintln(a.out, common.PublicMessage(err))
		return reportedError{err}
	}
	defer common.WipeByteArray(pt)

	fmt.Fprintln(a.out, string(pt))
	return nil
}

func (a *App) Purge(ctx context.Context, args []string) error {
	key, err := parseKey(args)
	if err != nil {
		return err
	}
	if err := a.sealer.Purge(ctx, key); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "purged %s\n", key)
	return nil
}

func (a *App) Migrate(ctx context.Context) error {
	r, err := a.migrator.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "migrated %d, skipped %d, failed %d, remaining %d\n", r.Migrated, r.Skipped, r.Failed, r.Remaining)
	return nil
}

// Verify reports whether any legacy rows are left.
func (a *App) Verify(ctx context.Context) error {
	n, err := a.migrator.Verify(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(a.out, "migration complete: no legacy rows")
		return nil
	}
	fmt.Fprintf(a.out, "%d legacy rows remaining\n", n)
	return nil
}

func (a *App) Health(ctx context.Context) error {
	if err := a.watcher.Check(ctx); err != nil {
		fmt.Fprintf(a.out, "custodian unavailable (%d consecutive failures)\n", a.watcher.Status().ConsecutiveFailures)
		return err
	}
	fmt.Fprintln(a.out, "custodian ok")
	return nil
}

// Watch runs the health watcher until ctx ends.
func (a *App) Watch(ctx context.Context) error {
	fmt.Fprintln(a.out, "watching custodian health, interrupt to stop")
	a.watcher.Run(ctx)
	return nil
}

func (a *App) Stats(ctx context.Context) error {
	stats, err := a.custodian.Stats(ctx)
	if err != nil {
		return err
	}
	purposes := make([]string, 0, len(stats))
	for p := range stats {
		purposes = append(purposes, p)
	}
	sort.Strings(purposes)
	for _, p := range purposes {
		fmt.Fprintf(a.out, "%s\t%d\n", p, stats[p])
	}
	return nil
}

func (a *App) Cleanup(ctx context.Context) error {
	n, err := a.custodian.Cleanup(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %d expired salts\n", n)
	return nil
}

// Rotate swaps in a new local key read from the terminal.
func (a *App) Rotate(ctx context.Context) error {
	km, err := loadKey("", a.out)
	if err != nil {
		return err
	}
	old := a.keys.Rotate(km)

	from := "none"
	if old != nil {
		from = old.Fingerprint()
	}
	a.logger.Info(ctx, "local key rotated", "from", from, "to", km.Fingerprint())
	fmt.Fprintf(a.out, "key rotated: %s -> %s\n", from, km.Fingerprint())
	return nil
}
