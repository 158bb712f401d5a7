// Command sealctl seals, opens and purges protected values on the primary
// host and runs the legacy-format migration.
//
//	sealctl [-a custodian] [-b backend] [-d dsn] [command args...]
//
// Without a command it starts an interactive session.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/saltkeeper/internal/client/cli"
	"github.com/dmitrijs2005/saltkeeper/internal/client/config"
	"github.com/dmitrijs2005/saltkeeper/internal/flagx"
	"github.com/dmitrijs2005/saltkeeper/internal/logging"
)

func main() {
	cfg := config.LoadConfig()
	logger := logging.New(os.Stderr, "text", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.Build(ctx, cfg, logger, os.Stdin, os.Stdout)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}

	err = app.Run(ctx, flagx.Positional(os.Args[1:]))
	if cerr := app.Close(); cerr != nil {
		logger.Warn(ctx, "close failed", "error", cerr)
	}
	if err != nil {
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
