// Package server assembles the custodian: storage, the salt service, the
// REST and optional gRPC transports and the expiry sweeper.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/logging"
	"github.com/dmitrijs2005/saltkeeper/internal/server/config"
	gs "github.com/dmitrijs2005/saltkeeper/internal/server/grpc"
	"github.com/dmitrijs2005/saltkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/saltkeeper/internal/server/repositories/salts"
	"github.com/dmitrijs2005/saltkeeper/internal/server/rest"
	"github.com/dmitrijs2005/saltkeeper/internal/server/services"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	saltService *services.SaltService
}

// openRepository is a seam for tests.
var openRepository = func(ctx context.Context, c *config.Config) (salts.Repository, *sql.DB, error) {
	if c.DatabaseDSN == config.MemoryDSN {
		return salts.NewMemoryRepository(), nil, nil
	}

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}

	return m.Salts(db), db, nil
}

// checkSecret rejects a missing token secret, and the development one unless
// salts live in memory only.
func checkSecret(ctx context.Context, c *config.Config, logger logging.Logger) error {
	switch {
	case c.SecretKey == "":
		return fmt.Errorf("token secret is not set: %w", common.ErrorValidation)
	case c.SecretKey != config.DevSecretKey:
		return nil
	case c.DatabaseDSN == config.MemoryDSN:
		logger.Warn(ctx, "using the development token secret")
		return nil
	default:
		return fmt.Errorf("token secret is the development default: %w", common.ErrorValidation)
	}
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := checkSecret(ctx, c, logger); err != nil {
		return nil, err
	}

	repo, db, err := openRepository(ctx, c)
	if err != nil {
		return nil, err
	}

	if c.DatabaseDSN == config.MemoryDSN {
		logger.Warn(ctx, "using in-memory salt storage, salts will not survive a restart")
	}

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		saltService: services.NewSaltService(repo, logger.With("module", "salts"), c),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is canceled, a signal arrives or a transport fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting custodian...")
	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rest.NewServer(app.config, app.saltService, app.logger.With("module", "rest")).Run(ctx)
	})

	if app.config.EndpointAddrGRPC != "" {
		g.Go(func() error {
			return gs.NewGRPCServer(app.config, app.logger, app.saltService).Run(ctx)
		})
	}

	g.Go(func() error {
		services.NewSweeper(app.saltService, app.config.CleanupInterval, app.logger.With("module", "sweeper")).Run(ctx)
		return nil
	})

	err := g.Wait()

	if app.db != nil {
		if cerr := app.db.Close(); cerr != nil {
			app.logger.Error(context.Background(), "closing database", "error", cerr)
		}
	}

	app.logger.Info(context.Background(), "Custodian stopped")
	return err
}
