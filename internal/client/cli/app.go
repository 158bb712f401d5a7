package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/saltkeeper/internal/client/config"
	"github.com/dmitrijs2005/saltkeeper/internal/client/custodian"
	"github.com/dmitrijs2005/saltkeeper/internal/client/repositories/responses"
	"github.com/dmitrijs2005/saltkeeper/internal/client/services"
	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/cryptox"
	"github.com/dmitrijs2005/saltkeeper/internal/keymaterial"
	"github.com/dmitrijs2005/saltkeeper/internal/logging"
)

// App holds everything the commands need.
type App struct {
	keys      *keymaterial.Holder
	sealer    *services.Sealer
	migrator  *services.Migrator
	custodian custodian.Client
	watcher   *services.HealthWatcher
	logger    logging.Logger

	reader  *bufio.Reader
	out     io.Writer
	closers []func() error
}

// Deps are the collaborators of an App. Build fills them from configuration;
// tests construct them directly.
type Deps struct {
	Keys      *keymaterial.Holder
	Sealer    *services.Sealer
	Migrator  *services.Migrator
	Custodian custodian.Client
	Watcher   *services.HealthWatcher
	Logger    logging.Logger
	In        io.Reader
	Out       io.Writer
}

func NewApp(d Deps) *App {
	return &App{
		keys:      d.Keys,
		sealer:    d.Sealer,
		migrator:  d.Migrator,
		custodian: d.Custodian,
		watcher:   d.Watcher,
		logger:    d.Logger,
		reader:    bufio.NewReader(d.In),
		out:       d.Out,
	}
}

// Build wires an App from cfg. The local key comes from cfg or, when unset,
// from a no-echo terminal prompt.
func Build(ctx context.Context, cfg *config.Config, logger logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	km, err := loadKey(cfg.LocalKeyHex, out)
	if err != nil {
		return nil, err
	}

	client, err := custodian.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("custodian client: %w", err)
	}

	repo, closeRepo, err := responses.Open(ctx, cfg)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("response store: %w", err)
	}

	var opts []services.SealerOption
	if cfg.SaltExpiryDays > 0 {
		opts = append(opts, services.WithSaltExpiry(cfg.SaltExpiryDays))
	}

	keys := keymaterial.NewHolder(km)
	deriver := cryptox.NewDeriver(cryptox.WithIterations(cfg.KDFIterations))
	sealer := services.NewSealer(keys, client, repo, deriver, logger, opts...)

	app := NewApp(Deps{
		Keys:      keys,
		Sealer:    sealer,
		Migrator:  services.NewMigrator(sealer, repo, cfg.MigrationBatchSize, logger),
		Custodian: client,
		Watcher:   services.NewHealthWatcher(client, cfg.HealthCheckInterval, cfg.AlertThreshold, logger),
		Logger:    logger,
		In:        in,
		Out:       out,
	})
	app.closers = append(app.closers, closeRepo, client.Close)
	return app, nil
}

func loadKey(hexKey string, w io.Writer) (*keymaterial.KeyMaterial, error) {
	if hexKey != "" {
		return keymaterial.FromHex(hexKey)
	}

	b, err := GetSecret(w, "Local key (64 hex characters)")
	if err != nil {
		return nil, fmt.Errorf("read local key: %w", err)
	}
	defer common.WipeByteArray(b)

	return keymaterial.FromHex(strings.TrimSpace(string(b)))
}

// Close releases the store and the custodian connection.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Run executes args as one command, or starts the REPL when args is empty.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.Root(ctx)
		return nil
	}
	_, err := dispatch(ctx, a, args, false, a.out)
	return err
}

// Root runs the interactive loop with the health watcher in the background.
func (a *App) Root(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.watcher.Run(ctx)

	fmt.Fprintln(a.out, "sealctl (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader, a.out)
}

func (a *App) status() string {
	s := ""
	if km := a.keys.Load(); km != nil {
		s = "key " + km.Fingerprint()
	}
	if a.watcher != nil && a.watcher.Status().Alerting {
		s += " custodian down"
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", strings.TrimSpace(s))
	}
	return s
}
