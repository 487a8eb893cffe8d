package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/eqtlab/wallet/client"
	"github.com/eqtlab/wallet/config"
	"github.com/eqtlab/wallet/dashboard"
	"github.com/eqtlab/wallet/flow"
	"github.com/eqtlab/wallet/pkg/db"
	"github.com/eqtlab/wallet/pkg/logger"
	"github.com/eqtlab/wallet/pkg/postgres"
	"github.com/eqtlab/wallet/pkg/seal"
	pgstorage "github.com/eqtlab/wallet/storage/postgres"
	"github.com/eqtlab/wallet/storage/sqlite"
	"github.com/eqtlab/wallet/wallet"
)

type app struct {
	cfg    config.Config
	log    *logger.Logger
	stdout io.Writer
	notes  *notifier

	session *wallet.SessionStore
	ledger  *wallet.Ledger
	home    *dashboard.Presenter
	flow    *flow.Controller

	closers []func()
}

func newApp(ctx context.Context, cfg config.Config, log *logger.Logger, stdout, stderr io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		log:    log,
		stdout: stdout,
		notes:  &notifier{stdout: stdout, stderr: stderr},
	}

	storage, err := a.openStorage(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	var sealer wallet.Sealer
	if cfg.Storage.SealKey != "" {
		box, err := seal.New(cfg.Storage.SealKey)
		if err != nil {
			a.close()
			return nil, err
		}
		sealer = box
	}

	store := wallet.NewStore(cfg.OpeningBalance)
	remote := client.New(cfg.API, store, log.Logger)

	a.session = wallet.NewSessionStore(store, remote, storage, sealer, log.Logger)
	a.ledger = wallet.NewLedger(store, log.Logger)
	a.home = dashboard.New(remote, a.ledger, log.Logger)
	a.flow = flow.New(cfg.Flow, remote, a.ledger, a.home, a.notes, cfg.Currency, log.Logger)

	if err := a.session.Restore(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("restore session: %w", err)
	}

	return a, nil
}

func (a *app) openStorage(ctx context.Context) (wallet.DeviceStorage, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, a.cfg.Storage.PG)
		if err != nil {
			return nil, fmt.Errorf("can't connect to db: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		s := pgstorage.New(db.NewDB(pool, a.log.Logger))
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := sqlite.Open(ctx, a.cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("can't open device storage: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := s.Close(); err != nil {
				a.log.Warn("close device storage", zap.Error(err))
			}
		})
		return s, nil
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) renderOptions(hide bool) dashboard.RenderOptions {
	return dashboard.RenderOptions{
		Currency:    a.cfg.Currency,
		HideBalance: hide,
		Now:         time.Now(),
	}
}

// notifier prints toasts. failed records that an error was already shown.
type notifier struct {
	stdout io.Writer
	stderr io.Writer
	failed bool
}

func (n *notifier) Notify(msg wallet.Notification) {
	if msg.Level == wallet.LevelError {
		n.failed = true
		fmt.Fprintf(n.stderr, "%s failed: %s\n", msg.Title, msg.Message)
		return
	}
	fmt.Fprintf(n.stdout, "%s: %s\n", msg.Title, msg.Message)
}
