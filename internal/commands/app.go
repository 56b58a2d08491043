package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sitebooks/sitebooks/internal/access"
	"github.com/sitebooks/sitebooks/internal/accounts"
	"github.com/sitebooks/sitebooks/internal/auditlog"
	"github.com/sitebooks/sitebooks/internal/config"
	"github.com/sitebooks/sitebooks/internal/importer"
	"github.com/sitebooks/sitebooks/internal/ledger"
	"github.com/sitebooks/sitebooks/internal/logging"
	"github.com/sitebooks/sitebooks/internal/store"
	"github.com/sitebooks/sitebooks/internal/store/memory"
	"github.com/sitebooks/sitebooks/internal/store/sqlstore"
)

// app is everything a command needs, built from the project's sitebooks.yaml.
type app struct {
	root  string
	cfg   *config.Config
	log   *zap.Logger
	store store.Store
	sql   *sqlstore.Store
	actor ledger.Actor

	machine    *ledger.Machine
	purchases  *ledger.PurchaseBuilder
	reversals  *ledger.ReversalEngine
	reconciler *importer.Reconciler
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (g *globals) open(ctx context.Context) (*app, error) {
	root, err := filepath.Abs(g.repo)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.FileName, err)
	}
	tolerance, err := cfg.Ledger.ToleranceValue()
	if err != nil {
		return nil, err
	}
	log, _, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &app{
		root:  root,
		cfg:   cfg,
		log:   log,
		actor: ledger.Actor{UserID: g.user, CompanyID: cfg.Company.ID},
	}

	switch cfg.Database.Driver {
	case config.DriverMySQL:
		s, err := sqlstore.Open(cfg.Database.DSN, log)
		if err != nil {
			return nil, err
		}
		a.store, a.sql = s, s
	default:
		// The memory store lives for one process; load the project chart so
		// imports and drafts can resolve accounts.
		st := memory.New()
		entries, err := accounts.Load(root)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if len(entries) > 0 {
			if _, err := accounts.Seed(ctx, st, cfg.Company.ID, entries); err != nil {
				return nil, fmt.Errorf("loading chart of accounts: %w", err)
			}
		}
		a.store = st
	}

	var sink auditlog.Sink = auditlog.Nop{}
	if cfg.Audit.Path != "" {
		sink = auditlog.NewFileSink(filepath.Join(root, cfg.Audit.Path))
	}

	a.machine = ledger.NewMachine(ledger.Options{
		Store:     a.store,
		Access:    access.FromConfig(cfg.Permissions.Roles, cfg.Permissions.Users),
		Audit:     sink,
		Logger:    log,
		Tolerance: tolerance,
	})
	a.purchases = ledger.NewPurchaseBuilder(a.machine, ledger.PurchaseConfig{
		DefaultPurchasesCode: cfg.Ledger.DefaultPurchasesCode,
		AccountsPayableCode:  cfg.Ledger.AccountsPayableCode,
	})
	a.reversals = ledger.NewReversalEngine(a.machine)
	a.reconciler = importer.NewReconciler(a.store, a.machine, importer.HeuristicResolver{}, log)
	return a, nil
}

func (a *app) close() {
	_ = a.log.Sync()
	if a.sql != nil {
		_ = a.sql.Close()
	}
}
