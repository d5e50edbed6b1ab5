package main

import (
	"context"
	"fmt"

	"github.com/octobees/contact-enricher/internal/cache"
	"github.com/octobees/contact-enricher/internal/config"
	"github.com/octobees/contact-enricher/internal/database"
	"github.com/octobees/contact-enricher/internal/engine"
	"github.com/octobees/contact-enricher/internal/handler"
	"github.com/octobees/contact-enricher/internal/ledger"
	"github.com/octobees/contact-enricher/internal/localstore"
	"github.com/octobees/contact-enricher/internal/repository"
	"github.com/octobees/contact-enricher/internal/service"
)

type contactStore interface {
	engine.OutcomeStore
	service.OutcomeLister
}

// stores bundles one backend's implementations of every persistence port.
type stores struct {
	cache    cache.Store
	reports  service.PerformanceReader
	credits  ledger.Store
	logs     service.CreditLogReader
	contacts contactStore
	ping     handler.Pinger
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case "postgres":
		return openPostgres(ctx, cfg)
	case "sqlite":
		return openSQLite(cfg)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.AutoMigrate {
		if err := database.Migrate(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cacheRepo := repository.NewPGXCacheRepository(pool)
	creditRepo := repository.NewPGXCreditRepository(pool)
	return &stores{
		cache:    cacheRepo,
		reports:  cacheRepo,
		credits:  creditRepo,
		logs:     creditRepo,
		contacts: repository.NewPGXContactsRepository(pool),
		ping:     pool,
		close:    pool.Close,
	}, nil
}

func openSQLite(cfg *config.Config) (*stores, error) {
	db, err := localstore.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := localstore.AutoMigrate(db); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}

	cacheStore := localstore.NewCacheStore(db)
	creditStore := localstore.NewCreditStore(db)
	return &stores{
		cache:    cacheStore,
		reports:  cacheStore,
		credits:  creditStore,
		logs:     creditStore,
		contacts: localstore.NewContactStore(db),
		ping:     handler.PingFunc(sqlDB.PingContext),
		close:    func() { sqlDB.Close() },
	}, nil
}
