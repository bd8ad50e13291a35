package commands

import (
	"context"
	"fmt"
	"time"

	genbackend "npcgateway/internal/adapter/backend/generate"
	oaibackend "npcgateway/internal/adapter/backend/openai"
	gormrepo "npcgateway/internal/adapter/repo/gorm"
	memoryrepo "npcgateway/internal/adapter/repo/memory"
	mongorepo "npcgateway/internal/adapter/repo/mongo"
	sqliterepo "npcgateway/internal/adapter/repo/sqlite"
	"npcgateway/internal/app/ports"
	"npcgateway/internal/config"
)

const backendDialTimeout = 3 * time.Second

// openStore returns the configured history store and a func that releases it.
func openStore(ctx context.Context, cfg config.StoreConfig) (ports.DecisionStore, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	switch cfg.Driver {
	case config.StoreMemory:
		return memoryrepo.NewStore(), noop, nil
	case config.StorePostgres:
		db, err := gormrepo.OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("postgres handle: %w", err)
		}
		return gormrepo.NewDecisionRepo(db), func(context.Context) error { return sqlDB.Close() }, nil
	case config.StoreMongo:
		s, err := mongorepo.Open(ctx, mongorepo.Config{URI: cfg.DSN, Database: cfg.Database, Collection: cfg.Collection})
		if err != nil {
			return nil, nil, fmt.Errorf("open mongo: %w", err)
		}
		return s, s.Close, nil
	case config.StoreSQLite:
		s, err := sqliterepo.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return s, func(context.Context) error { return s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func newBackend(cfg config.BackendConfig) (ports.InferenceBackend, error) {
	switch cfg.Driver {
	case config.BackendGenerate:
		return genbackend.NewClient(genbackend.Config{URL: cfg.URL, DialTimeout: backendDialTimeout})
	case config.BackendOpenAI:
		return oaibackend.NewClient(oaibackend.Config{BaseURL: cfg.URL, APIKey: cfg.APIKey, Model: cfg.Model})
	default:
		return nil, fmt.Errorf("unknown backend driver %q", cfg.Driver)
	}
}
