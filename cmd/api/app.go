package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/docstore"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/subscriber"
	"github.com/ovaphlow/pitchfork/service-rewards-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-rewards-go/pkg/utilities"
)

// schemaStore is a store that can create its indexes.
type schemaStore interface {
	docstore.Store
	EnsureUnique(ctx context.Context, collection, field string) error
}

// uniqueFields are the fields no two documents of a collection may share.
var uniqueFields = []struct{ collection, field string }{
	{docstore.CollectionAccounts, "email"},
	{docstore.CollectionAccounts, "uid"},
	{docstore.CollectionOrganizationProfiles, "ownerUid"},
}

func setup() (*config.Config, *zap.SugaredLogger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, lg.Sugar(), func() { _ = lg.Sync() }, nil
}

// openStore connects to DATABASE_URL, or returns an in-memory store when no
// database is configured.
func openStore(cfg *config.Config, logger *zap.SugaredLogger) (schemaStore, *sqlx.DB, error) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set; using the in-memory store, data is lost on exit")
		return docstore.NewMemoryStore(), nil, nil
	}
	dbCfg := database.ConfigFromEnv()
	dbCfg.DSN = cfg.Database.URL
	if cfg.Database.MaxConns > 0 {
		dbCfg.MaxConns = cfg.Database.MaxConns
	}
	db, err := database.Connect(dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	logger.Infow("database connected", "driver", db.DriverName())
	return docstore.NewSQLStore(db), db, nil
}

// migrate creates the documents table and the unique indexes. It is safe to
// run repeatedly.
func migrate(ctx context.Context, store schemaStore, logger *zap.SugaredLogger) error {
	if s, ok := store.(*docstore.SQLStore); ok {
		if err := s.EnsureTable(ctx); err != nil {
			return fmt.Errorf("ensure table: %w", err)
		}
	}
	for _, u := range uniqueFields {
		if err := store.EnsureUnique(ctx, u.collection, u.field); err != nil {
			return fmt.Errorf("ensure unique %s.%s: %w", u.collection, u.field, err)
		}
	}
	if err := subscriber.NewService(store, logger).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure subscriber indexes: %w", err)
	}
	logger.Debugw("schema ready")
	return nil
}
