package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chainwatch/go/internal/config"
	"github.com/mcdev12/chainwatch/go/internal/database"
)

// setupDatabase migrates and opens Postgres. It returns nil for the in-memory store.
func setupDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return nil, nil
	}

	dsn := cfg.Database.DSN()
	if err := database.RunMigrations(dsn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("connected to database")
	return db, nil
}
