package kv

import (
	"context"

	"github.com/Yates-Labs/narraitor/internal/config"
	"github.com/rs/zerolog"
)

// Open builds the backend selected by cfg.StorageDriver. When the engine
// cannot be reached the failure is logged and an in-memory store is used.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) Store {
	log = log.With().Str("component", "kv").Str("driver", cfg.StorageDriver).Logger()

	var (
		store Store
		err   error
	)

	switch cfg.StorageDriver {
	case "sqlite":
		store, err = NewSQLiteStore(ctx, cfg.SQLitePath, log)
	case "redis":
		store, err = NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
	case "mysql":
		store, err = NewMySQLStore(ctx, cfg.MySQLDSN, log)
	default:
		return NewMemoryStore()
	}

	if err != nil {
		log.Warn().Err(err).Msg("storage unavailable, falling back to memory")
		return NewMemoryStore()
	}

	log.Info().Msg("storage connected")
	return store
}
