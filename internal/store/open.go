package store

import (
	"context"
	"fmt"

	"github.com/address-resolver/app/config"
	"go.uber.org/zap"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects the configured backend and wraps it in a Pooled limiter.
func Open(ctx context.Context, cfg config.AppCfg, logger *zap.Logger) (CandidateStore, error) {
	var (
		inner CandidateStore
		err   error
	)
	switch cfg.Store.Driver {
	case DriverMemory, "":
		inner = NewMemoryStore()
	case DriverMongo:
		inner, err = NewMongoStore(ctx, cfg.Mongo, logger)
	case DriverPostgres:
		inner, err = OpenSQL(ctx, Postgres, cfg.Store.PostgresDSN, int(cfg.Store.MaxConcurrent), logger)
	case DriverSQLite:
		if !sqliteAvailable {
			return nil, fmt.Errorf("sqlite store needs a cgo build")
		}
		inner, err = OpenSQL(ctx, SQLite, cfg.Store.SQLitePath, 1, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	return NewPooled(inner, cfg.Store), nil
}
