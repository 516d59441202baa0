// Package app assembles the storage stack shared by the server and the
// top-up CLI from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/tollgate/internal/config"
	"github.com/BrandonDHaskell/tollgate/internal/db"
	"github.com/BrandonDHaskell/tollgate/internal/infra"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/service"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store/memory"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store/postgres"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store/redisstore"
	sqlitestore "github.com/BrandonDHaskell/tollgate/internal/tollgate/store/sqlite"
)

// Backends is the ledger, transaction log and card locker in use.
type Backends struct {
	Ledger       store.Ledger
	Transactions store.TransactionLog
	Locker       service.Locker
	Redis        *redis.Client // nil unless a redis URL is configured

	conn   *sql.DB
	writer *db.Worker
	pool   *pgxpool.Pool
}

// Open connects the configured ledger backend.  The transaction log always
// lives in the local sqlite database, except for the memory backend.
func Open(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*Backends, error) {
	b := &Backends{}

	if cfg.LedgerBackend == config.BackendMemory {
		b.Ledger = memory.NewLedger()
		b.Transactions = memory.NewTransactionLog()
		b.Locker = service.NewKeyedLocker()
		logger.Warn("memory ledger in use; balances are lost on exit")
		return b, nil
	}

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	b.conn = conn
	b.writer = db.NewWorker(conn)
	b.Transactions = sqlitestore.NewTransactionLog(conn, b.writer)
	b.Locker = service.NewKeyedLocker()

	if cfg.RedisURL != "" {
		rc, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Redis = rc
		// A shared lock lets the top-up CLI and the server serialize on a card.
		b.Locker = redisstore.NewLocker(rc, redisstore.LockerConfig{Prefix: "lock:" + cfg.RedisPrefix, Logger: logger})
	}

	switch cfg.LedgerBackend {
	case config.BackendSQLite:
		if cfg.Env == "dev" {
			if err := db.SeedDev(ctx, conn, db.SeedDevOptions{}); err != nil {
				b.Close()
				return nil, err
			}
		}
		b.Ledger = sqlitestore.NewLedger(conn, b.writer)

	case config.BackendRedis:
		b.Ledger = redisstore.NewLedger(b.Redis, cfg.RedisPrefix)

	case config.BackendPostgres:
		pool, err := infra.NewPostgresPool(ctx, cfg.PostgresURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.pool = pool
		pl := postgres.NewLedger(pool)
		if err := pl.EnsureSchema(ctx); err != nil {
			b.Close()
			return nil, err
		}
		b.Ledger = pl
		if b.Redis == nil {
			b.Locker = postgres.NewLocker(pool, 0, logger)
		}

	default:
		b.Close()
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}

	logger.WithField("ledger", cfg.LedgerBackend).Info("backends ready")
	return b, nil
}

// Close releases everything Open acquired; the DB worker drains first.
func (b *Backends) Close() error {
	var errs []error
	if b.writer != nil {
		b.writer.Close()
	}
	if b.conn != nil {
		errs = append(errs, b.conn.Close())
	}
	if b.Redis != nil {
		errs = append(errs, b.Redis.Close())
	}
	if b.pool != nil {
		b.pool.Close()
	}
	return errors.Join(errs...)
}
