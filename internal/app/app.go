// Package app builds the runtime dependencies shared by the server and the scheduler.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/lock"
	"github.com/segyhp/loan-ledger/internal/repository"
)

// OpenStore returns the configured store and a func that closes it.
func OpenStore(cfg *config.Config, logger *slog.Logger) (repository.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return repository.NewMemory(), func() {}, nil
	case config.StoreDriverPostgres:
		db, err := initDB(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		return repository.NewPostgresStore(db, cfg.Lock.Timeout), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

// NewRedisClient prefers REDIS_URL and falls back to host/port settings.
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}), nil
}

// Locker holds the per-loan lock and, in redis mode, the client behind it.
type Locker struct {
	lock.Locker
	Redis *redis.Client
}

func (l *Locker) Close() error {
	if l.Redis == nil {
		return nil
	}
	return l.Redis.Close()
}

// Ping checks the lock backend. The in-process lock is always ready.
func (l *Locker) Ping(ctx context.Context) error {
	if l.Redis == nil {
		return nil
	}
	return l.Redis.Ping(ctx).Err()
}

func NewLocker(cfg *config.Config) (*Locker, error) {
	switch cfg.Lock.Driver {
	case config.LockDriverMemory:
		return &Locker{Locker: lock.NewKeyedMutex()}, nil
	case config.LockDriverRedis:
		rdb, err := NewRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		return &Locker{
			Locker: lock.NewRedisLocker(rdb, cfg.Lock.Prefix, cfg.Lock.TTL),
			Redis:  rdb,
		}, nil
	default:
		return nil, fmt.Errorf("unknown lock driver %q", cfg.Lock.Driver)
	}
}
