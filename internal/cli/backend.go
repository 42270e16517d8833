package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"flashcard-progress/internal/app"
	"flashcard-progress/internal/config"
	"flashcard-progress/internal/infra/file"
	"flashcard-progress/internal/infra/memory"
	pgstore "flashcard-progress/internal/infra/postgres"
	redisstore "flashcard-progress/internal/infra/redis"
	"flashcard-progress/internal/infra/sqlite"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// backend is the set of adapters selected by the config.
type backend struct {
	aggregates  app.AggregateStore
	checkpoints app.CheckpointStore
	sessions    app.SessionRepository
	closers     []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend picks the aggregate store in order Postgres, SQLite, Redis and
// falls back to memory. Redis in front of Postgres acts as a read cache.
func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	b := &backend{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var sqliteStore *sqlite.Store
	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		b.aggregates = pgstore.NewAggregateStore(pool)
		if redisClient != nil {
			b.aggregates = redisstore.NewCachedAggregateStore(redisClient, b.aggregates, redisTTL)
		}
		log.Printf("aggregate store: postgres")
	case cfg.SQLite.Path != "":
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = store.Close() })
		sqliteStore = store
		b.aggregates = store
		log.Printf("aggregate store: sqlite at %s", cfg.SQLite.Path)
	case redisClient != nil:
		b.aggregates = redisstore.NewAggregateStore(redisClient)
		log.Printf("aggregate store: redis at %s", cfg.Redis.Addr)
	default:
		b.aggregates = memory.NewAggregateStore()
		log.Printf("aggregate store: in-memory, statistics will not survive a restart")
	}

	switch {
	case cfg.Progress.CheckpointDir != "":
		b.checkpoints = file.NewCheckpointStore(cfg.Progress.CheckpointDir)
	case redisClient != nil:
		b.checkpoints = redisstore.NewCheckpointStore(redisClient, config.TTLDuration(cfg.Progress.CheckpointTTL, 0))
	case sqliteStore != nil:
		b.checkpoints = sqliteStore
	default:
		b.checkpoints = memory.NewCheckpointStore()
	}

	if redisClient != nil {
		b.sessions = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		b.sessions = memory.NewSessionStore()
	}
	return b, nil
}

func progressOptions(cfg config.Config) app.Options {
	return app.Options{
		Debounce:     config.TTLDuration(cfg.Progress.Debounce, app.DefaultDebounce),
		FlushTimeout: config.TTLDuration(cfg.Progress.FlushTimeout, 3*time.Second),
		HistoryLimit: cfg.Progress.HistoryLimit,
	}
}
