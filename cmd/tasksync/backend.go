package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"tasksync/board"
	"tasksync/config"
	"tasksync/storage"
)

// backend is the remote store selected by STORAGE_BACKEND plus the optional
// command journal.
type backend struct {
	remote  storage.Remote
	journal *storage.Journal
	redis   *redis.Client
}

func openBackend(cfg config.Config, logger log.FieldLogger) (*backend, error) {
	b := &backend{}
	switch cfg.StorageBackend {
	case config.BackendMemory:
		b.remote = storage.NewMemory()
	case config.BackendRedis:
		b.redis = storage.NewRedisClient(cfg.RedisConnectionString)
		b.remote = storage.NewRedis(b.redis, logger)
	case config.BackendTables:
		b.redis = storage.NewRedisClient(cfg.RedisConnectionString)
		var cache *storage.Cache
		if cfg.SnapshotCacheTTL > 0 {
			cache = storage.NewCache(b.redis, cfg.SnapshotCacheTTL)
		}
		tables, err := storage.NewTables(cfg.StorageConnectionString, cfg.TasksTable, storage.NewNotifier(b.redis), cache, logger)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("tables: %w", err)
		}
		b.remote = tables
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	if cfg.CommandQueue != "" {
		j, err := storage.NewJournal(cfg.StorageConnectionString, cfg.CommandQueue)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("journal: %w", err)
		}
		b.journal = j
	}
	return b, nil
}

// boardOptions configures every board built on this backend.
func (b *backend) boardOptions(cfg config.Config, logger log.FieldLogger) []board.Option {
	opts := []board.Option{
		board.WithLogger(logger),
		board.WithConflictPolicy(cfg.Policy()),
	}
	if b.journal != nil {
		opts = append(opts, board.WithJournal(b.journal))
	}
	return opts
}

func (b *backend) newBoard(cfg config.Config, logger log.FieldLogger) func() *board.Board {
	opts := b.boardOptions(cfg, logger)
	return func() *board.Board {
		return board.New(b.remote, opts...)
	}
}

func (b *backend) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
}
