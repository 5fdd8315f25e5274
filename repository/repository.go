package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/techbrief/config"
	"github.com/mohammad-safakhou/techbrief/internal/store"
	"github.com/mohammad-safakhou/techbrief/repository/redis_repository"
)

type RepoType string

const (
	RepoTypeAuto     RepoType = "auto"
	RepoTypePostgres RepoType = "postgres"
	RepoTypeRedis    RepoType = "redis"
	RepoTypeFile     RepoType = "file"
	RepoTypeMemory   RepoType = "memory"
)

// Backend is an opened decision store plus its cleanup.
type Backend struct {
	Store store.DecisionStore
	Type  RepoType
	close func() error
}

func (b Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open builds the decision store named by cfg.Backend. In auto mode it
// tries postgres, then redis, then the file store, logging each fallback.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch RepoType(cfg.Backend) {
	case RepoTypePostgres:
		return openPostgres(ctx, cfg.Postgres)
	case RepoTypeRedis:
		return openRedis(ctx, cfg.Redis, logger)
	case RepoTypeFile:
		return openFile(cfg.File)
	case RepoTypeMemory:
		return Backend{Store: store.NewMemoryStore(), Type: RepoTypeMemory}, nil
	case RepoTypeAuto, "":
		if cfg.Postgres.Configured() {
			b, err := openPostgres(ctx, cfg.Postgres)
			if err == nil {
				return b, nil
			}
			logger.Warn("postgres unavailable, falling back", zap.Error(err))
		}
		if cfg.Redis.Configured() {
			b, err := openRedis(ctx, cfg.Redis, logger)
			if err == nil {
				return b, nil
			}
			logger.Warn("redis unavailable, falling back", zap.Error(err))
		}
		return openFile(cfg.File)
	}
	return Backend{}, fmt.Errorf("invalid repository type: %s", cfg.Backend)
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) (Backend, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return Backend{}, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	st, err := store.NewWithDSN(pctx, dsn)
	if err != nil {
		return Backend{}, fmt.Errorf("connect postgres: %w", err)
	}
	return Backend{Store: st, Type: RepoTypePostgres, close: st.Close}, nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (Backend, error) {
	port := cfg.Port
	if port == "" {
		port = "6379"
	}
	c, err := redis_repository.Conn(ctx, cfg.Host, port, cfg.Password, cfg.DB, cfg.Timeout, logger)
	if err != nil {
		return Backend{}, fmt.Errorf("connect redis: %w", err)
	}
	return Backend{Store: redis_repository.NewRedisDecisionRepository(c, cfg.TTL), Type: RepoTypeRedis, close: c.Close}, nil
}

func openFile(cfg config.FileConfig) (Backend, error) {
	dir := cfg.DataDir
	if dir == "" {
		dir = "data"
	}
	fs, err := store.NewFileStore(dir)
	if err != nil {
		return Backend{}, fmt.Errorf("open file store: %w", err)
	}
	return Backend{Store: fs, Type: RepoTypeFile}, nil
}
