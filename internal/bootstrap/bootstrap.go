package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"media-job-service/internal/config"
	"media-job-service/internal/events"
	"media-job-service/internal/repository/memory"
	"media-job-service/internal/repository/postgresql"
	"media-job-service/internal/repository/redisstore"
	"media-job-service/internal/service"
)

// The returned close func is never nil.
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (service.JobStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pool, err := postgresql.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if cfg.Postgres.Migrate {
			if err := postgresql.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("postgres: %w", err)
			}
		}
		logger.Info("job store ready", zap.String("backend", "postgres"), zap.Bool("migrated", cfg.Postgres.Migrate))
		return postgresql.NewJobRepository(pool), pool.Close, nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		logger.Info("job store ready", zap.String("backend", "redis"), zap.String("addr", cfg.Redis.Addr))
		closeFn := func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("redis close failed", zap.Error(err))
			}
		}
		return redisstore.NewJobStore(rdb, redisPrefix(cfg.ProjectID)), closeFn, nil

	case config.BackendMemory:
		logger.Warn("job store is in-memory; records are lost on restart")
		return memory.NewJobStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func redisPrefix(projectID string) string {
	if projectID == "" {
		return "media-jobs"
	}
	return "media-jobs:" + projectID
}

func NewPublisher(cfg config.Config, logger *zap.Logger) (events.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Info("event publishing disabled: KAFKA_BROKERS is empty")
		return events.Nop{}, nil
	}
	pub, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, err
	}
	logger.Info("event publishing enabled",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)
	return pub, nil
}

func NewJobService(cfg config.Config, store service.JobStore, authority service.UploadAuthority, pub events.Publisher, logger *zap.Logger) *service.JobService {
	return service.NewJobService(store, authority, service.Options{
		ProjectID:      cfg.ProjectID,
		Bucket:         cfg.Storage.Bucket,
		URIScheme:      cfg.Storage.URIScheme,
		OpTimeout:      cfg.Jobs.OpTimeout,
		MaxUploadBytes: cfg.Jobs.MaxUploadBytes,
		Events:         pub,
		Logger:         logger,
	})
}
