// Package queue provides the Redis connection shared by the task queue and
// the Redis-backed job registry.
package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/docket/pkg/lifecycle"
)

// System manages the Redis client, the task enqueuer, and their lifecycle.
type System interface {
	// Redis returns the shared go-redis client.
	Redis() redis.UniversalClient
	// Tasks returns the task enqueuer.
	Tasks() *asynq.Client
	// Options returns connection options for constructing a task server.
	Options() asynq.RedisClientOpt
	// Config returns the finalized configuration.
	Config() *Config
	// Start registers a startup ping and shutdown close hooks.
	Start(lc *lifecycle.Coordinator) error
}

type queue struct {
	cfg    *Config
	redis  *redis.Client
	tasks  *asynq.Client
	opt    asynq.RedisClientOpt
	logger *slog.Logger
}

// New creates the Redis and asynq clients. No connection is made until Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	opt := asynq.RedisClientOpt{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeoutDuration(),
	}

	return &queue{
		cfg: cfg,
		redis: redis.NewClient(&redis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: cfg.DialTimeoutDuration(),
		}),
		tasks:  asynq.NewClient(opt),
		opt:    opt,
		logger: logger.With("system", "queue"),
	}, nil
}

func (q *queue) Redis() redis.UniversalClient {
	return q.redis
}

func (q *queue) Tasks() *asynq.Client {
	return q.tasks
}

func (q *queue) Options() asynq.RedisClientOpt {
	return q.opt
}

func (q *queue) Config() *Config {
	return q.cfg
}

func (q *queue) Start(lc *lifecycle.Coordinator) error {
	q.logger.Info("starting queue connection", "addr", q.cfg.Addr, "queue", q.cfg.Name)

	lc.OnStartup(func() error {
		ctx, cancel := context.WithTimeout(lc.Context(), q.cfg.DialTimeoutDuration())
		defer cancel()

		if err := q.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis %s: %w", q.cfg.Addr, err)
		}

		q.logger.Info("redis connection established")
		return nil
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		q.logger.Info("closing queue connection")

		if err := q.tasks.Close(); err != nil {
			q.logger.Error("task client close failed", "error", err)
		}
		if err := q.redis.Close(); err != nil {
			q.logger.Error("redis close failed", "error", err)
		}
	})

	return nil
}
