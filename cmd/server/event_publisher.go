package main

import (
	"context"
	"log"

	"checkout/cmd/server/config"
	"checkout/internal/events"
	"checkout/internal/observability"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// buildEventPublisher fans order events out to the Redis stream (when
// configured), the websocket hub and the transition counters.
func buildEventPublisher(ctx context.Context, cfg config.RedisConfig, hub events.Broadcaster, metrics *observability.Metrics) (events.Publisher, func(), error) {
	cleanup := func() {}
	var storage events.Publisher

	if cfg.Enabled {
		client, err := openRedis(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		storage = events.NewRedisStreamPublisher(events.ClientAdapter{Client: client}, cfg.Stream, cfg.EventTTL, cfg.StreamMaxLen)
		cleanup = func() {
			if err := client.Close(); err != nil {
				log.Printf("close redis: %v", err)
			}
		}
		log.Printf("order events stream enabled")
	}

	publisher := events.NewMultiPublisher(
		transitionCounter{metrics: metrics},
		events.NewFanoutPublisher(storage, hub),
	)
	return publisher, cleanup, nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.DialTimeout != nil {
		opts.DialTimeout = *cfg.DialTimeout
	}
	if cfg.ReadTimeout != nil {
		opts.ReadTimeout = *cfg.ReadTimeout
	}
	if cfg.WriteTimeout != nil {
		opts.WriteTimeout = *cfg.WriteTimeout
	}
	if cfg.PoolSize != nil {
		opts.PoolSize = *cfg.PoolSize
	}
	if cfg.MinIdleConns != nil {
		opts.MinIdleConns = *cfg.MinIdleConns
	}
	if cfg.MaxRetries != nil {
		opts.MaxRetries = *cfg.MaxRetries
	}
	if cfg.TLSConfig != nil {
		opts.TLSConfig = cfg.TLSConfig
	}

	client := redis.NewClient(opts)
	if cfg.EnableOTel {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return nil, err
		}
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	pingCtx := ctx
	if cfg.HealthcheckTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.HealthcheckTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// transitionCounter counts every published status in the metrics snapshot.
type transitionCounter struct {
	metrics *observability.Metrics
}

func (c transitionCounter) Publish(_ context.Context, ev events.OrderEvent) error {
	c.metrics.AddOrderTransition(ev.Status)
	return nil
}
