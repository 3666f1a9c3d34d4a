// Package stats keeps per-day delivery counters for the alarm scan. Counters
// are observational only; nothing reads them back to retry a delivery.
package stats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"medcontrol/internal/scheduler"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix = "medcontrol:dispatch:"
	counterTTL       = 30 * 24 * time.Hour
)

type RedisRecorder struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

func NewRedisRecorder(client *redis.Client, logger *zap.Logger) *RedisRecorder {
	return &RedisRecorder{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		logger:    logger,
	}
}

// NewRedisClient connects to addr and verifies the server answers.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisRecorder) dayKey(day time.Time) string {
	return r.keyPrefix + day.Format("2006-01-02")
}

// RecordTick adds a tick's outcome to the counters of the day it ran on.
func (r *RedisRecorder) RecordTick(ctx context.Context, at time.Time, result scheduler.DispatchResult) error {
	key := r.dayKey(at)

	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "ticks", 1)
	if result.Delivered > 0 {
		pipe.HIncrBy(ctx, key, "delivered", int64(result.Delivered))
	}
	if result.Lost > 0 {
		pipe.HIncrBy(ctx, key, "lost", int64(result.Lost))
	}
	if result.Failed > 0 {
		pipe.HIncrBy(ctx, key, "failed", int64(result.Failed))
	}
	pipe.Expire(ctx, key, counterTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record dispatch stats: %w", err)
	}

	r.logger.Debug("Recorded dispatch stats",
		zap.String("key", key),
		zap.Int("delivered", result.Delivered),
		zap.Int("lost", result.Lost),
		zap.Int("failed", result.Failed),
	)
	return nil
}

// DaySummary is the counter set for one calendar day.
type DaySummary struct {
	Day       string `json:"day"`
	Ticks     int64  `json:"ticks"`
	Delivered int64  `json:"delivered"`
	Lost      int64  `json:"lost"`
	Failed    int64  `json:"failed"`
}

func (r *RedisRecorder) Summary(ctx context.Context, day time.Time) (*DaySummary, error) {
	values, err := r.client.HGetAll(ctx, r.dayKey(day)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dispatch stats: %w", err)
	}

	summary := &DaySummary{Day: day.Format("2006-01-02")}
	fields := map[string]*int64{
		"ticks":     &summary.Ticks,
		"delivered": &summary.Delivered,
		"lost":      &summary.Lost,
		"failed":    &summary.Failed,
	}
	for name, dst := range fields {
		raw, ok := values[name]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s counter %q: %w", name, raw, err)
		}
		*dst = n
	}

	return summary, nil
}
