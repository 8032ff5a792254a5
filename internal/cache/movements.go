// Package cache keeps computed movement reports in Redis. Entries are keyed
// by variant version, so a stock change makes old entries unreachable and
// no explicit invalidation is needed.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stockledger/internal/domain"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type LoadFunc func(ctx context.Context) (domain.MovementReport, error)

type MovementCache interface {
	Report(ctx context.Context, variantID string, version int64, load LoadFunc) (domain.MovementReport, error)
}

// Noop always computes. It is used when no Redis is configured.
type Noop struct{}

func (Noop) Report(ctx context.Context, _ string, _ int64, load LoadFunc) (domain.MovementReport, error) {
	return load(ctx)
}

const (
	fillLockTTL = 10 * time.Second
	fillRetries = 20
	fillBackoff = 50 * time.Millisecond
)

type Redis struct {
	client *redis.Client
	locker *redislock.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *zap.Logger) *Redis {
	return &Redis{
		client: client,
		locker: redislock.New(client),
		ttl:    ttl,
		log:    log.Named("movement_cache"),
	}
}

// Connect opens a client from a redis:// URL and checks it with PING.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func Key(variantID string, version int64) string {
	return fmt.Sprintf("movements:%s:v%d", variantID, version)
}

// Report returns the cached report for the variant version, filling it with
// load on a miss. Concurrent misses for one key wait on a short lock so the
// report is computed once. Redis trouble degrades to calling load directly.
func (c *Redis) Report(ctx context.Context, variantID string, version int64, load LoadFunc) (domain.MovementReport, error) {
	key := Key(variantID, version)
	if report, ok := c.get(ctx, key); ok {
		return report, nil
	}

	lock, err := c.locker.Obtain(ctx, key+":fill", fillLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(fillBackoff), fillRetries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		c.log.Debug("fill lock busy; computing without cache", zap.String("key", key))
		return load(ctx)
	}
	if err != nil {
		c.log.Warn("fill lock failed; computing without cache", zap.String("key", key), zap.Error(err))
		return load(ctx)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			c.log.Warn("release fill lock", zap.String("key", key), zap.Error(err))
		}
	}()

	if report, ok := c.get(ctx, key); ok {
		return report, nil
	}
	report, err := load(ctx)
	if err != nil {
		return domain.MovementReport{}, err
	}
	c.set(ctx, key, report)
	return report, nil
}

func (c *Redis) get(ctx context.Context, key string) (domain.MovementReport, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.MovementReport{}, false
	}
	if err != nil {
		c.log.Warn("read cached report", zap.String("key", key), zap.Error(err))
		return domain.MovementReport{}, false
	}

	var report domain.MovementReport
	if err := json.Unmarshal(raw, &report); err != nil {
		c.log.Warn("decode cached report", zap.String("key", key), zap.Error(err))
		return domain.MovementReport{}, false
	}
	return report, true
}

func (c *Redis) set(ctx context.Context, key string, report domain.MovementReport) {
	raw, err := json.Marshal(report)
	if err != nil {
		c.log.Warn("encode report", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("write cached report", zap.String("key", key), zap.Error(err))
	}
}
