// Package cache keeps serialised plan snapshots in redis so a restarted
// process can skip the slow plan source.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"premium-rating/core/rateplan"
	"premium-rating/internal/config"
	rerrors "premium-rating/internal/errors"
	"premium-rating/internal/logging"
	"premium-rating/internal/metrics"
)

const keyPrefix = "rating:"

// Client is the subset of the redis client the cache uses
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Connect opens a redis client from configuration and checks it answers.
// Returns nil when the cache is disabled.
func Connect(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, rerrors.Config("invalid redis url", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, rerrors.Config("redis ping failed", err)
	}
	return client, nil
}

// Cache stores plan documents keyed by plan id
type Cache struct {
	client  Client
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a cache. A zero ttl keeps entries until evicted.
func New(client Client, ttl time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  logging.Named("cache"),
	}
}

// PlanKey is the redis key of one plan document
func PlanKey(id string) string {
	return keyPrefix + "plan:" + id
}

// IndexKey is the redis key listing the plan ids a source produced
func IndexKey(source string) string {
	return keyPrefix + "index:" + source
}

// Get returns a cached snapshot. A miss is (nil, false, nil).
// An entry that no longer matches its content hash is dropped and reported as a miss.
func (c *Cache) Get(ctx context.Context, id string) (*rateplan.Snapshot, bool, error) {
	raw, err := c.client.Get(ctx, PlanKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.IncrementCache(false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, rerrors.Internal("redis get failed", err)
	}

	snap, err := Decode(raw)
	if err != nil {
		c.logger.Warn("dropping corrupt cache entry", zap.String("plan_id", id), zap.Error(err))
		c.client.Del(ctx, PlanKey(id))
		c.metrics.IncrementCache(false)
		return nil, false, nil
	}
	c.metrics.IncrementCache(true)
	return snap, true, nil
}

// Put stores a snapshot
func (c *Cache) Put(ctx context.Context, snap *rateplan.Snapshot) error {
	raw, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, PlanKey(snap.ID()), raw, c.ttl).Err(); err != nil {
		return rerrors.Internal("redis set failed", err)
	}
	return nil
}

// Invalidate removes a source index so the next load goes to the source
func (c *Cache) Invalidate(ctx context.Context, source string) error {
	if err := c.client.Del(ctx, IndexKey(source)).Err(); err != nil {
		return rerrors.Internal("redis del failed", err)
	}
	return nil
}

// Encode serialises a snapshot as its JSON document
func Encode(snap *rateplan.Snapshot) ([]byte, error) {
	raw, err := json.Marshal(rateplan.ToDocument(snap))
	if err != nil {
		return nil, rerrors.Internal("failed to encode plan", err)
	}
	return raw, nil
}

// Decode rebuilds a snapshot, verifying its content hash
func Decode(raw []byte) (*rateplan.Snapshot, error) {
	var doc rateplan.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, rerrors.Wrapf(rerrors.TypeInvalidPlan, err, "cached plan document")
	}
	return rateplan.FromDocument(&doc)
}

// Source serves a plan source through the cache. name keys the id index,
// so two sources sharing one redis must use different names.
func (c *Cache) Source(name string, src rateplan.Source) rateplan.Source {
	return &cachedSource{cache: c, name: name, src: src}
}

type cachedSource struct {
	cache *Cache
	name  string
	src   rateplan.Source
}

// LoadPlans answers from the cache when every indexed plan is present.
// Redis failures fall back to the wrapped source.
func (s *cachedSource) LoadPlans(ctx context.Context) ([]*rateplan.Snapshot, error) {
	plans, ok := s.fromCache(ctx)
	if ok {
		s.cache.logger.Debug("plans served from cache", zap.String("source", s.name), zap.Int("plans", len(plans)))
		return plans, nil
	}

	plans, err := s.src.LoadPlans(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.fill(ctx, plans); err != nil {
		s.cache.logger.Warn("failed to fill plan cache", zap.String("source", s.name), zap.Error(err))
	}
	return plans, nil
}

func (s *cachedSource) fromCache(ctx context.Context) ([]*rateplan.Snapshot, bool) {
	raw, err := s.cache.client.Get(ctx, IndexKey(s.name)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.cache.logger.Warn("plan cache unavailable", zap.Error(err))
		}
		s.cache.metrics.IncrementCache(false)
		return nil, false
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		s.cache.logger.Warn("corrupt plan cache index", zap.String("source", s.name), zap.Error(err))
		return nil, false
	}

	plans := make([]*rateplan.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, ok, err := s.cache.Get(ctx, id)
		if err != nil || !ok {
			return nil, false
		}
		plans = append(plans, snap)
	}
	return plans, true
}

func (s *cachedSource) fill(ctx context.Context, plans []*rateplan.Snapshot) error {
	ids := make([]string, 0, len(plans))
	for _, p := range plans {
		if err := s.cache.Put(ctx, p); err != nil {
			return err
		}
		ids = append(ids, p.ID())
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode plan index: %w", err)
	}
	return s.cache.client.Set(ctx, IndexKey(s.name), raw, s.cache.ttl).Err()
}
