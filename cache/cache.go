// Package cache keeps widgets in redis in front of the widget store
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/linesmerrill/mission-search-api/models"
	"github.com/linesmerrill/mission-search-api/search"
)

const keyPrefix = "widget:"

// Client is the part of a redis client the cache uses
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewRedisClient parses redisURL and verifies connectivity
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// WidgetCache implements search.WidgetLookup on top of another lookup.
// Redis failures fall through to the wrapped lookup and unknown widgets are
// never cached.
type WidgetCache struct {
	next search.WidgetLookup
	rdb  Client
	ttl  time.Duration
}

// NewWidgetCache wraps next with a redis cache holding widgets for ttl
func NewWidgetCache(next search.WidgetLookup, rdb Client, ttl time.Duration) *WidgetCache {
	return &WidgetCache{next: next, rdb: rdb, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

// FindWidget implements search.WidgetLookup
func (c *WidgetCache) FindWidget(ctx context.Context, id string) (*models.Widget, error) {
	raw, err := c.rdb.Get(ctx, key(id)).Bytes()
	switch {
	case err == nil:
		var w models.Widget
		if err := json.Unmarshal(raw, &w); err == nil {
			return &w, nil
		}
		zap.S().Warnw("dropping undecodable cached widget", "widgetId", id)
	case !errors.Is(err, redis.Nil):
		zap.S().Warnw("widget cache read failed", "widgetId", id, "error", err)
	}

	w, err := c.next.FindWidget(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, w)
	return w, nil
}

// Warm stores every widget, overwriting what is cached
func (c *WidgetCache) Warm(ctx context.Context, widgets []models.Widget) error {
	var errs []error
	for i := range widgets {
		if err := c.set(ctx, &widgets[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Invalidate drops a widget from the cache
func (c *WidgetCache) Invalidate(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, key(id)).Err()
}

func (c *WidgetCache) store(ctx context.Context, w *models.Widget) {
	if err := c.set(ctx, w); err != nil {
		zap.S().Warnw("widget cache write failed", "widgetId", w.ID, "error", err)
	}
}

func (c *WidgetCache) set(ctx context.Context, w *models.Widget) error {
	if w == nil || w.ID == "" {
		return nil
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to encode widget %s: %w", w.ID, err)
	}
	if err := c.rdb.Set(ctx, key(w.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache widget %s: %w", w.ID, err)
	}
	return nil
}
