package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
	"github.com/josh-kwaku/canteen-ledger/internal/logging"
)

const keyPrefix = "canteen:menu:"

type source interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.MenuItem, error)
	GetStates(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.MenuItemState, error)
}

// Cache is a read-through Redis cache in front of the menu table. A nil
// client or an unreachable Redis degrades to reading the source directly.
//
// Price and availability of every cache hit are checked against the source
// on each read; entries that drifted are invalidated and reloaded. Only the
// display name can lag, by at most the TTL.
type Cache struct {
	source source
	client *redis.Client
	ttl    time.Duration
}

func NewCache(src source, client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{source: src, client: client, ttl: ttl}
}

type cachedItem struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

func (c *Cache) GetItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.MenuItem, error) {
	if c.client == nil || c.ttl <= 0 {
		items, err := c.source.GetByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("GetItems: %w", err)
		}
		return items, nil
	}

	logger := logging.FromContext(ctx)
	out := make(map[uuid.UUID]domain.MenuItem, len(ids))

	misses, err := c.readCached(ctx, ids, out)
	if err != nil {
		logger.Warn("menu cache read failed, falling back to database", "error", err)
		clear(out)
		misses = ids
	}

	stale, err := c.revalidate(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("GetItems: %w", err)
	}
	if len(stale) > 0 {
		logger.Info("menu cache entries changed at source", "count", len(stale))
		if err := c.Invalidate(ctx, stale...); err != nil {
			logger.Warn("menu cache invalidation failed", "error", err)
		}
		misses = append(misses, stale...)
	}
	if len(misses) == 0 {
		return out, nil
	}

	loaded, err := c.source.GetByIDs(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("GetItems: %w", err)
	}
	for id, m := range loaded {
		out[id] = m
	}

	if err := c.store(ctx, loaded); err != nil {
		logger.Warn("menu cache write failed", "error", err)
	}
	return out, nil
}

func (c *Cache) Invalidate(ctx context.Context, ids ...uuid.UUID) error {
	if c.client == nil || len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("Invalidate: %w", err)
	}
	return nil
}

// revalidate drops hits whose price or availability no longer match the
// source and returns their ids.
func (c *Cache) revalidate(ctx context.Context, hits map[uuid.UUID]domain.MenuItem) ([]uuid.UUID, error) {
	if len(hits) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(hits))
	for id := range hits {
		ids = append(ids, id)
	}

	states, err := c.source.GetStates(ctx, ids)
	if err != nil {
		return nil, err
	}

	var stale []uuid.UUID
	for _, id := range ids {
		st, ok := states[id]
		cached := hits[id]
		if !ok || st.Available != cached.Available || !st.Price.Equal(cached.Price) {
			delete(hits, id)
			stale = append(stale, id)
		}
	}
	return stale, nil
}

// Ping reports whether the backing Redis is reachable. Without a client it is a no-op.
func (c *Cache) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Ping: %w", err)
	}
	return nil
}

func (c *Cache) readCached(ctx context.Context, ids []uuid.UUID, out map[uuid.UUID]domain.MenuItem) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	var misses []uuid.UUID
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			misses = append(misses, ids[i])
			continue
		}
		var ci cachedItem
		if err := json.Unmarshal([]byte(raw), &ci); err != nil {
			misses = append(misses, ids[i])
			continue
		}
		out[ci.ID] = domain.MenuItem{ID: ci.ID, Name: ci.Name, Price: ci.Price, Available: ci.Available}
	}
	return misses, nil
}

func (c *Cache) store(ctx context.Context, items map[uuid.UUID]domain.MenuItem) error {
	if len(items) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for id, m := range items {
		raw, err := json.Marshal(cachedItem{ID: m.ID, Name: m.Name, Price: m.Price, Available: m.Available})
		if err != nil {
			return err
		}
		pipe.Set(ctx, key(id), raw, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
