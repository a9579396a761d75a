// Package rediscache keeps the latest snapshot of every pool in Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"liquidityEngine/internal/model"
)

var (
	// ErrDisabled indicates the cache layer is disabled via configuration.
	ErrDisabled = errors.New("redis cache disabled")
	ErrNotFound = errors.New("snapshot not cached")
)

const DefaultTTL = 5 * time.Minute

// Config represents Redis client configuration options.
type Config struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Cache wraps a Redis client to simplify snapshot caching.
type Cache struct {
	client *redis.Client
	cfg    Config
}

func New(cfg Config) (*Cache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if !cfg.Enabled {
		return &Cache{cfg: cfg}, nil
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Cache{client: client, cfg: cfg}, nil
}

func Key(token0, token1 string) string {
	return fmt.Sprintf("pool:%s:%s:snapshot", token0, token1)
}

// GetSnapshot retrieves the cached snapshot of a pool in canonical token order.
func (c *Cache) GetSnapshot(ctx context.Context, token0, token1 string) (model.PoolSnapshot, error) {
	if c == nil || c.client == nil {
		return model.PoolSnapshot{}, ErrDisabled
	}

	payload, err := c.client.Get(ctx, Key(token0, token1)).Result()
	if errors.Is(err, redis.Nil) {
		return model.PoolSnapshot{}, ErrNotFound
	}
	if err != nil {
		return model.PoolSnapshot{}, err
	}

	var snap model.PoolSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return model.PoolSnapshot{}, err
	}
	return snap, nil
}

// SetSnapshots stores snapshots in one pipeline.
func (c *Cache) SetSnapshots(ctx context.Context, snaps []model.PoolSnapshot) error {
	if c == nil || c.client == nil {
		return ErrDisabled
	}
	if len(snaps) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, snap := range snaps {
		payload, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		pipe.Set(ctx, Key(snap.Token0, snap.Token1), payload, c.cfg.TTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// WriteEvents caches the newest pool state found in the batch.
func (c *Cache) WriteEvents(ctx context.Context, events []model.Event) error {
	return c.SetSnapshots(ctx, LatestSnapshots(events))
}

// LatestSnapshots keeps the last pool state update of every pool, stamped with
// its event sequence number.
func LatestSnapshots(events []model.Event) []model.PoolSnapshot {
	index := make(map[string]int)
	var out []model.PoolSnapshot
	for _, ev := range events {
		update, ok := ev.Data.(model.UpdatePoolStateEventData)
		if !ok {
			continue
		}
		snap := update.Snapshot
		snap.Seq = ev.Seq
		if i, seen := index[snap.PoolKey()]; seen {
			out[i] = snap
			continue
		}
		index[snap.PoolKey()] = len(out)
		out = append(out, snap)
	}
	return out
}

func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
