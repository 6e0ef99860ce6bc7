// Package rediscache keeps the latest rendered bar window per chart in Redis
// so API consumers and restarting processes can read a warm snapshot without
// hitting the historical API.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"charting-systemv1/internal/model"
)

const defaultSnapshotTTL = 30 * time.Minute

// Config configures the Redis bar cache.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // snapshot expiry, defaults to 30m
}

// Cache stores bar snapshots keyed by instrument and interval.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
}

// Client returns the underlying Redis client for health checks and pubsub.
func (c *Cache) Client() *goredis.Client { return c.client }

// New creates the cache and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis ping")
	}

	log.Printf("[rediscache] connected to %s", cfg.Addr)
	return &Cache{client: client, ttl: cfg.TTL}, nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(client *goredis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

type snapshot struct {
	Interval string      `json:"interval"`
	SavedAt  int64       `json:"savedAt"`
	Bars     []model.Bar `json:"bars"`
}

func snapshotKey(key model.InstrumentKey, interval string) string {
	return fmt.Sprintf("bars:%s:%s:%s", key.Market, key.Symbol, interval)
}

// SaveBars writes the bar window for one chart, replacing any prior snapshot.
func (c *Cache) SaveBars(ctx context.Context, key model.InstrumentKey, interval string, bars []model.Bar) error {
	if bars == nil {
		bars = []model.Bar{}
	}
	data, err := json.Marshal(snapshot{
		Interval: interval,
		SavedAt:  time.Now().Unix(),
		Bars:     bars,
	})
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	ttl := c.ttl
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	if err := c.client.Set(ctx, snapshotKey(key, interval), data, ttl).Err(); err != nil {
		return errors.Wrapf(err, "set %s", snapshotKey(key, interval))
	}
	return nil
}

// LoadBars reads the cached bar window for one chart.
// Returns nil bars and no error when no snapshot exists.
func (c *Cache) LoadBars(ctx context.Context, key model.InstrumentKey, interval string) ([]model.Bar, error) {
	raw, err := c.client.Get(ctx, snapshotKey(key, interval)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", snapshotKey(key, interval))
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, errors.Wrapf(err, "decode %s", snapshotKey(key, interval))
	}
	return snap.Bars, nil
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
