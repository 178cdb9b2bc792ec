package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisDriver stores each channel:table pair as a redis hash, one field per
// visitor key. Driver calls are synchronous; a hanging redis call blocks the
// pipeline for that request, which is a documented limitation of the design.
type RedisDriver struct {
	mu      sync.Mutex
	client  *redis.Client
	channel string
}

// NewRedisDriver connects to redis at the given URL
// (redis://[user:pass@]host:port/db) and verifies the connection.
func NewRedisDriver(ctx context.Context, redisURL string) (*RedisDriver, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisDriver{client: client, channel: "gatetrap"}, nil
}

// SetChannel switches the namespace for all subsequent operations.
func (d *RedisDriver) SetChannel(name string) {
	d.mu.Lock()
	d.channel = name
	d.mu.Unlock()
}

func (d *RedisDriver) hashKey(table string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channel + ":" + table
}

// Get returns the stored value for key, and whether it exists.
func (d *RedisDriver) Get(key, table string) ([]byte, bool, error) {
	raw, err := d.client.HGet(context.Background(), d.hashKey(table), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s/%s: %w", table, key, err)
	}
	return raw, true, nil
}

// Save upserts the value for key in table.
func (d *RedisDriver) Save(key string, value []byte, table string) error {
	if err := d.client.HSet(context.Background(), d.hashKey(table), key, value).Err(); err != nil {
		return fmt.Errorf("redis save %s/%s: %w", table, key, err)
	}
	return nil
}

// Delete removes key from table.
func (d *RedisDriver) Delete(key, table string) error {
	if err := d.client.HDel(context.Background(), d.hashKey(table), key).Err(); err != nil {
		return fmt.Errorf("redis delete %s/%s: %w", table, key, err)
	}
	return nil
}

// GetAll returns every value in table.
func (d *RedisDriver) GetAll(table string) ([][]byte, error) {
	fields, err := d.client.HGetAll(context.Background(), d.hashKey(table)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", table, err)
	}
	out := make([][]byte, 0, len(fields))
	for _, v := range fields {
		out = append(out, []byte(v))
	}
	return out, nil
}

// Rebuild deletes all tables of the current channel.
func (d *RedisDriver) Rebuild() error {
	keys := make([]string, 0, len(AllTables))
	for _, t := range AllTables {
		keys = append(keys, d.hashKey(t))
	}
	if err := d.client.Del(context.Background(), keys...).Err(); err != nil {
		return fmt.Errorf("redis rebuild: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func (d *RedisDriver) Close() error {
	return d.client.Close()
}
