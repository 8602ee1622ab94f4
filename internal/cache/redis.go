package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the multi-instance backing. Entries are stored without expiry to
// match the Memory semantics. Cache trouble must never fail a request, so
// errors degrade to a miss / no-op.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(addr, password string, db int) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Redis{rdb: rdb}
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rdb.Get(ctx, key).Bytes()

	if err != nil {
		return nil, false
	}

	return val, true
}

func (c *Redis) Set(ctx context.Context, key string, val []byte) {
	_ = c.rdb.Set(ctx, key, val, 0).Err()
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.rdb.Close()
}
