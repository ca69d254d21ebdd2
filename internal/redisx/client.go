package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// New builds the client behind the status/coupon caches and the consumer
// dedup keys. Timeouts are tight: redis here is never the primary store.
func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}
