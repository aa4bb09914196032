package rdx

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect builds a client and verifies it with PING.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Locker hands out short-lived per-key locks via SET NX.
type Locker struct {
	conn *redis.Client
	ttl  time.Duration
}

func NewLocker(conn *redis.Client, ttl time.Duration) *Locker {
	return &Locker{conn: conn, ttl: ttl}
}

// Acquire tries to take the lock for key. It returns false when someone else holds it.
func (l *Locker) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := l.conn.SetNX(ctx, lockKey(key), "1", l.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Release drops the lock. Errors are only logged; the TTL frees it anyway.
func (l *Locker) Release(ctx context.Context, key string) {
	if err := l.conn.Del(ctx, lockKey(key)).Err(); err != nil {
		log.Printf("Release lock %s failed: %v", key, err)
	}
}

func lockKey(key string) string {
	return "lock:" + key
}
