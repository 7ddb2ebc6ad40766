package locks

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Receipts keeps small values next to the leases, for work that already
// happened elsewhere but could not be persisted yet.
type Receipts interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// Store is a Locker that can also hold receipts.
type Store interface {
	Locker
	Receipts
}

func (l *RedisLocker) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return l.client.Set(ctx, l.prefix+key, value, ttl).Err()
}

func (l *RedisLocker) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := l.client.Get(ctx, l.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (l *RedisLocker) Delete(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+key).Err()
}

type memoryReceipt struct {
	value     string
	expiresAt time.Time
}

func (l *MemoryLocker) Put(_ context.Context, key, value string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receipts[key] = memoryReceipt{value: value, expiresAt: l.now().Add(ttl)}
	return nil
}

func (l *MemoryLocker) Get(_ context.Context, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.receipts[key]
	if !ok || !l.now().Before(r.expiresAt) {
		return "", false, nil
	}
	return r.value, true, nil
}

func (l *MemoryLocker) Delete(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.receipts, key)
	return nil
}
