package callbacks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"collections-dialer/pkg/utils"
)

// Dedupe claims a reminder key once per TTL so that several processes
// scanning the same store do not remind an agent twice.
type Dedupe interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RedisDedupe struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisDedupe(rdb *redis.Client, prefix string) *RedisDedupe {
	return &RedisDedupe{rdb: rdb, prefix: prefix}
}

func (d *RedisDedupe) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if d.rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	return d.rdb.SetNX(ctx, utils.RedisKey(d.prefix, "callback", key), 1, ttl).Result()
}

// MemoryDedupe is a process-local Dedupe for tests and single-node setups.
type MemoryDedupe struct {
	mu    sync.Mutex
	now   func() time.Time
	until map[string]time.Time
}

func NewMemoryDedupe(now func() time.Time) *MemoryDedupe {
	if now == nil {
		now = time.Now
	}
	return &MemoryDedupe{now: now, until: make(map[string]time.Time)}
}

func (d *MemoryDedupe) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if exp, ok := d.until[key]; ok && now.Before(exp) {
		return false, nil
	}
	d.until[key] = now.Add(ttl)
	return true, nil
}
