// Package ratelimit implements fixed-window counters keyed by caller. A window
// opens on the first hit for a key and admits at most limit hits until it
// expires.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type window struct {
	count     int
	startedAt time.Time
}

// Memory keeps windows in process. Counters are lost on restart and are not
// shared between replicas.
type Memory struct {
	limit   int
	period  time.Duration
	now     func() time.Time
	mu      sync.Mutex
	windows map[string]*window
}

func NewMemory(limit int, period time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.Sub(w.startedAt) >= m.period {
		m.prune(now)
		w = &window{startedAt: now}
		m.windows[key] = w
	}
	if w.count >= m.limit {
		return false, nil
	}
	w.count++
	return true, nil
}

func (m *Memory) prune(now time.Time) {
	for key, w := range m.windows {
		if now.Sub(w.startedAt) >= m.period {
			delete(m.windows, key)
		}
	}
}

type Redis struct {
	client *redis.Client
	prefix string
	limit  int
	period time.Duration
}

func NewRedis(client *redis.Client, prefix string, limit int, period time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, limit: limit, period: period}
}

// Allow counts the hit and arms the expiry in one MULTI, so a window
// always ends even if the client goes away between the two commands.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := r.key(key)
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, r.period)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(r.limit), nil
}

func (r *Redis) key(key string) string {
	return r.prefix + ":" + key
}
