package throttle

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/lapakdigital/lapakstore/internal/pkg/cache"
)

// Throttle is a per-key cooldown backed by Redis SET NX with TTL, replacing
// ambient in-process cooldown maps. Keys evict themselves when the window
// expires, so the store stays bounded.
type Throttle struct {
	client *redis.Client
	prefix string
}

func New(prefix string) *Throttle {
	return &Throttle{
		client: cache.GetClient(),
		prefix: prefix,
	}
}

// NewWithClient is used by tests to inject a client.
func NewWithClient(client *redis.Client, prefix string) *Throttle {
	return &Throttle{client: client, prefix: prefix}
}

// Allow reports whether the action keyed by key may run now, and if so opens
// a cooldown window of the given duration. Redis being unavailable fails
// open: a stuck cache must not block payment checks.
func (t *Throttle) Allow(ctx context.Context, key string, window time.Duration) bool {
	ok, err := t.client.SetNX(ctx, t.prefix+":"+key, time.Now().Unix(), window).Result()
	if err != nil {
		log.Warnf("[Throttle] redis unavailable, allowing %s: %v", key, err)
		return true
	}
	return ok
}

// Remaining returns how long the cooldown for key still holds, zero when the
// key is free.
func (t *Throttle) Remaining(ctx context.Context, key string) time.Duration {
	ttl, err := t.client.TTL(ctx, t.prefix+":"+key).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}
