package fault

import (
	"context"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/warehouse-sim/shipping-coordinator/internal/redisx"
)

// Counter is the gremlin's globally ordered request counter. Incr reports the
// new value and whether it came from the shared store; shared=false means the
// caller is running on the degraded local fallback and cross-process
// periodicity is no longer exact.
type Counter interface {
	Incr(ctx context.Context) (n int64, shared bool)
}

// LocalCounter is process-local. Exact within one process, blind across
// processes. It is also the fallback when redis is unreachable: a fault
// injector must never fail the request it is injected into.
type LocalCounter struct {
	n atomic.Int64
}

func (c *LocalCounter) Incr(ctx context.Context) (int64, bool) {
	return c.n.Add(1), false
}

// RedisCounter keeps the counter in redis so every process sees the same
// global sequence. Falls back to a local counter per missed increment.
type RedisCounter struct {
	rdb      *redis.Client
	key      string
	fallback LocalCounter
	degraded atomic.Bool
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb, key: redisx.KeyGremlinCounter}
}

func (c *RedisCounter) Incr(ctx context.Context) (int64, bool) {
	n, err := c.rdb.Incr(ctx, c.key).Result()
	if err != nil {
		c.degraded.Store(true)
		v, _ := c.fallback.Incr(ctx)
		return v, false
	}
	c.degraded.Store(false)
	return n, true
}

// Degraded reports whether the last increment had to use the local fallback.
func (c *RedisCounter) Degraded() bool { return c.degraded.Load() }
