package fault

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// Gremlin injects a fixed delay on every Nth call, counted globally. The
// shared counter is the whole point: with concurrent callers the 5th, 10th,
// 15th call in global order are the delayed ones, never a random sample.
type Gremlin struct {
	enabled  bool
	everyNth int64
	delay    time.Duration
	counter  Counter

	lastSeen atomic.Int64
	applied  atomic.Int64
	shared   atomic.Bool
}

func NewGremlin(enabled bool, everyNth int64, delay time.Duration, counter Counter) *Gremlin {
	if everyNth <= 0 {
		everyNth = 5
	}
	if counter == nil {
		counter = &LocalCounter{}
	}
	return &Gremlin{enabled: enabled, everyNth: everyNth, delay: delay, counter: counter}
}

// Apply increments the shared counter and sleeps when the call lands on the
// Nth slot. Returns whether a delay fired and for how long. The sleep honors
// ctx so a cancelled request is not held hostage.
func (g *Gremlin) Apply(ctx context.Context) (delayed bool, d time.Duration) {
	if !g.enabled {
		return false, 0
	}

	n, shared := g.counter.Incr(ctx)
	g.lastSeen.Store(n)
	g.shared.Store(shared)

	if n%g.everyNth != 0 {
		return false, 0
	}

	g.applied.Add(1)
	log.Printf("gremlin: delaying %s (request #%d)", g.delay, n)
	t := time.NewTimer(g.delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	return true, g.delay
}

type GremlinStatus struct {
	Enabled         bool  `json:"enabled"`
	EveryNthRequest int64 `json:"every_nth_request"`
	DelayMS         int64 `json:"delay_ms"`
	CurrentCount    int64 `json:"current_request_count"`
	NextDelayIn     int64 `json:"next_delay_in"`
	DelaysApplied   int64 `json:"delays_applied"`
	SharedCounter   bool  `json:"shared_counter"`
}

func (g *Gremlin) Status() GremlinStatus {
	n := g.lastSeen.Load()
	st := GremlinStatus{
		Enabled:         g.enabled,
		EveryNthRequest: g.everyNth,
		DelayMS:         g.delay.Milliseconds(),
		CurrentCount:    n,
		DelaysApplied:   g.applied.Load(),
		SharedCounter:   g.shared.Load(),
	}
	if g.enabled {
		st.NextDelayIn = g.everyNth - n%g.everyNth
	}
	return st
}
