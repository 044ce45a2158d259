package fault

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/warehouse-sim/shipping-coordinator/internal/redisx"
)

// CommitFault is raised strictly after a ledger transaction has committed.
// The mutation is durable; only the response is lost. Callers must treat it
// as "outcome unknown, check later", never as a rollback.
type CommitFault struct {
	Context string
	At      time.Time
}

func (f *CommitFault) Error() string {
	return fmt.Sprintf("crash after commit: %s", f.Context)
}

// CommittedButUnconfirmed reports whether err carries a durable-but-
// unacknowledged mutation. This is the tag that keeps a chaos crash from
// being conflated with a true rollback.
func CommittedButUnconfirmed(err error) bool {
	var f *CommitFault
	return errors.As(err, &f)
}

type ChaosEvent struct {
	Time    time.Time `json:"time"`
	Context string    `json:"context"`
	Message string    `json:"message"`
}

// Chaos draws a uniform value after each successful commit and, below the
// configured probability, fails the response even though the write is done.
type Chaos struct {
	enabled     bool
	probability float64
	roll        func() float64
	rdb         *redis.Client // optional, best-effort event tally

	mu     sync.Mutex
	events int64
	last   *ChaosEvent
}

func NewChaos(enabled bool, probability float64, rdb *redis.Client) *Chaos {
	return &Chaos{
		enabled:     enabled,
		probability: probability,
		roll:        rand.Float64,
		rdb:         rdb,
	}
}

// CrashAfterCommit returns a *CommitFault when the dice say so, nil
// otherwise. Call it only after the transaction is durably committed.
func (c *Chaos) CrashAfterCommit(ctx context.Context, opContext string) error {
	if !c.enabled || c.roll() >= c.probability {
		return nil
	}

	ev := ChaosEvent{
		Time:    time.Now().UTC(),
		Context: opContext,
		Message: "simulated crash after commit",
	}
	c.mu.Lock()
	c.events++
	c.last = &ev
	c.mu.Unlock()

	if c.rdb != nil {
		_ = c.rdb.Incr(ctx, redisx.KeyChaosEvents).Err()
	}

	log.Printf("chaos: SIMULATED CRASH after %s (commit already durable)", opContext)
	return &CommitFault{Context: opContext, At: ev.Time}
}

type ChaosStatus struct {
	Enabled          bool        `json:"enabled"`
	CrashProbability float64     `json:"crash_probability"`
	TotalEvents      int64       `json:"total_chaos_events"`
	SharedEvents     int64       `json:"shared_chaos_events"`
	SharedTally      bool        `json:"shared_tally"`
	LastEvent        *ChaosEvent `json:"last_chaos_event,omitempty"`
}

// Status snapshots the in-process counters and, when redis is reachable,
// the deployment-wide tally every replica increments.
func (c *Chaos) Status(ctx context.Context) ChaosStatus {
	c.mu.Lock()
	st := ChaosStatus{
		Enabled:          c.enabled,
		CrashProbability: c.probability,
		TotalEvents:      c.events,
		LastEvent:        c.last,
	}
	c.mu.Unlock()

	if c.rdb != nil {
		n, err := c.rdb.Get(ctx, redisx.KeyChaosEvents).Int64()
		switch {
		case err == nil:
			st.SharedEvents, st.SharedTally = n, true
		case errors.Is(err, redis.Nil):
			st.SharedTally = true // reachable, just no events yet
		}
	}
	return st
}

// Reset clears counters between test runs.
func (c *Chaos) Reset() {
	c.mu.Lock()
	c.events = 0
	c.last = nil
	c.mu.Unlock()
}
