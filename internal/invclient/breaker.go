package invclient

import (
	"sync"
	"time"
)

type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "CLOSED"
	}
}

// Breaker is an explicit closed/open/half-open state machine. While closed
// it judges health over a ring of the most recent outcomes, so a burst of
// failures trips it regardless of how long the healthy run before it was;
// half-open admits exactly one probe at a time.
type Breaker struct {
	thresholdPct int
	volume       int
	coolDown     time.Duration
	now          func() time.Time

	mu            sync.Mutex
	state         BreakerState
	window        []bool // ring of recent outcomes, true = failure
	head          int
	count         int
	failures      int
	openedAt      time.Time
	probeInFlight bool
}

func NewBreaker(thresholdPct, volume int, coolDown time.Duration) *Breaker {
	if thresholdPct <= 0 {
		thresholdPct = 50
	}
	if volume <= 0 {
		volume = 5
	}
	size := 2 * volume
	if size < 10 {
		size = 10
	}
	return &Breaker{
		thresholdPct: thresholdPct,
		volume:       volume,
		coolDown:     coolDown,
		now:          time.Now,
		window:       make([]bool, size),
	}
}

// Allow reports whether a call may proceed. Every true must be paired with
// exactly one Record.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.coolDown {
			return false
		}
		b.state = StateHalfOpen
		b.probeInFlight = true
		return true
	case StateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return false
}

func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.probeInFlight = false
		if success {
			b.state = StateClosed
			b.resetWindow()
		} else {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	case StateClosed:
		b.observe(!success)
		if b.count >= b.volume && b.failures*100/b.count >= b.thresholdPct {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	case StateOpen:
		// A call admitted before the trip finished after it; nothing to do.
	}
}

// observe pushes one outcome into the ring, evicting the oldest once full.
func (b *Breaker) observe(failed bool) {
	if b.count == len(b.window) {
		if b.window[b.head] {
			b.failures--
		}
	} else {
		b.count++
	}
	b.window[b.head] = failed
	if failed {
		b.failures++
	}
	b.head = (b.head + 1) % len(b.window)
}

func (b *Breaker) resetWindow() {
	for i := range b.window {
		b.window[i] = false
	}
	b.head, b.count, b.failures = 0, 0, 0
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

type BreakerStatus struct {
	State    string `json:"state"`
	Requests int    `json:"requests"`
	Failures int    `json:"failures"`
	OpenedAt string `json:"opened_at,omitempty"`
}

func (b *Breaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := BreakerStatus{
		State:    b.state.String(),
		Requests: b.count,
		Failures: b.failures,
	}
	if b.state != StateClosed {
		st.OpenedAt = b.openedAt.UTC().Format(time.RFC3339)
	}
	return st
}
