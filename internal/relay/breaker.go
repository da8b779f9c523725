package relay

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a publish attempt is short-circuited.
// Rows stay pending and retry counters are untouched.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerState enumerates the breaker state machine.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker is an explicit closed/open/half-open state machine owned by the
// relay instance, not a package-level singleton. The clock is injected so
// failure-sequence tests can drive transitions deterministically.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time

	state    BreakerState
	failures int
	probes   int
	openedAt time.Time
}

// NewBreaker uses the wall clock. Thresholds follow the publish failure
// policy: 5 consecutive failures open, 30s cooldown, 2 successes close.
func NewBreaker(failureThreshold int, cooldown time.Duration, successThreshold int) *Breaker {
	return NewBreakerWithClock(failureThreshold, cooldown, successThreshold, time.Now)
}

// NewBreakerWithClock injects the clock for tests.
func NewBreakerWithClock(failureThreshold int, cooldown time.Duration, successThreshold int, now func() time.Time) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
		now:              now,
		state:            StateClosed,
	}
}

// Allow reports whether a call may proceed. While open it short-circuits
// until the cooldown elapses, then admits probe calls in half-open state.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.probes = 0
	}
	return true
}

// OnSuccess records an acknowledged publish.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state == StateHalfOpen {
		b.probes++
		if b.probes >= b.successThreshold {
			b.state = StateClosed
			b.probes = 0
		}
	}
}

// OnFailure records an attempted-and-failed publish. A failure during a
// half-open probe reopens immediately.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.now()
		b.probes = 0
	case StateClosed:
		if b.failures >= b.failureThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
