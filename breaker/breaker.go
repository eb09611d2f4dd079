// Package breaker implements the three-state circuit breaker (§4.6) that
// wraps the generator client.
package breaker

import (
	"sync"
	"time"

	"github.com/sentineldev/sentinel-gateway/errs"
)

// State is one of the three breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config tunes the breaker. Defaults match §4.6 and the original
// implementation's constants (failure_threshold=5, cooldown_sec=60).
type Config struct {
	FailureThreshold int
	Cooldown         time.Duration
}

func DefaultConfig() Config {
	return Config{FailureThreshold: 5, Cooldown: 60 * time.Second}
}

// Breaker guards calls to a failing dependency. State is process-local —
// no cross-process coordination.
type Breaker struct {
	mu sync.Mutex

	config             Config
	state              State
	consecutiveFailures int
	lastFailureAt      time.Time
	halfOpenProbeInFlight bool
	halfOpenExcessAdmitted bool
}

// New builds a breaker starting CLOSED.
func New(cfg Config) *Breaker {
	return &Breaker{config: cfg, state: Closed}
}

// Allow reports whether a call may proceed, transitioning OPEN->HALF_OPEN
// once the cooldown has elapsed. It tolerates up to one excess probe
// admitted concurrently in HALF_OPEN rather than serialising probes.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if b.lastFailureAt.IsZero() {
			// State+stamp consistency invariant: OPEN always implies a
			// stamped last-failure time. Treat an unset stamp as "just
			// tripped" rather than panicking or looping forever.
			b.lastFailureAt = time.Now()
		}
		if time.Since(b.lastFailureAt) >= b.config.Cooldown {
			b.state = HalfOpen
			b.halfOpenProbeInFlight = true
			b.halfOpenExcessAdmitted = false
			return nil
		}
		return errs.New(errs.CircuitOpen, "circuit open, cooling down").WithRetry(b.config.Cooldown - time.Since(b.lastFailureAt))
	case HalfOpen:
		if !b.halfOpenProbeInFlight {
			b.halfOpenProbeInFlight = true
			return nil
		}
		// One excess probe is tolerated rather than serialised; further
		// calls fail fast until a probe's outcome is recorded.
		if !b.halfOpenExcessAdmitted {
			b.halfOpenExcessAdmitted = true
			return nil
		}
		return errs.New(errs.CircuitOpen, "circuit half-open, probe in flight").WithRetry(b.config.Cooldown)
	default:
		return nil
	}
}

// RecordSuccess closes the breaker and resets the failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.consecutiveFailures = 0
	b.halfOpenProbeInFlight = false
}

// RecordFailure increments the consecutive-failure counter and trips the
// breaker open once it reaches the configured threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.halfOpenProbeInFlight = false
	b.consecutiveFailures++
	if b.state == HalfOpen || b.consecutiveFailures >= b.config.FailureThreshold {
		b.state = Open
		b.lastFailureAt = time.Now()
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure count.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}
