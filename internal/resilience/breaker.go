// Package resilience guards calls to external services. The dispatcher
// executes tasks serially, so a dependency that hangs or fails slowly stalls
// every queued task behind it; [Breaker] sheds those calls fast once the
// dependency is known to be down.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrOpen = errors.New("resilience: breaker open")

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed forwards all calls. This is the initial state.
	Closed State = iota

	// Open rejects calls with [ErrOpen] until the cooldown elapses.
	Open

	// HalfOpen lets a small number of probe calls through to test whether
	// the dependency has recovered.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Settings tunes a [Breaker]. The zero value of each field selects a default.
type Settings struct {
	// Name labels the breaker in log output.
	Name string

	// Trip is the number of consecutive failures that opens the breaker.
	// Default 5.
	Trip int

	// Cooldown is how long the breaker stays open before probing again.
	// Default 30s.
	Cooldown time.Duration

	// Probes is how many calls the half-open state admits. All of them must
	// succeed for the breaker to close again. Default 3.
	Probes int
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name     string
	trip     int
	cooldown time.Duration
	probes   int

	// now is overridable in tests.
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  int
}

// NewBreaker creates a [Breaker] from s, filling in defaults for zero fields.
func NewBreaker(s Settings) *Breaker {
	if s.Trip <= 0 {
		s.Trip = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.Probes <= 0 {
		s.Probes = 3
	}
	return &Breaker{
		name:     s.Name,
		trip:     s.Trip,
		cooldown: s.Cooldown,
		probes:   s.Probes,
		now:      time.Now,
	}
}

// Do runs fn unless the breaker is open. While open it returns [ErrOpen]
// without calling fn; after the cooldown a limited number of probe calls are
// admitted and their outcome decides whether the breaker closes or re-opens.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = HalfOpen
		b.probing = 0
		slog.Info("resilience: probing dependency", "breaker", b.name)
	case HalfOpen:
		if b.probing >= b.probes {
			b.mu.Unlock()
			return ErrOpen
		}
	}
	probe := b.state == HalfOpen
	if probe {
		b.probing++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failed(probe)
	} else {
		b.succeeded(probe)
	}
	return err
}

// failed updates the state machine after a failed call. Caller holds b.mu.
func (b *Breaker) failed(probe bool) {
	b.openedAt = b.now()
	if probe {
		b.state = Open
		b.failures = b.trip
		slog.Warn("resilience: probe failed, breaker re-opened", "breaker", b.name)
		return
	}
	b.failures++
	if b.failures >= b.trip {
		b.state = Open
		slog.Warn("resilience: breaker opened",
			"breaker", b.name, "consecutive_failures", b.failures)
	}
}

// succeeded updates the state machine after a successful call. Caller holds
// b.mu.
func (b *Breaker) succeeded(probe bool) {
	if probe {
		if b.probing >= b.probes {
			b.state = Closed
			b.failures = 0
			b.probing = 0
			slog.Info("resilience: breaker closed", "breaker", b.name)
		}
		return
	}
	b.failures = 0
}

// State reports the current state. An open breaker whose cooldown has elapsed
// reports [HalfOpen]; the actual transition happens on the next [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}
