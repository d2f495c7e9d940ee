// Package resilience guards calls to remote dependencies with a circuit breaker.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	ErrOpen    = errors.New("circuit breaker is open")
	ErrTimeout = errors.New("circuit breaker operation timeout")
)

// State represents the state of a circuit breaker
type State int32

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config defines configuration for the circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int

	// OpenFor is how long the circuit stays open before a probe is let through
	OpenFor time.Duration

	// MaxProbes is the number of concurrent calls allowed while half-open
	MaxProbes int

	// SuccessThreshold is the number of consecutive half-open successes that closes the circuit
	SuccessThreshold int

	// CallTimeout bounds a single call. Zero means the caller's context only.
	CallTimeout time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		MaxFailures:      5,
		OpenFor:          30 * time.Second,
		MaxProbes:        1,
		SuccessThreshold: 3,
		CallTimeout:      10 * time.Second,
	}
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	config Config
	now    func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	probes    int
	openedAt  time.Time
}

// New returns a closed breaker. Zero fields of config take their default.
func New(config Config) *Breaker {
	def := DefaultConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = def.MaxFailures
	}
	if config.OpenFor <= 0 {
		config.OpenFor = def.OpenFor
	}
	if config.MaxProbes <= 0 {
		config.MaxProbes = def.MaxProbes
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	return &Breaker{config: config, now: time.Now}
}

// Execute runs fn unless the circuit is open, in which case it returns ErrOpen
// without calling fn. The context given to fn carries CallTimeout. Errors
// for which ignore returns true do not count as failures; ignore may be nil.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error, ignore func(error) bool) error {
	probe, err := b.before()
	if err != nil {
		return err
	}
	if b.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.CallTimeout)
		defer cancel()
	}
	err = fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		err = errors.Mark(err, ErrTimeout)
	}
	b.after(probe, err == nil || (ignore != nil && ignore(err)))
	return err
}

func (b *Breaker) before() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.OpenFor {
			return false, ErrOpen
		}
		b.state = StateHalfOpen
		b.successes, b.probes = 0, 0
	}
	if b.probes >= b.config.MaxProbes {
		return false, ErrOpen
	}
	b.probes++
	return true, nil
}

func (b *Breaker) after(probe, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if probe && b.probes > 0 {
		b.probes--
	}
	switch {
	case ok && b.state == StateHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.reset()
		}
	case ok:
		b.failures = 0
	case b.state == StateHalfOpen:
		b.open()
	default:
		b.failures++
		if b.failures >= b.config.MaxFailures {
			b.open()
		}
	}
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.successes, b.probes = 0, 0
}

func (b *Breaker) reset() {
	b.state = StateClosed
	b.failures, b.successes, b.probes = 0, 0, 0
}

// Reset closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.reset()
	b.mu.Unlock()
}

// Stats is a snapshot of a breaker.
type Stats struct {
	State     State
	Failures  int
	Successes int
	Probes    int
}

func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:     b.state,
		Failures:  b.failures,
		Successes: b.successes,
		Probes:    b.probes,
	}
}

// State returns the current state. An open circuit whose OpenFor has elapsed
// still reports StateOpen until the next call probes it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
