package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(config Config) (*Breaker, *clock) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	b := New(config)
	b.now = c.Now
	return b, c
}

func fail(context.Context) error { return errBoom }
func succeed(context.Context) error { return nil }

func TestInitialState(t *testing.T) {
	b := New(DefaultConfig())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, Stats{State: StateClosed}, b.Stats())
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}

func TestZeroConfigUsesDefaults(t *testing.T) {
	b := New(Config{})
	assert.Equal(t, DefaultConfig().MaxFailures, b.config.MaxFailures)
	assert.Equal(t, DefaultConfig().OpenFor, b.config.OpenFor)
	assert.Zero(t, b.config.CallTimeout)
}

func TestFailuresOpenCircuit(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxFailures: 3, OpenFor: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Execute(ctx, fail, nil), errBoom)
		assert.Equal(t, StateClosed, b.State())
	}
	assert.ErrorIs(t, b.Execute(ctx, fail, nil), errBoom)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	}, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestSuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxFailures: 2})
	ctx := context.Background()
	assert.Error(t, b.Execute(ctx, fail, nil))
	assert.NoError(t, b.Execute(ctx, succeed, nil))
	assert.Error(t, b.Execute(ctx, fail, nil))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 1, b.Stats().Failures)
}

func TestIgnoredErrorsDoNotCount(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxFailures: 1})
	ignore := func(err error) bool { return errors.Is(err, errBoom) }
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(context.Background(), fail, ignore), errBoom)
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenRecovers(t *testing.T) {
	b, clk := newTestBreaker(Config{MaxFailures: 1, OpenFor: time.Minute, SuccessThreshold: 2})
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, fail, nil))
	require.Equal(t, StateOpen, b.State())

	clk.Advance(30 * time.Second)
	assert.ErrorIs(t, b.Execute(ctx, succeed, nil), ErrOpen)

	clk.Advance(31 * time.Second)
	assert.NoError(t, b.Execute(ctx, succeed, nil))
	assert.Equal(t, StateHalfOpen, b.State())
	assert.NoError(t, b.Execute(ctx, succeed, nil))
	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, clk := newTestBreaker(Config{MaxFailures: 1, OpenFor: time.Minute})
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, fail, nil))
	clk.Advance(time.Minute)
	assert.ErrorIs(t, b.Execute(ctx, fail, nil), errBoom)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Execute(ctx, succeed, nil), ErrOpen)
}

func TestHalfOpenLimitsProbes(t *testing.T) {
	b, clk := newTestBreaker(Config{MaxFailures: 1, OpenFor: time.Minute, MaxProbes: 1})
	ctx := context.Background()
	require.Error(t, b.Execute(ctx, fail, nil))
	clk.Advance(time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		}, nil)
	}()
	<-started
	assert.ErrorIs(t, b.Execute(ctx, succeed, nil), ErrOpen)
	assert.Equal(t, 1, b.Stats().Probes)
	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, 0, b.Stats().Probes)
}

func TestCallTimeout(t *testing.T) {
	b := New(Config{MaxFailures: 1, CallTimeout: 10 * time.Millisecond})
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, nil)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, StateOpen, b.State())
}

func TestReset(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxFailures: 1})
	require.Error(t, b.Execute(context.Background(), fail, nil))
	require.Equal(t, StateOpen, b.State())
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Execute(context.Background(), succeed, nil))
}
