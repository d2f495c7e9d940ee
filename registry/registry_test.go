package registry

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/agentuity/go-cachespace/engine"
	"github.com/agentuity/go-cachespace/logger"
	"github.com/agentuity/go-cachespace/space"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInitialized(t *testing.T) *Registry {
	t.Helper()
	ctx := context.Background()
	r := New()
	require.NoError(t, r.Initialize(ctx, t.TempDir()))
	t.Cleanup(func() { _ = r.Close(ctx) })
	return r
}

func TestUninitializedPanics(t *testing.T) {
	r := New()
	assert.False(t, r.Initialized())
	assert.Nil(t, r.Engine())
	assert.PanicsWithValue(t, notInitialized, func() { r.DefaultSpace() })
	assert.PanicsWithValue(t, notInitialized, func() { r.Space("") })
	assert.PanicsWithValue(t, notInitialized, func() { r.Space("session") })
}

func TestDefaultSpace(t *testing.T) {
	r := newInitialized(t)
	def := r.DefaultSpace()
	assert.Equal(t, DefaultSpaceName, def.Name())
	assert.Same(t, def, r.Space(""))
	assert.Same(t, def, r.Space(DefaultSpaceName))
	assert.Equal(t, []string{DefaultSpaceName}, r.Names())
}

func TestSpaceIdentity(t *testing.T) {
	r := newInitialized(t)
	a := r.Space("a")
	b := r.Space("b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, r.Space("a"))
	assert.Same(t, b, r.Space("b"))
	assert.NotSame(t, a, r.DefaultSpace())
	assert.Equal(t, []string{"a", "b", DefaultSpaceName}, r.Names())
}

func TestConcurrentSpaceCreation(t *testing.T) {
	r := newInitialized(t)

	names := make([]string, 8)
	for i := range names {
		names[i] = uuid.NewString()
	}

	const callers = 32
	results := make([][]*space.Space, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			got := make([]*space.Space, len(names))
			for j, name := range names {
				got[j] = r.Space(name)
			}
			// Lock-free path racing with creation.
			_ = r.Space("")
			results[i] = got
		}(i)
	}
	close(start)
	wg.Wait()

	for j := range names {
		first := results[0][j]
		for i := 1; i < callers; i++ {
			assert.Same(t, first, results[i][j])
		}
	}
	assert.Len(t, r.Names(), len(names)+1)
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := New()
	require.NoError(t, r.Initialize(ctx, dir))
	defer r.Close(ctx)

	def := r.DefaultSpace()
	e := r.Engine()
	require.NoError(t, r.Initialize(ctx, dir))
	require.NoError(t, r.Initialize(ctx, t.TempDir()))
	assert.Same(t, def, r.DefaultSpace())
	assert.Same(t, e, r.Engine())
}

func TestConcurrentInitialize(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := New()
	defer r.Close(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Initialize(ctx, dir))
		}()
	}
	wg.Wait()
	assert.True(t, r.Initialized())
	assert.Equal(t, []string{DefaultSpaceName}, r.Names())
}

func TestSessionScenario(t *testing.T) {
	r := newInitialized(t)
	session := r.Space("session")
	space.Set(session, "isActive", true)

	v, ok := space.Get[bool](session, "isActive")
	assert.True(t, ok)
	assert.True(t, v)

	_, ok = space.Get[bool](r.DefaultSpace(), "isActive")
	assert.False(t, ok)
}

func TestInitializeCancelledContextDoesNotStopEngine(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New()
	require.NoError(t, r.Initialize(ctx, t.TempDir()))
	defer r.Close(context.Background())
	cancel()

	s := r.Space("after-cancel")
	s.SetString("k", "v")
	v, ok := s.String("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestPersistsAcrossRegistries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	r1 := New()
	require.NoError(t, r1.Initialize(ctx, dir))
	space.Set(r1.Space("prefs"), "volume", 0.75)
	space.Set(r1.DefaultSpace(), "launches", int64(3))
	require.NoError(t, r1.Close(ctx))
	assert.False(t, r1.Initialized())

	r2 := New()
	require.NoError(t, r2.Initialize(ctx, dir))
	defer r2.Close(ctx)
	v, ok := space.Get[float64](r2.Space("prefs"), "volume")
	assert.True(t, ok)
	assert.Equal(t, 0.75, v)
	n, ok := space.Get[int64](r2.DefaultSpace(), "launches")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)
}

func TestCloseResetsRegistry(t *testing.T) {
	ctx := context.Background()
	r := New()
	require.NoError(t, r.Close(ctx))
	require.NoError(t, r.Initialize(ctx, t.TempDir()))
	old := r.Space("x")
	require.NoError(t, r.Close(ctx))
	assert.Panics(t, func() { r.Space("x") })

	require.NoError(t, r.Initialize(ctx, t.TempDir()))
	defer r.Close(ctx)
	assert.NotSame(t, old, r.Space("x"))
}

func TestInitializeError(t *testing.T) {
	log := logger.NewTestLogger()
	r := New(WithLogger(log), WithEngineOptions(engine.WithShards(4)))
	// A regular file cannot be used as the base directory.
	file := t.TempDir() + "/file"
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.Error(t, r.Initialize(context.Background(), file))
	assert.False(t, r.Initialized())
	assert.Zero(t, log.Count("INFO"))
}
