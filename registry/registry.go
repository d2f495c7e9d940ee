package registry

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/agentuity/go-cachespace/engine"
	"github.com/agentuity/go-cachespace/logger"
	"github.com/agentuity/go-cachespace/space"
	"github.com/cockroachdb/errors"
)

// DefaultSpaceName is the reserved name of the space returned by DefaultSpace.
// Space(DefaultSpaceName) returns that same instance.
const DefaultSpaceName = "defaultCacheSpace"

const notInitialized = "cachespace: registry used before Initialize"

// Registry owns one engine and the spaces built on it. At most one Space
// instance exists per name for the registry's lifetime.
type Registry struct {
	ctx        context.Context
	cancel     context.CancelFunc
	logger     logger.Logger
	engineOpts []engine.Option

	initMu sync.Mutex
	engine atomic.Pointer[engine.Engine]
	def    atomic.Pointer[space.Space]

	mu     sync.Mutex
	spaces map[string]*space.Space
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger passed to the engine and every space.
func WithLogger(log logger.Logger) Option {
	return func(r *Registry) { r.logger = log }
}

// WithEngineOptions sets the options used when Initialize builds the engine.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(r *Registry) { r.engineOpts = append(r.engineOpts, opts...) }
}

// New returns an uninitialized registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		logger: logger.NewDiscardLogger(),
		spaces: make(map[string]*space.Space),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize builds the engine at path (engine.DefaultPath when empty) and
// registers the default space. Once the registry is initialized further calls
// are no-ops, whatever path they pass. Call it once at startup, before spaces are
// requested.
func (r *Registry) Initialize(ctx context.Context, path string) error {
	r.initMu.Lock()
	defer r.initMu.Unlock()
	if r.engine.Load() != nil {
		return nil
	}

	ectx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	opts := append([]engine.Option{engine.WithLogger(r.logger)}, r.engineOpts...)
	e, err := engine.New(ectx, path, opts...)
	if err != nil {
		cancel()
		return errors.Wrap(err, "registry: initialize")
	}

	def := space.New(ectx, e, DefaultSpaceName, r.logger)
	r.mu.Lock()
	r.ctx, r.cancel = ectx, cancel
	r.spaces[DefaultSpaceName] = def
	r.mu.Unlock()
	r.def.Store(def)
	r.engine.Store(e)
	r.logger.Info("cache registry initialized at %s", e.Path())
	return nil
}

// Initialized reports whether Initialize has completed.
func (r *Registry) Initialized() bool {
	return r.engine.Load() != nil
}

// Engine returns the engine, or nil before Initialize.
func (r *Registry) Engine() *engine.Engine {
	return r.engine.Load()
}

// DefaultSpace returns the space registered under DefaultSpaceName.
// It panics if Initialize has not completed.
func (r *Registry) DefaultSpace() *space.Space {
	s := r.def.Load()
	if s == nil {
		panic(notInitialized)
	}
	return s
}

// Space returns the space called name, creating it on first use. An empty name
// returns DefaultSpace. Concurrent callers asking for the same new name all get
// the same instance. It panics if Initialize has not completed.
func (r *Registry) Space(name string) *space.Space {
	if name == "" {
		return r.DefaultSpace()
	}
	e := r.engine.Load()
	if e == nil {
		panic(notInitialized)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.spaces[name]; ok {
		return s
	}
	s := space.New(r.ctx, e, name, r.logger)
	r.spaces[name] = s
	r.logger.Debug("created cache space %s", name)
	return s
}

// Names returns the names of the spaces created so far, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.spaces))
	for name := range r.spaces {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)
	return names
}

// Close shuts the engine down and returns the registry to its uninitialized
// state. Spaces handed out earlier must not be used afterwards.
func (r *Registry) Close(ctx context.Context) error {
	r.initMu.Lock()
	defer r.initMu.Unlock()
	e := r.engine.Load()
	if e == nil {
		return nil
	}
	r.engine.Store(nil)
	r.def.Store(nil)

	r.mu.Lock()
	r.spaces = make(map[string]*space.Space)
	cancel := r.cancel
	r.mu.Unlock()

	err := e.Close(ctx)
	cancel()
	return err
}
