package ingest

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PluginFactory is invoked exactly once during `PluginHost.Bootstrap`. It
// may mutate the host's `Config`, register named values into the registry
// via `Register`, install sub-routers via `Use`, and register listeners
// via the embedded `ActionRouter`/`EventRouter` methods.
type PluginFactory func(host *PluginHost) error

// PluginHost is the bootstrap phase and the registry/config anchor that
// handlers reach through `Request.Context`. It embeds an `ActionRouter` so
// a plugin factory can call `host.Get(...)`/`host.On(...)` directly, and it
// owns the `Config` map and the named plugin `registry` described in the
// data model.
//
// The registry and the listener table are written during `Bootstrap` and
// read during serving; `Register` after bootstrap (e.g. from a "request"
// listener) is safe against concurrent reads via the copy-on-write swap in
// `registryStore`.
type PluginHost struct {
	*ActionRouter

	Config *viper.Viper
	Logger *zap.Logger

	store      *registryStore
	factories  []PluginFactory
	bootOnce   sync.Once
	bootErr    error
	bootDone   bool
	entryFn    EntryResolver
	viewEngine ViewEngine
}

// NewPluginHost returns an empty `PluginHost` with a fresh `Config`, a
// production zap `Logger` (a no-op logger if that cannot be built), and no
// entry resolver or view engine installed.
func NewPluginHost() *PluginHost {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return &PluginHost{
		ActionRouter: NewActionRouter(),
		Config:       viper.New(),
		Logger:       logger,
		store:        newRegistryStore(),
	}
}

// AddPlugin appends factory to the bootstrap queue. Plugins run in the
// order they were added.
func (h *PluginHost) AddPlugin(factory PluginFactory) {
	h.factories = append(h.factories, factory)
}

// Register upserts name's value in the plugin registry. Values are not
// copied: callers of `Plugin` see the same reference back.
func (h *PluginHost) Register(name string, value interface{}) {
	h.store.set(name, value)
}

// Plugin returns the current registry value for name, or (nil, false) if
// no `Register` call has ever set it -- matching the invariant that
// `Plugin` returns undefined before any `Register(name, _)` call.
func (h *PluginHost) Plugin(name string) (interface{}, bool) {
	return h.store.get(name)
}

// Bootstrap invokes every registered `PluginFactory` once, then emits the
// "config" and "route" events with empty request/response payloads so
// plugins can register routes based on loaded config. Bootstrap is
// idempotent: a second call is a no-op.
func (h *PluginHost) Bootstrap() error {
	h.bootOnce.Do(func() {
		h.Logger.Info("bootstrap starting", zap.Int("plugins", len(h.factories)))

		for i, factory := range h.factories {
			if err := factory(h); err != nil {
				h.bootErr = fmt.Errorf("ingest: plugin %d failed to bootstrap: %w", i, err)
				h.Logger.Error("bootstrap failed", zap.Int("plugin", i), zap.Error(h.bootErr))
				return
			}
		}

		req := newRequest()
		req.reset()
		req.Context = h
		res := newResponse()
		res.reset()

		h.Emit("config", req, res, h)
		h.Emit("route", req, res, h)

		h.bootDone = true
		h.Logger.Info("bootstrap complete")
	})
	return h.bootErr
}

// Bootstrapped reports whether `Bootstrap` has completed successfully.
func (h *PluginHost) Bootstrapped() bool {
	return h.bootDone
}

// SetEntryResolver stores resolver on the host for application code to
// fetch via `EntryResolver`. `EntryRouter`s merged into this host via
// `Use` keep the resolver they were built with; the host's resolver is not
// applied to them.
func (h *PluginHost) SetEntryResolver(resolver EntryResolver) {
	h.entryFn = resolver
}

// EntryResolver returns the resolver installed via `SetEntryResolver`.
func (h *PluginHost) EntryResolver() EntryResolver {
	return h.entryFn
}

// SetViewEngine installs the default view engine new `ViewRouter`s created
// through `NewHostViewRouter` will use.
func (h *PluginHost) SetViewEngine(engine ViewEngine) {
	h.viewEngine = engine
}

// NewHostViewRouter returns a `ViewRouter` bound to the host's configured
// view engine, for application code that wants the host's default rather
// than constructing its own.
func (h *PluginHost) NewHostViewRouter() *ViewRouter {
	return NewViewRouter(h.viewEngine)
}

// registryStore is a copy-on-write map backing the plugin registry, which is
// written during bootstrap/serving and read far more often than it is
// written. A write copies the map under the mutex and swaps it in; a read
// holds the mutex only long enough to take the current map, then looks the
// name up in that snapshot without the lock.
type registryStore struct {
	mu sync.Mutex
	m  map[string]interface{}
}

func newRegistryStore() *registryStore {
	return &registryStore{m: map[string]interface{}{}}
}

func (s *registryStore) get(name string) (interface{}, bool) {
	s.mu.Lock()
	m := s.m
	s.mu.Unlock()
	v, ok := m[name]
	return v, ok
}

func (s *registryStore) set(name string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]interface{}, len(s.m)+1)
	for k, v := range s.m {
		next[k] = v
	}
	next[name] = value
	s.m = next
}
