package weft

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ResolverCall carries everything a resolver may need: the parsed
// argument values, their original source spellings, the container and
// registry in effect, and the resolution context.
type ResolverCall struct {
	Name      string
	Args      []Value
	Raw       []string
	Container ContainerView
	Resolvers *ResolverRegistry
	Ctx       ResolveContext
}

// ResolverFunc is a named side function invoked by ${name:args}
// interpolations. Resolvers are expected to be pure; impure ones should
// be registered with WithoutCache.
type ResolverFunc func(call ResolverCall) (Value, error)

// Resolver is a registered resolver function plus its dispatch flags.
type Resolver struct {
	Name string
	Fn   ResolverFunc

	// UseCache memoizes results per container, keyed by the resolver name
	// and the structural identity of the argument tuple.
	UseCache bool

	// VariablesAsStrings passes the raw source text of each argument
	// instead of the parsed value.
	//
	// Deprecated: register resolvers that take parsed values. This flag is
	// honored for compatibility and warns once per resolver on first use.
	VariablesAsStrings bool

	warnOnce sync.Once
}

func (r *Resolver) warnDeprecated(logger *zap.Logger) {
	r.warnOnce.Do(func() {
		logger.Warn("resolver registered with string arguments; this is deprecated, take parsed values instead",
			zap.String("resolver", r.Name))
	})
}

// ResolverOption configures a resolver at registration time.
type ResolverOption func(*Resolver)

// WithoutCache disables memoization for this resolver. Use it for
// resolvers with side effects or environment-dependent results.
func WithoutCache() ResolverOption {
	return func(r *Resolver) { r.UseCache = false }
}

// VariablesAsStrings makes the resolver receive raw argument text.
//
// Deprecated: take parsed values instead.
func VariablesAsStrings() ResolverOption {
	return func(r *Resolver) { r.VariablesAsStrings = true }
}

// RegistryOption configures a registry.
type RegistryOption func(*ResolverRegistry)

// WithLogger sets the logger used for deprecation warnings.
func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *ResolverRegistry) { r.logger = logger }
}

// ResolverRegistry maps resolver names to resolvers. A registry is safe
// for concurrent lookup; registration and clearing take the write lock.
// Most programs use the process-wide Default registry, but embedders can
// hold scoped registries of their own.
type ResolverRegistry struct {
	mu        sync.RWMutex
	resolvers map[string]*Resolver
	logger    *zap.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *ResolverRegistry {
	r := &ResolverRegistry{
		resolvers: make(map[string]*Resolver),
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a named resolver. Names are unique: registering a name
// twice fails with ErrResolverRegistered.
func (r *ResolverRegistry) Register(name string, fn ResolverFunc, opts ...ResolverOption) error {
	if name == "" || fn == nil {
		return &ValidationError{Msg: "resolver name and function must be non-empty"}
	}

	res := &Resolver{Name: name, Fn: fn, UseCache: true}
	for _, opt := range opts {
		opt(res)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resolvers[name]; exists {
		return fmt.Errorf("%w: %s", ErrResolverRegistered, name)
	}

	r.resolvers[name] = res

	return nil
}

// MustRegister is Register, panicking on error. Intended for built-ins
// and test setup.
func (r *ResolverRegistry) MustRegister(name string, fn ResolverFunc, opts ...ResolverOption) {
	if err := r.Register(name, fn, opts...); err != nil {
		panic(err)
	}
}

// Lookup returns the resolver registered under name.
func (r *ResolverRegistry) Lookup(name string) (*Resolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resolvers[name]

	return res, ok
}

// Clear removes every registered resolver.
func (r *ResolverRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resolvers = make(map[string]*Resolver)
}

// Names returns the registered names, sorted.
func (r *ResolverRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.resolvers))
	for name := range r.resolvers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

var (
	defaultRegistry     *ResolverRegistry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry, with the built-in resolvers
// registered against the process environment. It exists as a convenient
// default; the evaluator takes any registry handle.
func Default() *ResolverRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		if err := RegisterBuiltins(defaultRegistry, OSEnv{}); err != nil {
			panic(err)
		}
	})

	return defaultRegistry
}

// dispatch runs a resolver call through the registry, consulting the
// container's cache when the resolver allows it.
func (r *ResolverRegistry) dispatch(call ResolverCall) (Value, error) {
	res, ok := r.Lookup(call.Name)
	if !ok {
		return Value{}, &UnsupportedResolverError{Name: call.Name}
	}

	if res.VariablesAsStrings {
		res.warnDeprecated(r.logger)

		args := make([]Value, len(call.Raw))
		for i, raw := range call.Raw {
			args[i] = StringValue(raw)
		}

		call.Args = args
	}

	var cache *Cache
	if res.UseCache && call.Container != nil {
		cache = call.Container.ResolverCache()
	}

	if cache == nil {
		return res.Fn(call)
	}

	key, err := cacheKey(call.Name, call.Args)
	if err != nil {
		return Value{}, err
	}

	if v, ok := cache.Get(key); ok {
		return v, nil
	}

	v, err := res.Fn(call)
	if err != nil {
		return Value{}, err
	}

	cache.Set(key, v)

	return v, nil
}

// cacheKey builds the structural cache identity (resolver_name, args).
func cacheKey(name string, args []Value) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "%s(", name)

	for _, arg := range args {
		if err := appendCanonical(&b, arg); err != nil {
			return "", err
		}
	}

	b.WriteByte(')')

	return b.String(), nil
}

// Cache memoizes resolver results for one container. The zero value is
// not usable; use NewCache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Value
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Value)}
}

// Get returns the cached value for key.
func (c *Cache) Get(key string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[key]

	return v, ok
}

// Set stores a value under key.
func (c *Cache) Set(key string, v Value) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = v
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Value)
}

// CopyFrom replaces this cache's entries with a copy of the other
// cache's, so that two containers share resolved results.
func (c *Cache) CopyFrom(other *Cache) {
	if other == nil || other == c {
		return
	}

	other.mu.Lock()
	snapshot := make(map[string]Value, len(other.entries))

	for k, v := range other.entries {
		snapshot[k] = v
	}
	other.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = snapshot
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
