package rbh

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rbh-project/rbh/pkg/rbh/uri"
)

// Backends are addressed by URI: the scheme selects the implementation
// and the rest of the URI configures it. `mongo:foo` designates the
// built-in mongo backend indexing fsname "foo";
// `rbh:myplugin:arg` routes through the plugin loader to the backend
// named "myplugin" with "arg" as its own URI remainder.

// PluginScheme is the URI scheme of the plugin indirection. The nested
// scheme is looked up like any other: a registered factory first, the
// plugin loader on a miss.
const PluginScheme = "rbh"

// Factory creates backend instances for one URI scheme.
type Factory interface {
	// Name returns the scheme the factory serves.
	Name() string

	// New creates a backend from a parsed URI. The URI's path carries
	// the fsname; query parameters carry driver options.
	New(ctx context.Context, u *uri.URI) (Backend, error)
}

// Registry maps URI schemes to backend factories. Built-in schemes are
// registered at process start; unknown schemes fall back to loading a
// shared-library plugin which stays pinned for the life of the process.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under its scheme name. Registering a second
// factory for the same scheme fails.
func (r *Registry) Register(f Factory) error {
	if f == nil {
		return fmt.Errorf("cannot register nil backend factory")
	}
	if f.Name() == "" {
		return fmt.Errorf("cannot register backend factory with empty scheme")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[f.Name()]; exists {
		return fmt.Errorf("backend scheme %q already registered", f.Name())
	}

	r.factories[f.Name()] = f
	return nil
}

// Lookup returns the factory registered for scheme, loading the
// `librbh-<scheme>.so` plugin on a miss. Plugin failures surface as
// backend-unavailable errors.
func (r *Registry) Lookup(scheme string) (Factory, error) {
	r.mu.RLock()
	f, ok := r.factories[scheme]
	r.mu.RUnlock()
	if ok {
		return f, nil
	}

	f, err := openPlugin(scheme)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another caller may have raced the load; keep the first factory so
	// the pinned plugin stays the one in use.
	if existing, ok := r.factories[scheme]; ok {
		return existing, nil
	}
	r.factories[scheme] = f
	return f, nil
}

// New instantiates a backend from a URI string.
//
// The `rbh:` scheme is an indirection: `rbh:myplugin:rest` re-parses
// as `myplugin:rest`, and "myplugin" is resolved through Lookup.
func (r *Registry) New(ctx context.Context, rawURI string) (Backend, error) {
	u, err := uri.Parse(rawURI)
	if err != nil {
		return nil, NewInvalidInputError("%s", err.Error())
	}

	if u.Scheme == PluginScheme {
		nested := u.Path
		if u.HasAuthority || !strings.Contains(nested, ":") {
			return nil, NewInvalidInputError("invalid plugin URI %q: want %s:<backend>:<fsname>", rawURI, PluginScheme)
		}
		u, err = uri.Parse(nested)
		if err != nil {
			return nil, NewInvalidInputError("%s", err.Error())
		}
	}

	f, err := r.Lookup(u.Scheme)
	if err != nil {
		return nil, err
	}
	return f.New(ctx, u)
}

// defaultRegistry holds the process-wide registrations. Built-in
// backends register themselves from their package init functions.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a factory to the process-wide registry.
func Register(f Factory) error {
	return defaultRegistry.Register(f)
}

// MustRegister is Register for package init functions; it panics on
// conflicts.
func MustRegister(f Factory) {
	if err := defaultRegistry.Register(f); err != nil {
		panic(err)
	}
}

// New instantiates a backend from a URI string using the process-wide
// registry.
func New(ctx context.Context, rawURI string) (Backend, error) {
	return defaultRegistry.New(ctx, rawURI)
}
