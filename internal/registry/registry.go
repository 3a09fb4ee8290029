package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/specialistvlad/dataflowgo/internal/module"
)

// ErrUnknownModuleType is returned when a descriptor is not registered.
var ErrUnknownModuleType = errors.New("unknown module type")

// Module is the interface that all plug-in packages implement to contribute
// module types.
type Module interface {
	Register(r *Registry)
}

// Constructor builds a fresh module implementation.
type Constructor func() module.Module

// Entry is one registered module type.
type Entry struct {
	Descriptor module.Descriptor
	New        Constructor
}

// Registry holds all registered module types for a single application
// instance. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string][]*Entry // Key: descriptor name, in registration order
	validate *validator.Validate
}

// New creates and initializes a new Registry, registering every given plug-in.
func New(plugins ...Module) *Registry {
	r := &Registry{
		entries:  make(map[string][]*Entry),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, p := range plugins {
		p.Register(r)
	}
	return r
}

// Register adds a module type. Registering the same name and version twice,
// or an invalid descriptor, is a programming error and panics.
func (r *Registry) Register(desc module.Descriptor, ctor Constructor) {
	if err := r.validate.Struct(desc); err != nil {
		panic(fmt.Sprintf("invalid module descriptor %q: %v", desc.String(), err))
	}
	if ctor == nil {
		panic(fmt.Sprintf("module descriptor %q registered without a constructor", desc.String()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries[desc.Name] {
		if e.Descriptor.Version == desc.Version {
			panic(fmt.Sprintf("module '%s' already registered", desc.String()))
		}
	}
	slog.Debug("Registering module type.", "name", desc.Name, "version", desc.Version)
	r.entries[desc.Name] = append(r.entries[desc.Name], &Entry{Descriptor: desc, New: ctor})
}

// Lookup finds a registered module type. An empty version selects the most
// recently registered version of the name.
func (r *Registry) Lookup(name, version string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.entries[name]
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModuleType, name)
	}
	if version == "" {
		return versions[len(versions)-1], nil
	}
	for _, e := range versions {
		if e.Descriptor.Version == version {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %q version %q", ErrUnknownModuleType, name, version)
}

// Create constructs a new module implementation for the descriptor.
func (r *Registry) Create(name, version string) (module.Module, module.Descriptor, error) {
	e, err := r.Lookup(name, version)
	if err != nil {
		return nil, module.Descriptor{}, err
	}
	return e.New(), e.Descriptor, nil
}

// Entries returns every registered module type sorted by name and version.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	for _, versions := range r.entries {
		out = append(out, versions...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Descriptor.Name != out[j].Descriptor.Name {
			return out[i].Descriptor.Name < out[j].Descriptor.Name
		}
		return out[i].Descriptor.Version < out[j].Descriptor.Version
	})
	return out
}
