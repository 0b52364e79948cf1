package serde

import (
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnknownType is returned when a type tag is not registered.
	ErrUnknownType = errors.New("serde: unknown type")

	// ErrRegistryFrozen is returned when registering into a frozen registry.
	ErrRegistryFrozen = errors.New("serde: registry is frozen")
)

// Registry maps type tags to serializers. It follows the same lifecycle as
// the codec registry: populate, Freeze, then look up.
type Registry struct {
	mu          sync.RWMutex
	serializers map[string]Serializer
	frozen      bool
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{serializers: make(map[string]Serializer)}
}

// NewBuiltinRegistry returns an unfrozen registry holding the built-in
// serializers. Callers add their own types and then Freeze it.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, s := range []Serializer{Bytes{}, String{}, Int64{}, Uint64{}} {
		_ = r.Register(s)
	}
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r := NewBuiltinRegistry()
	r.Freeze()
	return r
})

// Default returns the frozen registry of built-in serializers.
func Default() *Registry {
	return defaultRegistry()
}

// Register adds s under s.Name().
func (r *Registry) Register(s Serializer) error {
	if s.Name() == "" {
		return errors.New("serde: serializer has empty type tag")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return errors.Wrapf(ErrRegistryFrozen, "register %q", s.Name())
	}
	if _, ok := r.serializers[s.Name()]; ok {
		return errors.Newf("serde: type %q already registered", s.Name())
	}
	r.serializers[s.Name()] = s
	return nil
}

// Freeze makes the registry immutable.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup returns the serializer registered under tag.
func (r *Registry) Lookup(tag string) (Serializer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.serializers[tag]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "%q", tag)
	}
	return s, nil
}

// Names returns the registered type tags in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.serializers))
	for name := range r.serializers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
