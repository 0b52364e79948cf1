package compression

import (
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnknownCodec is returned when a codec name is not registered.
	ErrUnknownCodec = errors.New("compression: unknown codec")

	// ErrRegistryFrozen is returned when registering into a frozen registry.
	ErrRegistryFrozen = errors.New("compression: registry is frozen")
)

// aliases maps the Hadoop codec class names found in headers written by
// other implementations to the built-in codecs.
var aliases = map[string]string{
	"org.apache.hadoop.io.compress.DefaultCodec":   Deflate,
	"org.apache.hadoop.io.compress.GzipCodec":      Gzip,
	"org.apache.hadoop.io.compress.SnappyCodec":    Snappy,
	"org.apache.hadoop.io.compress.Lz4Codec":       LZ4,
	"org.apache.hadoop.io.compress.ZStandardCodec": Zstd,
}

// Registry maps codec names to codecs.
//
// A registry is populated during startup and frozen before use; lookups on
// a frozen registry take no locks beyond a read lock. Tests build their own
// registries to inject doubles.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
	frozen bool
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// NewBuiltinRegistry returns an unfrozen registry holding the built-in codecs.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, c := range []Codec{
		DeflateCodec{},
		GzipCodec{},
		SnappyCodec{},
		LZ4Codec{},
		ZstdCodec{},
		S2Codec{},
	} {
		// Names are distinct constants; Register cannot fail here.
		_ = r.Register(c)
	}
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r := NewBuiltinRegistry()
	r.Freeze()
	return r
})

// Default returns the frozen registry of built-in codecs.
func Default() *Registry {
	return defaultRegistry()
}

// Register adds c under c.Name().
func (r *Registry) Register(c Codec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return errors.Wrapf(ErrRegistryFrozen, "register %q", c.Name())
	}
	if _, ok := r.codecs[c.Name()]; ok {
		return errors.Newf("compression: codec %q already registered", c.Name())
	}
	r.codecs[c.Name()] = c
	return nil
}

// Freeze makes the registry immutable.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup returns the codec registered under name. Hadoop codec class names are
// accepted as aliases for the built-in codecs.
func (r *Registry) Lookup(name string) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.codecs[name]; ok {
		return c, nil
	}
	if alias, ok := aliases[name]; ok {
		if c, ok := r.codecs[alias]; ok {
			return c, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownCodec, "%q", name)
}

// Names returns the registered codec names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
