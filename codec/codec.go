// Package codec maps content types to the functions that convert between a
// value's native form and its encoded wire bytes.
package codec

import (
	"sort"
	"sync"
)

// Codec defines an interface for encoding and decoding object values
// with a content type identifier for registry lookup.
type Codec interface {
	// ContentType returns the exact content type this codec is registered under
	ContentType() string
	// Encode converts a native value to its wire bytes
	Encode(any) ([]byte, error)
	// Decode converts wire bytes back to a native value
	Decode([]byte) (any, error)
}

// EncoderFunc converts a native value to wire bytes.
type EncoderFunc func(any) ([]byte, error)

// DecoderFunc converts wire bytes to a native value.
type DecoderFunc func([]byte) (any, error)

// funcCodec adapts a pair of functions to the Codec interface.
type funcCodec struct {
	contentType string
	enc         EncoderFunc
	dec         DecoderFunc
}

func (f funcCodec) ContentType() string { return f.contentType }

func (f funcCodec) Encode(v any) ([]byte, error) {
	if f.enc == nil {
		return Binary.Encode(v)
	}
	return f.enc(v)
}

func (f funcCodec) Decode(b []byte) (any, error) {
	if f.dec == nil {
		return Binary.Decode(b)
	}
	return f.dec(b)
}

// NewFuncCodec builds a Codec from an encoder/decoder pair. A nil function
// falls back to the binary pass-through for that direction.
func NewFuncCodec(contentType string, enc EncoderFunc, dec DecoderFunc) Codec {
	return funcCodec{contentType: contentType, enc: enc, dec: dec}
}

// Registry manages codec registration and lookup with thread safety.
// Lookups are by exact content type; unknown content types resolve to the
// Binary codec.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry creates a new, empty codec registry instance.
func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[string]Codec),
	}
}

// NewDefaultRegistry creates a registry preloaded with the built-in codecs.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, c := range []Codec{Binary, JSON, Text, YAML} {
		r.Register(c)
	}
	return r
}

// Register adds a codec to the registry using its ContentType() as the key,
// replacing any codec previously registered for it.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.ContentType()] = c
}

// RegisterFuncs registers an encoder/decoder pair for contentType.
func (r *Registry) RegisterFuncs(contentType string, enc EncoderFunc, dec DecoderFunc) {
	r.Register(NewFuncCodec(contentType, enc, dec))
}

// Unregister removes the codec for contentType, if any.
func (r *Registry) Unregister(contentType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codecs, contentType)
}

// Get retrieves a codec by its content type.
// Returns the codec and true if found, nil and false otherwise.
func (r *Registry) Get(contentType string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[contentType]
	return c, ok
}

// Lookup returns the codec for contentType, or Binary when none is registered.
func (r *Registry) Lookup(contentType string) Codec {
	if c, ok := r.Get(contentType); ok {
		return c
	}
	return Binary
}

// EncoderFor returns the encoder registered for contentType, falling back to
// the binary pass-through.
func (r *Registry) EncoderFor(contentType string) EncoderFunc {
	return r.Lookup(contentType).Encode
}

// DecoderFor returns the decoder registered for contentType, falling back to
// the binary pass-through.
func (r *Registry) DecoderFor(contentType string) DecoderFunc {
	return r.Lookup(contentType).Decode
}

// ContentTypes returns all registered content types in sorted order.
func (r *Registry) ContentTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.codecs))
	for ct := range r.codecs {
		types = append(types, ct)
	}
	sort.Strings(types)
	return types
}

// Clone returns an independent registry holding the same codecs.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := NewRegistry()
	for ct, c := range r.codecs {
		clone.codecs[ct] = c
	}
	return clone
}

// DefaultRegistry provides a global registry instance for convenience.
// Buckets use it unless configured with their own registry.
var DefaultRegistry = NewDefaultRegistry()

// Register is a convenience function that registers a codec with the default registry.
func Register(c Codec) {
	DefaultRegistry.Register(c)
}

// Get is a convenience function that retrieves a codec from the default registry.
func Get(contentType string) (Codec, bool) {
	return DefaultRegistry.Get(contentType)
}
