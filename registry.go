package silo

import "sync"

// Transform is one named stage of a pipeline. A transform applies to the key
// axis, the value axis, or both, depending on which function pairs are set.
//
// Key functions operate on strings because a transformed key must remain a
// comparable backend identifier. Value functions operate on any: a serializer
// stage turns arbitrary values into bytes, every later stage must accept and
// return []byte.
//
// All functions must be pure. They receive the pipeline's immutable Options
// and may be called concurrently.
type Transform struct {
	// Name identifies the transform in chain configuration.
	Name string

	// Token is the single-character grammar class (see the Token constants).
	Token byte

	// Irreversible marks transforms with no decode (digests, truncation).
	// Irreversible transforms are rejected in value chains and disable key
	// decoding for any chain that contains them.
	Irreversible bool

	// Required lists option names that must be set for this transform.
	Required []string

	// Consumes lists option keys this transform reads. These are stripped
	// from per-call option bags before they reach the backend. Defaults to
	// Required when nil.
	Consumes []string

	// EncodeKey and DecodeKey implement the key axis. DecodeKey is nil for
	// irreversible transforms.
	EncodeKey func(key string, o *Options) (string, error)
	DecodeKey func(key string, o *Options) (string, error)

	// EncodeValue and DecodeValue implement the value axis.
	EncodeValue func(v any, o *Options) (any, error)
	DecodeValue func(v any, o *Options) (any, error)
}

var (
	transforms   = make(map[string]Transform)
	transformsMu sync.RWMutex
)

// Register adds a transform to the catalog. It fails with
// ErrDuplicateTransform if the name is already taken. Registration normally
// happens at process start, before any pipeline is compiled.
func Register(t Transform) error {
	transformsMu.Lock()
	defer transformsMu.Unlock()

	if _, ok := transforms[t.Name]; ok {
		return &ChainError{Err: ErrDuplicateTransform, Transform: t.Name}
	}
	if t.Consumes == nil {
		t.Consumes = t.Required
	}
	transforms[t.Name] = t
	return nil
}

// mustRegister registers a built-in and panics on conflict. Built-in names
// collide only if init ran twice, which cannot happen.
func mustRegister(t Transform) {
	if err := Register(t); err != nil {
		panic(err)
	}
}

// lookup returns the transform registered under name.
func lookup(name string) (Transform, bool) {
	transformsMu.RLock()
	defer transformsMu.RUnlock()
	t, ok := transforms[name]
	return t, ok
}
