// Package silo wraps a key-value backend with a configurable chain of
// reversible transformations.
//
// A Store sits in front of any Backend and transparently encodes keys and
// values on the way in and decodes them on the way out. Which transforms run,
// and in which order, is declared once at construction as two chains: one for
// keys and one for values.
//
// # Chains
//
// A chain is an ordered list of registered transform names. Each axis has a
// grammar restricting legal orderings, checked once at construction:
//
//   - key chains: an optional prefix, zero or more order-preserving
//     encodings, then an optional terminal digest or truncation
//   - value chains: zero or more serialization/compression stages, an
//     optional cipher, then an optional terminal HMAC wrap
//
// Chains are compiled into a single Pipeline of composed closures, so the
// hot path never walks a transform list.
//
// # Basic Usage
//
//	store, _ := silo.New(memory.New(), silo.Config{
//	    Keys:   []string{"prefix"},
//	    Values: []string{"serialize", "zstd", "hmac"},
//	    Options: silo.Options{
//	        Prefix: "app:",
//	        Secret: []byte("s3cret"),
//	    },
//	})
//
//	store.Store("user:1", map[string]any{"name": "alice"})
//	v, ok, _ := store.Load("user:1")
//
// # Built-in Transforms
//
//   - serialize - pluggable codec (JSON by default; see Options.Codec)
//   - zstd, gzip - compression
//   - aes - AES-GCM encryption (requires aeskey)
//   - hmac - SHA-256 MAC appended on encode, verified on decode (requires secret)
//   - prefix - key namespace prefix (requires prefix)
//   - hex, base64 - key escaping
//   - sha256, blake2b - irreversible key digests
//   - truncate - irreversible key truncation (requires maxlen)
//
// # Raw Mode
//
// Passing Raw() to a call bypasses value transforms for that call only. Keys
// are always transformed: the encoded key is the addressing identifier.
//
// # Errors
//
// Misconfiguration (unknown transform, grammar violation, missing option,
// irreversible transform in a value chain) fails at construction, before any
// backend I/O. At runtime a stored payload that no longer decodes surfaces
// as ErrCorruptValue; backend errors pass through unchanged. An absent key
// is never an error.
package silo

import "iter"

// Codec provides content-type aware marshaling for the serialize transform.
type Codec interface {
	// ContentType returns the MIME type for this codec (e.g., "application/json").
	ContentType() string

	// Marshal encodes v into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error
}

// Entry is one key-value pair at the backend (encoded) level.
type Entry struct {
	Key   []byte
	Value []byte
}

// Pair is one key-value pair at the semantic (decoded) level.
type Pair struct {
	Key   string
	Value any
}

// Backend is the storage engine a Store decorates. Implementations operate
// on already-encoded keys and values and provide whatever atomicity and
// durability they provide; the decorator adds none.
//
// The opts map carries caller options that survived pipeline filtering.
// Implementations that recognize no options may ignore it.
type Backend interface {
	// Exists reports whether key is present.
	Exists(key []byte, opts map[string]any) (bool, error)

	// Load returns the value stored at key. The second return is false
	// when the key is absent; absence is not an error.
	Load(key []byte, opts map[string]any) ([]byte, bool, error)

	// Store writes value at key, replacing any previous value.
	Store(key, value []byte, opts map[string]any) error

	// Delete removes key and returns the value it held, if any.
	Delete(key []byte, opts map[string]any) ([]byte, bool, error)

	// Create writes value at key only if key is absent, atomically.
	// It reports whether the insert happened.
	Create(key, value []byte, opts map[string]any) (bool, error)

	// Increment adjusts the counter at key by amount and returns the new
	// total. Counters are stored as ASCII decimal; an absent key counts
	// as zero.
	Increment(key []byte, amount int64, opts map[string]any) (int64, error)

	// Clear removes every entry.
	Clear() error

	// Close releases backend resources.
	Close() error

	// Keys yields every stored key. The sequence is finite and single-use
	// unless the implementation documents otherwise.
	Keys() iter.Seq2[[]byte, error]

	// Values yields every stored value.
	Values() iter.Seq2[[]byte, error]

	// Entries yields every stored pair.
	Entries() iter.Seq2[Entry, error]
}
