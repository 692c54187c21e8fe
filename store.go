package silo

import (
	"context"
	"fmt"
	"iter"
	"time"
)

// Config declares a Store's pipeline: one chain per axis plus the options
// the member transforms require. Chains are immutable once accepted.
type Config struct {
	// Keys is the ordered transform chain applied to keys.
	Keys []string

	// Values is the ordered transform chain applied to values.
	Values []string

	// Options carries transform configuration.
	Options Options
}

// Store decorates a Backend with a compiled transform pipeline. Writes
// encode, reads decode, and the per-call Raw option bypasses value
// transforms only. A Store holds no mutable state beyond the backend it
// wraps and is safe for concurrent use if the backend is.
type Store struct {
	backend Backend
	pipe    *Pipeline
}

// New compiles cfg and wraps backend. Every configuration error (unknown
// transform, grammar violation, irreversible value transform, missing
// option) is reported here, before any backend I/O.
func New(backend Backend, cfg Config) (*Store, error) {
	pipe, err := Compile(cfg.Keys, cfg.Values, cfg.Options)
	if err != nil {
		return nil, err
	}
	return &Store{backend: backend, pipe: pipe}, nil
}

// Pipeline exposes the compiled pipeline, mainly for callers that encode
// out-of-band (migrations, debugging).
func (s *Store) Pipeline() *Pipeline {
	return s.pipe
}

// Exists reports whether key is present.
func (s *Store) Exists(key string, opts ...CallOption) (bool, error) {
	co := resolveCallOptions(s.pipe, opts)
	k, err := s.pipe.EncodeKey(key)
	if err != nil {
		return false, err
	}
	return s.backend.Exists([]byte(k), co.backend)
}

// Load returns the value stored at key, decoded unless Raw() is passed.
// The second return is false when the key is absent; absence is not an
// error.
func (s *Store) Load(key string, opts ...CallOption) (any, bool, error) {
	start := time.Now()
	co := resolveCallOptions(s.pipe, opts)

	k, err := s.pipe.EncodeKey(key)
	if err != nil {
		return nil, false, err
	}
	raw, found, err := s.backend.Load([]byte(k), co.backend)
	if err != nil || !found {
		return nil, found, err
	}
	if co.raw {
		emitStoreRead(context.Background(), "load", len(raw), time.Since(start), nil)
		return raw, true, nil
	}

	v, err := s.pipe.DecodeValue(raw)
	if err != nil {
		emitCorruptValue(context.Background(), "load", err)
		return nil, false, err
	}
	emitStoreRead(context.Background(), "load", len(raw), time.Since(start), nil)
	return v, true, nil
}

// Store writes value at key, encoding both unless Raw() bypasses the value
// side. In raw mode the value must be []byte or string.
func (s *Store) Store(key string, value any, opts ...CallOption) error {
	start := time.Now()
	co := resolveCallOptions(s.pipe, opts)

	k, err := s.pipe.EncodeKey(key)
	if err != nil {
		return err
	}
	b, err := s.encodeValue(value, co)
	if err != nil {
		return err
	}
	err = s.backend.Store([]byte(k), b, co.backend)
	emitStoreWrite(context.Background(), "store", len(b), time.Since(start), err)
	return err
}

// Create writes value at key only if key is absent. Atomicity is the
// backend's; this layer only transforms. It reports whether the insert
// happened.
func (s *Store) Create(key string, value any, opts ...CallOption) (bool, error) {
	start := time.Now()
	co := resolveCallOptions(s.pipe, opts)

	k, err := s.pipe.EncodeKey(key)
	if err != nil {
		return false, err
	}
	b, err := s.encodeValue(value, co)
	if err != nil {
		return false, err
	}
	created, err := s.backend.Create([]byte(k), b, co.backend)
	emitStoreWrite(context.Background(), "create", len(b), time.Since(start), err)
	return created, err
}

// Delete removes key and returns the value it held, decoded unless Raw().
func (s *Store) Delete(key string, opts ...CallOption) (any, bool, error) {
	co := resolveCallOptions(s.pipe, opts)

	k, err := s.pipe.EncodeKey(key)
	if err != nil {
		return nil, false, err
	}
	raw, found, err := s.backend.Delete([]byte(k), co.backend)
	if err != nil || !found {
		return nil, found, err
	}
	if co.raw {
		return raw, true, nil
	}

	v, err := s.pipe.DecodeValue(raw)
	if err != nil {
		emitCorruptValue(context.Background(), "delete", err)
		return nil, false, err
	}
	return v, true, nil
}

// Increment adjusts the counter at key by amount and returns the new total.
// Counter values live outside the value pipeline; only the key is encoded.
func (s *Store) Increment(key string, amount int64, opts ...CallOption) (int64, error) {
	co := resolveCallOptions(s.pipe, opts)
	k, err := s.pipe.EncodeKey(key)
	if err != nil {
		return 0, err
	}
	return s.backend.Increment([]byte(k), amount, co.backend)
}

// Clear removes every entry from the backend.
func (s *Store) Clear() error {
	return s.backend.Clear()
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// IterKeys yields every key, decoded. With an irreversible key chain the
// stored (encoded) keys are yielded as-is. The sequence is finite and
// restartable only if the backend's iteration is.
func (s *Store) IterKeys() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for k, err := range s.backend.Keys() {
			if err != nil {
				yield("", err)
				return
			}
			dk, derr := s.pipe.DecodeKey(string(k))
			if derr != nil {
				yield("", derr)
				return
			}
			if !yield(dk, nil) {
				return
			}
		}
	}
}

// IterValues yields every value, decoded. Enumeration always decodes; raw
// bypass is a per-key operation and is not supported here.
func (s *Store) IterValues() iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for raw, err := range s.backend.Values() {
			if err != nil {
				yield(nil, err)
				return
			}
			v, derr := s.pipe.DecodeValue(raw)
			if derr != nil {
				emitCorruptValue(context.Background(), "iterate", derr)
				yield(nil, derr)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// IterEntries yields every pair with both sides decoded, preserving backend
// iteration order. Each pair is decoded exactly once.
func (s *Store) IterEntries() iter.Seq2[Pair, error] {
	return func(yield func(Pair, error) bool) {
		for e, err := range s.backend.Entries() {
			if err != nil {
				yield(Pair{}, err)
				return
			}
			k, derr := s.pipe.DecodeKey(string(e.Key))
			if derr != nil {
				yield(Pair{}, derr)
				return
			}
			v, derr := s.pipe.DecodeValue(e.Value)
			if derr != nil {
				emitCorruptValue(context.Background(), "iterate", derr)
				yield(Pair{}, derr)
				return
			}
			if !yield(Pair{Key: k, Value: v}, nil) {
				return
			}
		}
	}
}

// Keys materializes IterKeys.
func (s *Store) Keys() ([]string, error) {
	var out []string
	for k, err := range s.IterKeys() {
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// Values materializes IterValues.
func (s *Store) Values() ([]any, error) {
	var out []any
	for v, err := range s.IterValues() {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Entries materializes IterEntries.
func (s *Store) Entries() ([]Pair, error) {
	var out []Pair
	for p, err := range s.IterEntries() {
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// encodeValue applies the value pipeline, or in raw mode coerces the
// caller's value to bytes untouched.
func (s *Store) encodeValue(value any, co callOptions) ([]byte, error) {
	if !co.raw {
		return s.pipe.EncodeValue(value)
	}
	switch b := value.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	}
	return nil, fmt.Errorf("raw mode requires []byte or string, got %T", value)
}
