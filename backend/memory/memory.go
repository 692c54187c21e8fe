// Package memory provides an in-process silo.Backend backed by a map.
//
// Iteration is deterministic: keys are visited in lexicographic order.
// The backend is safe for concurrent use.
package memory

import (
	"iter"
	"sort"
	"strconv"
	"sync"

	"github.com/zoobzio/silo"
)

// Backend stores entries in a mutex-guarded map.
type Backend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty in-memory backend.
func New() *Backend {
	return &Backend{data: make(map[string][]byte)}
}

// Exists reports whether key is present.
func (b *Backend) Exists(key []byte, _ map[string]any) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.data[string(key)]
	return ok, nil
}

// Load returns a copy of the value stored at key.
func (b *Backend) Load(key []byte, _ map[string]any) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Store writes value at key, replacing any previous value.
func (b *Backend) Store(key, value []byte, _ map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[string(key)] = append([]byte(nil), value...)
	return nil
}

// Delete removes key and returns the value it held.
func (b *Backend) Delete(key []byte, _ map[string]any) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	delete(b.data, string(key))
	return v, true, nil
}

// Create writes value only if key is absent, under the write lock.
func (b *Backend) Create(key, value []byte, _ map[string]any) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[string(key)]; ok {
		return false, nil
	}
	b.data[string(key)] = append([]byte(nil), value...)
	return true, nil
}

// Increment adjusts the ASCII-decimal counter at key.
func (b *Backend) Increment(key []byte, amount int64, _ map[string]any) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var cur int64
	if v, ok := b.data[string(key)]; ok {
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, err
		}
		cur = n
	}
	cur += amount
	b.data[string(key)] = []byte(strconv.FormatInt(cur, 10))
	return cur, nil
}

// Clear removes every entry.
func (b *Backend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make(map[string][]byte)
	return nil
}

// Close is a no-op for the in-memory backend.
func (b *Backend) Close() error {
	return nil
}

// Keys yields every key in lexicographic order. The sequence iterates a
// snapshot, so it is restartable and unaffected by concurrent writes.
func (b *Backend) Keys() iter.Seq2[[]byte, error] {
	keys := b.snapshotKeys()
	return func(yield func([]byte, error) bool) {
		for _, k := range keys {
			if !yield([]byte(k), nil) {
				return
			}
		}
	}
}

// Values yields every value in key order.
func (b *Backend) Values() iter.Seq2[[]byte, error] {
	entries := b.snapshot()
	return func(yield func([]byte, error) bool) {
		for _, e := range entries {
			if !yield(e.Value, nil) {
				return
			}
		}
	}
}

// Entries yields every pair in key order.
func (b *Backend) Entries() iter.Seq2[silo.Entry, error] {
	entries := b.snapshot()
	return func(yield func(silo.Entry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (b *Backend) snapshotKeys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *Backend) snapshot() []silo.Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]silo.Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, silo.Entry{
			Key:   []byte(k),
			Value: append([]byte(nil), b.data[k]...),
		})
	}
	return entries
}
