package silo_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/zoobzio/silo"
	"github.com/zoobzio/silo/backend/memory"
)

// recordingBackend wraps the memory backend and captures the option bag
// forwarded with each operation.
type recordingBackend struct {
	*memory.Backend
	bags []map[string]any
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{Backend: memory.New()}
}

func (r *recordingBackend) Load(key []byte, opts map[string]any) ([]byte, bool, error) {
	r.bags = append(r.bags, opts)
	return r.Backend.Load(key, opts)
}

func (r *recordingBackend) Store(key, value []byte, opts map[string]any) error {
	r.bags = append(r.bags, opts)
	return r.Backend.Store(key, value, opts)
}

func TestStore_PrefixSerializeScenario(t *testing.T) {
	backend := memory.New()
	store, err := silo.New(backend, silo.Config{
		Keys:    []string{"prefix"},
		Values:  []string{"serialize"},
		Options: silo.Options{Prefix: "app:"},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := store.Store("a", map[string]any{"x": float64(1)}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	// The backend must see the encoded key and serialized bytes.
	raw, found, err := backend.Load([]byte("app:a"), nil)
	if err != nil || !found {
		t.Fatalf("backend missing key %q (found=%v, err=%v)", "app:a", found, err)
	}
	var stored map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("backend value is not JSON: %v", err)
	}
	if stored["x"] != float64(1) {
		t.Errorf("backend value = %#v", stored)
	}

	v, found, err := store.Load("a")
	if err != nil || !found {
		t.Fatalf("Load() = (%v, %v, %v)", v, found, err)
	}
	if !reflect.DeepEqual(v, map[string]any{"x": float64(1)}) {
		t.Errorf("Load() = %#v, want map[x:1]", v)
	}
}

func TestStore_RawBypass(t *testing.T) {
	backend := memory.New()
	store, err := silo.New(backend, silo.Config{
		Values:  []string{"serialize", "hmac"},
		Options: silo.Options{Secret: []byte("s")},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := store.Store("k", []byte("v"), silo.Raw()); err != nil {
		t.Fatalf("Store(raw) error: %v", err)
	}

	// No transform ran: the backend holds the bytes verbatim.
	raw, _, _ := backend.Load([]byte("k"), nil)
	if !bytes.Equal(raw, []byte("v")) {
		t.Errorf("backend value = %q, want %q", raw, "v")
	}

	v, found, err := store.Load("k", silo.Raw())
	if err != nil || !found {
		t.Fatalf("Load(raw) = (%v, %v, %v)", v, found, err)
	}
	if !bytes.Equal(v.([]byte), []byte("v")) {
		t.Errorf("Load(raw) = %q, want %q", v, "v")
	}
}

func TestStore_AbsentIsNotAnError(t *testing.T) {
	store, err := silo.New(memory.New(), silo.Config{Values: []string{"serialize"}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	v, found, err := store.Load("missing")
	if err != nil {
		t.Fatalf("Load() error on absent key: %v", err)
	}
	if found || v != nil {
		t.Errorf("Load() = (%v, %v), want (nil, false)", v, found)
	}

	v, found, err = store.Delete("missing")
	if err != nil {
		t.Fatalf("Delete() error on absent key: %v", err)
	}
	if found || v != nil {
		t.Errorf("Delete() = (%v, %v), want (nil, false)", v, found)
	}
}

func TestStore_OptionFilter(t *testing.T) {
	backend := newRecordingBackend()
	store, err := silo.New(backend, silo.Config{
		Keys:   []string{"prefix", "truncate"},
		Values: []string{"serialize", "hmac"},
		Options: silo.Options{
			Prefix:    "app:",
			Secret:    []byte("s"),
			MaxKeyLen: 64,
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	err = store.Store("a", "v",
		silo.BackendOption("prefix", "smuggled"),
		silo.BackendOption("secret", "smuggled"),
		silo.BackendOption("maxlen", 1),
		silo.BackendOption("codec", "smuggled"),
		silo.BackendOption("raw", true),
		silo.BackendOption("trace_id", "t-1"),
	)
	if err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	if len(backend.bags) != 1 {
		t.Fatalf("recorded %d bags, want 1", len(backend.bags))
	}
	want := map[string]any{"trace_id": "t-1"}
	if !reflect.DeepEqual(backend.bags[0], want) {
		t.Errorf("forwarded bag = %#v, want %#v", backend.bags[0], want)
	}
}

func TestStore_CreateIncrementExists(t *testing.T) {
	store, err := silo.New(memory.New(), silo.Config{
		Keys:    []string{"prefix"},
		Values:  []string{"serialize"},
		Options: silo.Options{Prefix: "app:"},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	created, err := store.Create("a", "first")
	if err != nil || !created {
		t.Fatalf("Create() = (%v, %v), want (true, nil)", created, err)
	}
	created, err = store.Create("a", "second")
	if err != nil || created {
		t.Fatalf("Create() on existing = (%v, %v), want (false, nil)", created, err)
	}
	v, _, _ := store.Load("a")
	if v != "first" {
		t.Errorf("Create() overwrote: got %v", v)
	}

	ok, err := store.Exists("a")
	if err != nil || !ok {
		t.Fatalf("Exists() = (%v, %v)", ok, err)
	}
	ok, err = store.Exists("b")
	if err != nil || ok {
		t.Fatalf("Exists() on absent = (%v, %v)", ok, err)
	}

	total, err := store.Increment("hits", 2)
	if err != nil || total != 2 {
		t.Fatalf("Increment() = (%d, %v), want 2", total, err)
	}
	total, err = store.Increment("hits", 3)
	if err != nil || total != 5 {
		t.Fatalf("Increment() = (%d, %v), want 5", total, err)
	}
}

func TestStore_Delete(t *testing.T) {
	store, err := silo.New(memory.New(), silo.Config{Values: []string{"serialize"}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := store.Store("a", "v"); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	v, found, err := store.Delete("a")
	if err != nil || !found {
		t.Fatalf("Delete() = (%v, %v, %v)", v, found, err)
	}
	if v != "v" {
		t.Errorf("Delete() returned %v, want decoded %q", v, "v")
	}
	if ok, _ := store.Exists("a"); ok {
		t.Error("key still present after Delete()")
	}
}

func TestStore_CorruptValueScenario(t *testing.T) {
	backend := memory.New()
	store, err := silo.New(backend, silo.Config{
		Values:  []string{"serialize", "hmac"},
		Options: silo.Options{Secret: []byte("s")},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := store.Store("a", "v"); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	// Corrupt one byte of the backend-stored payload.
	raw, _, _ := backend.Load([]byte("a"), nil)
	raw[0] ^= 0xFF
	if err := backend.Store([]byte("a"), raw, nil); err != nil {
		t.Fatalf("backend Store() error: %v", err)
	}

	_, _, err = store.Load("a")
	if !errors.Is(err, silo.ErrCorruptValue) {
		t.Fatalf("Load() error = %v, want ErrCorruptValue", err)
	}
}

func TestStore_Iteration(t *testing.T) {
	store, err := silo.New(memory.New(), silo.Config{
		Keys:    []string{"prefix"},
		Values:  []string{"serialize"},
		Options: silo.Options{Prefix: "app:"},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	want := map[string]any{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		if err := store.Store(k, v); err != nil {
			t.Fatalf("Store(%q) error: %v", k, err)
		}
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys() error: %v", err)
	}
	// Memory backend iterates in encoded-key order; with a shared prefix
	// that matches semantic order.
	if !reflect.DeepEqual(keys, []string{"a", "b", "c"}) {
		t.Errorf("Keys() = %v", keys)
	}

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("Entries() error: %v", err)
	}
	if len(entries) != len(want) {
		t.Fatalf("Entries() yielded %d pairs, want %d", len(entries), len(want))
	}
	for i, p := range entries {
		if p.Key != keys[i] {
			t.Errorf("entry %d key %q out of order", i, p.Key)
		}
		if p.Value != want[p.Key] {
			t.Errorf("entry %q = %v, want %v", p.Key, p.Value, want[p.Key])
		}
	}

	values, err := store.Values()
	if err != nil {
		t.Fatalf("Values() error: %v", err)
	}
	if len(values) != len(want) {
		t.Errorf("Values() yielded %d, want %d", len(values), len(want))
	}
}

func TestStore_IterationStopsEarly(t *testing.T) {
	store, err := silo.New(memory.New(), silo.Config{Values: []string{"serialize"}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := store.Store(k, k); err != nil {
			t.Fatalf("Store() error: %v", err)
		}
	}

	var seen int
	for _, err := range store.IterEntries() {
		if err != nil {
			t.Fatalf("IterEntries() error: %v", err)
		}
		seen++
		if seen == 2 {
			break
		}
	}
	if seen != 2 {
		t.Errorf("consumed %d entries, want 2", seen)
	}
}

func TestStore_Clear(t *testing.T) {
	store, err := silo.New(memory.New(), silo.Config{Values: []string{"serialize"}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := store.Store("a", "v"); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys() error: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Keys() after Clear() = %v", keys)
	}
}

func TestStore_RawRequiresBytes(t *testing.T) {
	store, err := silo.New(memory.New(), silo.Config{Values: []string{"serialize"}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := store.Store("a", map[string]any{"x": 1}, silo.Raw()); err == nil {
		t.Fatal("expected error storing a map in raw mode")
	}
}
