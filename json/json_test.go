package json

import (
	"testing"
)

func TestNew(t *testing.T) {
	if New() == nil {
		t.Error("New() should return non-nil codec")
	}
}

func TestContentType(t *testing.T) {
	c := New()
	if c.ContentType() != "application/json" {
		t.Errorf("ContentType() = %q, want %q", c.ContentType(), "application/json")
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	c := New()

	type record struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	original := record{Name: "test", Value: 42}

	data, err := c.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var restored record
	if err := c.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if restored != original {
		t.Errorf("round-trip failed: got %+v, want %+v", restored, original)
	}
}

func TestUnmarshalIntoAny(t *testing.T) {
	c := New()

	data, err := c.Marshal(map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var out any
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok || m["x"] != float64(1) {
		t.Errorf("Unmarshal() = %#v", out)
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	c := New()
	var out any
	if err := c.Unmarshal([]byte("{not json"), &out); err == nil {
		t.Error("Unmarshal() should fail on malformed input")
	}
}
