package silo_test

import (
	"errors"
	"testing"

	"github.com/zoobzio/silo"
)

// fullOptions satisfies every built-in transform's requirements so grammar
// outcomes are not masked by option errors.
func fullOptions() silo.Options {
	return silo.Options{
		Prefix:    "app:",
		Secret:    []byte("s3cret"),
		AESKey:    make([]byte, 32),
		MaxKeyLen: 16,
	}
}

func TestCompile_ChainGrammar(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		values  []string
		wantErr error
	}{
		{name: "empty chains"},
		{name: "prefix only", keys: []string{"prefix"}},
		{name: "prefix then encodings", keys: []string{"prefix", "hex", "base64"}},
		{name: "terminal digest", keys: []string{"prefix", "hex", "sha256"}},
		{name: "terminal truncate", keys: []string{"prefix", "truncate"}},
		{name: "digest alone", keys: []string{"blake2b"}},
		{name: "serialize only", values: []string{"serialize"}},
		{name: "serialize compress", values: []string{"serialize", "zstd"}},
		{name: "full value chain", values: []string{"serialize", "gzip", "aes", "hmac"}},
		{name: "compress without serialize", values: []string{"zstd"}},
		{name: "hmac alone", values: []string{"hmac"}},

		{name: "digest before prefix", keys: []string{"sha256", "prefix"}, wantErr: silo.ErrInvalidChainGrammar},
		{name: "digest not terminal", keys: []string{"sha256", "hex"}, wantErr: silo.ErrInvalidChainGrammar},
		{name: "truncate not terminal", keys: []string{"truncate", "hex"}, wantErr: silo.ErrInvalidChainGrammar},
		{name: "two prefixes", keys: []string{"prefix", "prefix"}, wantErr: silo.ErrInvalidChainGrammar},
		{name: "serialize in key chain", keys: []string{"serialize"}, wantErr: silo.ErrInvalidChainGrammar},
		{name: "hmac before serialize", values: []string{"hmac", "serialize"}, wantErr: silo.ErrInvalidChainGrammar},
		{name: "prefix in value chain", values: []string{"prefix"}, wantErr: silo.ErrInvalidChainGrammar},
		{name: "cipher before compress", values: []string{"aes", "zstd"}, wantErr: silo.ErrInvalidChainGrammar},

		{name: "digest in value chain", values: []string{"sha256"}, wantErr: silo.ErrIrreversibleChain},
		{name: "truncate in value chain", values: []string{"serialize", "truncate"}, wantErr: silo.ErrIrreversibleChain},

		{name: "unknown key transform", keys: []string{"bogus"}, wantErr: silo.ErrUnknownTransform},
		{name: "unknown value transform", values: []string{"serialize", "bogus"}, wantErr: silo.ErrUnknownTransform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := silo.Compile(tt.keys, tt.values, fullOptions())
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Compile() error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Compile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompile_ChainErrorDetail(t *testing.T) {
	_, err := silo.Compile([]string{"bogus"}, nil, silo.Options{})

	var chainErr *silo.ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("expected *ChainError, got %T", err)
	}
	if chainErr.Axis != silo.AxisKey {
		t.Errorf("Axis = %q, want %q", chainErr.Axis, silo.AxisKey)
	}
	if chainErr.Transform != "bogus" {
		t.Errorf("Transform = %q, want %q", chainErr.Transform, "bogus")
	}
}
