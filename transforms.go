package silo

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

// Transform-level errors. Decode-side failures are wrapped in CorruptError
// by the pipeline; these remain inspectable via errors.Is on the Cause.
var (
	ErrInvalidKeySize  = errors.New("invalid key size")
	ErrCiphertextShort = errors.New("ciphertext too short")
	ErrMACMismatch     = errors.New("authentication mismatch")
)

// valueBytes coerces a value-stage input to bytes. Stages after the first
// always see []byte; the first stage may see a caller string.
func valueBytes(name string, v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	}
	return nil, fmt.Errorf("transform %q: value must be []byte or string, got %T", name, v)
}

// Shared zstd coder state. EncodeAll/DecodeAll are safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

func init() {
	mustRegister(Transform{
		Name:     "serialize",
		Token:    TokenSerialize,
		Consumes: []string{OptionCodec},
		EncodeValue: func(v any, o *Options) (any, error) {
			return o.codec().Marshal(v)
		},
		DecodeValue: func(v any, o *Options) (any, error) {
			b, err := valueBytes("serialize", v)
			if err != nil {
				return nil, err
			}
			var out any
			if err := o.codec().Unmarshal(b, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	})

	mustRegister(Transform{
		Name:  "zstd",
		Token: TokenCompress,
		EncodeValue: func(v any, _ *Options) (any, error) {
			b, err := valueBytes("zstd", v)
			if err != nil {
				return nil, err
			}
			return zstdEncoder.EncodeAll(b, nil), nil
		},
		DecodeValue: func(v any, _ *Options) (any, error) {
			b, err := valueBytes("zstd", v)
			if err != nil {
				return nil, err
			}
			return zstdDecoder.DecodeAll(b, nil)
		},
	})

	mustRegister(Transform{
		Name:  "gzip",
		Token: TokenCompress,
		EncodeValue: func(v any, _ *Options) (any, error) {
			b, err := valueBytes("gzip", v)
			if err != nil {
				return nil, err
			}
			var buf bytes.Buffer
			w := gzip.NewWriter(&buf)
			if _, err := w.Write(b); err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		DecodeValue: func(v any, _ *Options) (any, error) {
			b, err := valueBytes("gzip", v)
			if err != nil {
				return nil, err
			}
			r, err := gzip.NewReader(bytes.NewReader(b))
			if err != nil {
				return nil, err
			}
			defer r.Close()
			return io.ReadAll(r)
		},
	})

	mustRegister(Transform{
		Name:     "aes",
		Token:    TokenCipher,
		Required: []string{OptionAESKey},
		EncodeValue: func(v any, o *Options) (any, error) {
			b, err := valueBytes("aes", v)
			if err != nil {
				return nil, err
			}
			return aesSeal(o.AESKey, b)
		},
		DecodeValue: func(v any, o *Options) (any, error) {
			b, err := valueBytes("aes", v)
			if err != nil {
				return nil, err
			}
			return aesOpen(o.AESKey, b)
		},
	})

	mustRegister(Transform{
		Name:     "hmac",
		Token:    TokenMAC,
		Required: []string{OptionSecret},
		EncodeValue: func(v any, o *Options) (any, error) {
			b, err := valueBytes("hmac", v)
			if err != nil {
				return nil, err
			}
			mac := hmac.New(sha256.New, o.Secret)
			mac.Write(b)
			return mac.Sum(append([]byte(nil), b...)), nil
		},
		DecodeValue: func(v any, o *Options) (any, error) {
			b, err := valueBytes("hmac", v)
			if err != nil {
				return nil, err
			}
			if len(b) < sha256.Size {
				return nil, ErrCiphertextShort
			}
			payload, tag := b[:len(b)-sha256.Size], b[len(b)-sha256.Size:]
			mac := hmac.New(sha256.New, o.Secret)
			mac.Write(payload)
			if !hmac.Equal(tag, mac.Sum(nil)) {
				return nil, ErrMACMismatch
			}
			return payload, nil
		},
	})

	mustRegister(Transform{
		Name:     "prefix",
		Token:    TokenPrefix,
		Required: []string{OptionPrefix},
		EncodeKey: func(key string, o *Options) (string, error) {
			return o.Prefix + key, nil
		},
		DecodeKey: func(key string, o *Options) (string, error) {
			rest, ok := strings.CutPrefix(key, o.Prefix)
			if !ok {
				return "", fmt.Errorf("key %q lacks prefix %q", key, o.Prefix)
			}
			return rest, nil
		},
	})

	mustRegister(Transform{
		Name:  "hex",
		Token: TokenEncoding,
		EncodeKey: func(key string, _ *Options) (string, error) {
			return hex.EncodeToString([]byte(key)), nil
		},
		DecodeKey: func(key string, _ *Options) (string, error) {
			b, err := hex.DecodeString(key)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	})

	mustRegister(Transform{
		Name:  "base64",
		Token: TokenEncoding,
		EncodeKey: func(key string, _ *Options) (string, error) {
			return base64.URLEncoding.EncodeToString([]byte(key)), nil
		},
		DecodeKey: func(key string, _ *Options) (string, error) {
			b, err := base64.URLEncoding.DecodeString(key)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	})

	mustRegister(Transform{
		Name:         "sha256",
		Token:        TokenDigest,
		Irreversible: true,
		EncodeKey: func(key string, _ *Options) (string, error) {
			sum := sha256.Sum256([]byte(key))
			return hex.EncodeToString(sum[:]), nil
		},
	})

	mustRegister(Transform{
		Name:         "blake2b",
		Token:        TokenDigest,
		Irreversible: true,
		EncodeKey: func(key string, _ *Options) (string, error) {
			sum := blake2b.Sum256([]byte(key))
			return hex.EncodeToString(sum[:]), nil
		},
	})

	// Truncation is only safe when the pre-truncation key is otherwise
	// guaranteed unique. That guarantee belongs to the caller.
	mustRegister(Transform{
		Name:         "truncate",
		Token:        TokenTruncate,
		Irreversible: true,
		Required:     []string{OptionMaxLen},
		EncodeKey: func(key string, o *Options) (string, error) {
			if len(key) > o.MaxKeyLen {
				return key[:o.MaxKeyLen], nil
			}
			return key, nil
		},
	})
}

// aesSeal encrypts with AES-GCM, prepending the nonce to the ciphertext.
func aesSeal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// aesOpen reverses aesSeal.
func aesOpen(key, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrCiphertextShort
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("%w: must be 16, 24, or 32 bytes, got %d", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// defaultCodec is the stdlib JSON fallback for the serialize transform when
// no Codec is configured.
type defaultCodec struct{}

func (defaultCodec) ContentType() string { return "application/json" }

func (defaultCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (defaultCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
