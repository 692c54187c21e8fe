package silo

// Option names used in Required/Consumes declarations and in configuration
// files. The Options struct is the typed form of the same bag.
const (
	OptionCodec  = "codec"
	OptionPrefix = "prefix"
	OptionSecret = "secret"
	OptionAESKey = "aeskey"
	OptionMaxLen = "maxlen"
)

// Options carries transform configuration, supplied once at construction.
// Each field is read only by the transforms that declare it; a field is
// "set" when it is non-zero.
type Options struct {
	// Codec backs the serialize transform. Defaults to JSON.
	Codec Codec

	// Prefix is the namespace string prepended by the prefix transform.
	Prefix string

	// Secret keys the hmac transform.
	Secret []byte

	// AESKey keys the aes transform. Must be 16, 24, or 32 bytes.
	AESKey []byte

	// MaxKeyLen bounds encoded keys for the truncate transform.
	MaxKeyLen int
}

// isSet reports whether the named option has a usable value.
func (o *Options) isSet(name string) bool {
	switch name {
	case OptionCodec:
		return true // serialize falls back to JSON
	case OptionPrefix:
		return o.Prefix != ""
	case OptionSecret:
		return len(o.Secret) > 0
	case OptionAESKey:
		return len(o.AESKey) > 0
	case OptionMaxLen:
		return o.MaxKeyLen > 0
	}
	return false
}

// codec returns the configured serializer or the JSON default.
func (o *Options) codec() Codec {
	if o.Codec != nil {
		return o.Codec
	}
	return defaultCodec{}
}

// clone copies o so a compiled pipeline cannot observe later caller
// mutation of the byte slices.
func (o Options) clone() Options {
	if o.Secret != nil {
		o.Secret = append([]byte(nil), o.Secret...)
	}
	if o.AESKey != nil {
		o.AESKey = append([]byte(nil), o.AESKey...)
	}
	return o
}

// rawKey is the per-call bag key reserved for the raw flag. It is always
// filtered before delegation, alongside every pipeline-consumed key.
const rawKey = "raw"

// callOptions is the resolved per-call option set.
type callOptions struct {
	raw     bool
	backend map[string]any
}

// CallOption adjusts a single Store operation.
type CallOption func(*callOptions)

// Raw disables value encode/decode for one call. Keys are still transformed,
// since the encoded key is the addressing identifier. Stored values must be
// []byte or string in raw mode, and loads return the backend bytes verbatim.
func Raw() CallOption {
	return func(c *callOptions) { c.raw = true }
}

// BackendOption forwards an arbitrary key-value option to the backend.
// Keys consumed by the pipeline (prefix, secret, aeskey, maxlen, codec, raw)
// are stripped before delegation and never reach the backend.
func BackendOption(key string, value any) CallOption {
	return func(c *callOptions) {
		if c.backend == nil {
			c.backend = make(map[string]any)
		}
		c.backend[key] = value
	}
}

// resolveCallOptions folds CallOptions into a callOptions value with the
// pipeline-only keys already filtered from the backend bag.
func resolveCallOptions(p *Pipeline, opts []CallOption) callOptions {
	var c callOptions
	for _, opt := range opts {
		opt(&c)
	}
	c.backend = p.filterOptions(c.backend)
	return c
}
