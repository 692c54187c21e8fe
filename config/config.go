// Package config loads a silo pipeline declaration from YAML and opens the
// configured store.
//
// YAML shape:
//
//	backend:
//	  kind: bolt          # memory | bolt
//	  path: data/silo.db  # bolt only
//	keys:   [prefix, hex]
//	values: [serialize, zstd, hmac]
//	options:
//	  codec: msgpack      # json | msgpack | yaml (default json)
//	  prefix: "app:"
//	  secret: "s3cret"
//	  aeskey: ""          # hex encoded
//	  maxlen: 128
//
// Environment variables with the SILO_ prefix override file values, e.g.
// SILO_OPTIONS_SECRET overrides options.secret.
package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/zoobzio/silo"
	"github.com/zoobzio/silo/backend/bolt"
	"github.com/zoobzio/silo/backend/memory"
	jsoncodec "github.com/zoobzio/silo/json"
	msgpackcodec "github.com/zoobzio/silo/msgpack"
	yamlcodec "github.com/zoobzio/silo/yaml"
)

// envPrefix scopes environment overrides.
const envPrefix = "SILO_"

// Backend selects and parameterizes the storage engine.
type Backend struct {
	Kind string `koanf:"kind"`
	Path string `koanf:"path"`
}

// Options is the file form of silo.Options.
type Options struct {
	Codec  string `koanf:"codec"`
	Prefix string `koanf:"prefix"`
	Secret string `koanf:"secret"`
	AESKey string `koanf:"aeskey"`
	MaxLen int    `koanf:"maxlen"`
}

// Config is a full store declaration.
type Config struct {
	Backend Backend  `koanf:"backend"`
	Keys    []string `koanf:"keys"`
	Values  []string `koanf:"values"`
	Options Options  `koanf:"options"`
}

// Load reads path, applies SILO_* environment overrides, and returns the
// parsed configuration.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, err
	}
	_ = k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if cfg.Backend.Kind == "" {
		cfg.Backend.Kind = "memory"
	}
	return &cfg, nil
}

// Open builds the backend and compiles the pipeline. Misconfiguration
// (unknown backend kind, unknown codec, chain errors) is reported here.
func (c *Config) Open() (*silo.Store, error) {
	opts, err := c.siloOptions()
	if err != nil {
		return nil, err
	}

	var backend silo.Backend
	switch c.Backend.Kind {
	case "memory":
		backend = memory.New()
	case "bolt":
		if c.Backend.Path == "" {
			return nil, fmt.Errorf("backend %q requires a path", c.Backend.Kind)
		}
		backend, err = bolt.Open(c.Backend.Path)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported backend %q", c.Backend.Kind)
	}

	store, err := silo.New(backend, silo.Config{
		Keys:    c.Keys,
		Values:  c.Values,
		Options: opts,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// siloOptions converts the file form into typed transform options.
func (c *Config) siloOptions() (silo.Options, error) {
	opts := silo.Options{
		Prefix:    c.Options.Prefix,
		MaxKeyLen: c.Options.MaxLen,
	}
	if c.Options.Secret != "" {
		opts.Secret = []byte(c.Options.Secret)
	}
	if c.Options.AESKey != "" {
		key, err := hex.DecodeString(c.Options.AESKey)
		if err != nil {
			return opts, fmt.Errorf("aeskey is not valid hex: %w", err)
		}
		opts.AESKey = key
	}

	switch c.Options.Codec {
	case "", "json":
		opts.Codec = jsoncodec.New()
	case "msgpack":
		opts.Codec = msgpackcodec.New()
	case "yaml":
		opts.Codec = yamlcodec.New()
	default:
		return opts, fmt.Errorf("unsupported codec %q", c.Options.Codec)
	}
	return opts, nil
}
