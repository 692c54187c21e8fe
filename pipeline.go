package silo

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Pipeline is the compiled form of one (key chain, value chain) pair. The
// four composed closures close over an immutable copy of the Options they
// were compiled with, hold no mutable state, and are safe for concurrent use.
type Pipeline struct {
	keyNames   []string
	valueNames []string

	encodeKey   func(string) (string, error)
	decodeKey   func(string) (string, error)
	encodeValue func(any) ([]byte, error)
	decodeValue func([]byte) (any, error)

	required      []string
	consumed      map[string]struct{}
	keyReversible bool
}

// resolvedChains is a validated pair of chains. Resolution and grammar
// validation depend only on the chain names, so results are shared across
// pipelines via the chain cache; option binding happens per compile.
type resolvedChains struct {
	keys   []Transform
	values []Transform
}

// chainCache shares resolved chains between pipelines compiled from the same
// configuration. First access computes and publishes under the write lock.
var (
	chainCache   = make(map[string]*resolvedChains)
	chainCacheMu sync.RWMutex
)

// Compile validates the two chains and builds a Pipeline with options bound.
// All configuration errors surface here, before any backend I/O:
// ErrUnknownTransform, ErrIrreversibleChain, ErrInvalidChainGrammar, and
// ErrMissingOption.
func Compile(keys, values []string, opts Options) (*Pipeline, error) {
	rc, err := resolveChains(keys, values)
	if err != nil {
		return nil, err
	}

	o := opts.clone()
	p := &Pipeline{
		keyNames:      append([]string(nil), keys...),
		valueNames:    append([]string(nil), values...),
		consumed:      make(map[string]struct{}),
		keyReversible: true,
	}

	for _, t := range rc.keys {
		if err := requireOptions(t, AxisKey, &o, p); err != nil {
			return nil, err
		}
		if t.Irreversible {
			p.keyReversible = false
		}
	}
	for _, t := range rc.values {
		if err := requireOptions(t, AxisValue, &o, p); err != nil {
			return nil, err
		}
	}

	p.encodeKey = composeKeyEncode(rc.keys, &o)
	p.decodeKey = composeKeyDecode(rc.keys, &o, p.keyReversible)
	p.encodeValue = composeValueEncode(rc.values, &o)
	p.decodeValue = composeValueDecode(rc.values, &o)

	emitPipelineCompiled(context.Background(), strings.Join(keys, ","), strings.Join(values, ","))
	return p, nil
}

// resolveChains looks up and validates both chains, consulting the cache
// first. Only successful resolutions are published.
func resolveChains(keys, values []string) (*resolvedChains, error) {
	id := strings.Join(keys, ",") + "|" + strings.Join(values, ",")

	chainCacheMu.RLock()
	if rc, ok := chainCache[id]; ok {
		chainCacheMu.RUnlock()
		return rc, nil
	}
	chainCacheMu.RUnlock()

	chainCacheMu.Lock()
	defer chainCacheMu.Unlock()

	if rc, ok := chainCache[id]; ok {
		return rc, nil
	}

	rc := &resolvedChains{}
	var err error
	if rc.keys, err = resolveChain(AxisKey, keys); err != nil {
		return nil, err
	}
	if rc.values, err = resolveChain(AxisValue, values); err != nil {
		return nil, err
	}

	chainCache[id] = rc
	return rc, nil
}

// resolveChain resolves one axis: name lookup, reversibility, applicability,
// then grammar.
func resolveChain(axis Axis, names []string) ([]Transform, error) {
	chain := make([]Transform, 0, len(names))
	for _, name := range names {
		t, ok := lookup(name)
		if !ok {
			return nil, newChainError(ErrUnknownTransform, axis, names, name)
		}
		if axis == AxisValue && t.Irreversible {
			return nil, newChainError(ErrIrreversibleChain, axis, names, name)
		}
		if axis == AxisKey && t.EncodeKey == nil {
			return nil, newChainError(ErrInvalidChainGrammar, axis, names, name)
		}
		if axis == AxisValue && t.EncodeValue == nil {
			return nil, newChainError(ErrInvalidChainGrammar, axis, names, name)
		}
		chain = append(chain, t)
	}
	if err := validateChain(axis, names, chain); err != nil {
		return nil, err
	}
	return chain, nil
}

// requireOptions records a transform's option footprint on the pipeline and
// rejects missing required options.
func requireOptions(t Transform, axis Axis, o *Options, p *Pipeline) error {
	for _, name := range t.Required {
		if !o.isSet(name) {
			return newOptionError(name, t.Name, axis)
		}
		p.required = append(p.required, name)
	}
	for _, name := range t.Consumes {
		p.consumed[name] = struct{}{}
	}
	return nil
}

// composeKeyEncode folds each stage's EncodeKey in chain order.
func composeKeyEncode(chain []Transform, o *Options) func(string) (string, error) {
	return func(key string) (string, error) {
		var err error
		for _, t := range chain {
			if key, err = t.EncodeKey(key, o); err != nil {
				return "", fmt.Errorf("transform %q: %w", t.Name, err)
			}
		}
		return key, nil
	}
}

// composeKeyDecode folds DecodeKey over the reversed chain. A chain holding
// an irreversible stage cannot be inverted at all, so its decode is the
// identity and iteration yields stored keys as-is.
func composeKeyDecode(chain []Transform, o *Options, reversible bool) func(string) (string, error) {
	if !reversible {
		return func(key string) (string, error) { return key, nil }
	}
	return func(key string) (string, error) {
		var err error
		for i := len(chain) - 1; i >= 0; i-- {
			if key, err = chain[i].DecodeKey(key, o); err != nil {
				return "", newCorruptError(AxisKey, chain[i].Name, err)
			}
		}
		return key, nil
	}
}

// composeValueEncode folds each stage's EncodeValue in chain order. The
// result must be bytes by the time it reaches the backend; with an empty
// chain the caller's value itself must be byte-like.
func composeValueEncode(chain []Transform, o *Options) func(any) ([]byte, error) {
	return func(v any) ([]byte, error) {
		var err error
		for _, t := range chain {
			if v, err = t.EncodeValue(v, o); err != nil {
				return nil, fmt.Errorf("transform %q: %w", t.Name, err)
			}
		}
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
		return nil, fmt.Errorf("value chain produced %T, want []byte", v)
	}
}

// composeValueDecode folds DecodeValue over the reversed chain. Any stage
// failure means the stored payload is not what this configuration wrote, and
// surfaces as ErrCorruptValue.
func composeValueDecode(chain []Transform, o *Options) func([]byte) (any, error) {
	return func(b []byte) (any, error) {
		var v any = b
		var err error
		for i := len(chain) - 1; i >= 0; i-- {
			if v, err = chain[i].DecodeValue(v, o); err != nil {
				return nil, newCorruptError(AxisValue, chain[i].Name, err)
			}
		}
		return v, nil
	}
}

// EncodeKey runs the compiled key encoder.
func (p *Pipeline) EncodeKey(key string) (string, error) {
	return p.encodeKey(key)
}

// DecodeKey runs the compiled key decoder. For chains containing an
// irreversible transform this is the identity.
func (p *Pipeline) DecodeKey(key string) (string, error) {
	return p.decodeKey(key)
}

// EncodeValue runs the compiled value encoder.
func (p *Pipeline) EncodeValue(v any) ([]byte, error) {
	return p.encodeValue(v)
}

// DecodeValue runs the compiled value decoder.
func (p *Pipeline) DecodeValue(b []byte) (any, error) {
	return p.decodeValue(b)
}

// KeyReversible reports whether decoded keys round-trip, i.e. the key chain
// contains no irreversible transform.
func (p *Pipeline) KeyReversible() bool {
	return p.keyReversible
}

// Required returns the option names every member transform demands, in
// chain order (keys first).
func (p *Pipeline) Required() []string {
	return append([]string(nil), p.required...)
}

// filterOptions strips pipeline-consumed keys and the raw flag from a
// per-call bag. A nil or emptied bag comes back nil.
func (p *Pipeline) filterOptions(bag map[string]any) map[string]any {
	if len(bag) == 0 {
		return nil
	}
	out := make(map[string]any, len(bag))
	for k, v := range bag {
		if k == rawKey {
			continue
		}
		if _, ok := p.consumed[k]; ok {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
