package silo

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrUnknownTransform indicates a chain names a transform that is not registered.
	ErrUnknownTransform = errors.New("unknown transform")

	// ErrDuplicateTransform indicates Register was called with a name already taken.
	ErrDuplicateTransform = errors.New("duplicate transform")

	// ErrInvalidChainGrammar indicates a chain violates the ordering grammar for its axis.
	ErrInvalidChainGrammar = errors.New("invalid chain grammar")

	// ErrMissingOption indicates a transform's required option was not supplied.
	ErrMissingOption = errors.New("missing option")

	// ErrIrreversibleChain indicates an irreversible transform was placed in a value chain.
	ErrIrreversibleChain = errors.New("irreversible transform in value chain")

	// ErrCorruptValue indicates a stored payload failed to decode (tampered,
	// truncated, or written by a different configuration).
	ErrCorruptValue = errors.New("corrupt value")
)

// ChainError reports a configuration problem with an entire chain.
// It wraps a sentinel error with the axis and chain that triggered it.
type ChainError struct {
	Err       error    // Underlying sentinel error (ErrInvalidChainGrammar, etc.)
	Axis      Axis     // Axis the chain was configured for
	Chain     []string // The offending chain, in configured order
	Transform string   // Specific transform at fault, when known
}

func (e *ChainError) Error() string {
	switch {
	case len(e.Chain) == 0 && e.Transform != "":
		return fmt.Sprintf("%s: %q", e.Err.Error(), e.Transform)
	case e.Transform != "":
		return fmt.Sprintf("%s: %q in %s chain [%s]", e.Err.Error(), e.Transform, e.Axis, strings.Join(e.Chain, " "))
	}
	return fmt.Sprintf("%s: %s chain [%s]", e.Err.Error(), e.Axis, strings.Join(e.Chain, " "))
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// OptionError reports a required option that was absent at construction.
type OptionError struct {
	Err       error  // Underlying sentinel error (ErrMissingOption)
	Option    string // Option name the transform requires
	Transform string // Transform declaring the requirement
	Axis      Axis   // Axis of the chain the transform appears in
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("%s: %q required by transform %q (%s chain)", e.Err.Error(), e.Option, e.Transform, e.Axis)
}

func (e *OptionError) Unwrap() error {
	return e.Err
}

// CorruptError reports a runtime decode failure on backend-returned bytes.
// It is distinct from backend I/O errors, which propagate unwrapped.
type CorruptError struct {
	Err       error  // ErrCorruptValue
	Axis      Axis   // Axis being decoded
	Transform string // Stage that rejected the payload
	Cause     error  // Original error from the transform
}

func (e *CorruptError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s stage %q: %v", e.Err.Error(), e.Axis, e.Transform, e.Cause)
	}
	return fmt.Sprintf("%s: %s stage %q", e.Err.Error(), e.Axis, e.Transform)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// newChainError creates a ChainError for chain-level configuration failures.
func newChainError(sentinel error, axis Axis, chain []string, transform string) error {
	return &ChainError{
		Err:       sentinel,
		Axis:      axis,
		Chain:     chain,
		Transform: transform,
	}
}

// newOptionError creates an OptionError for a missing required option.
func newOptionError(option, transform string, axis Axis) error {
	return &OptionError{
		Err:       ErrMissingOption,
		Option:    option,
		Transform: transform,
		Axis:      axis,
	}
}

// newCorruptError creates a CorruptError for a decode failure.
func newCorruptError(axis Axis, transform string, cause error) error {
	return &CorruptError{
		Err:       ErrCorruptValue,
		Axis:      axis,
		Transform: transform,
		Cause:     cause,
	}
}
