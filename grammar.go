package silo

import "regexp"

// Axis names which side of a pipeline a chain applies to.
type Axis string

const (
	AxisKey   Axis = "key"
	AxisValue Axis = "value"
)

// Grammar tokens. Every transform declares one, and a chain is validated by
// matching its token string against the pattern for its axis.
const (
	TokenPrefix    byte = 'P' // namespace prefix
	TokenEncoding  byte = 'E' // order-preserving escaping (hex, base64)
	TokenSerialize byte = 'S' // codec serialization
	TokenCompress  byte = 'C' // compression
	TokenCipher    byte = 'X' // reversible encryption
	TokenMAC       byte = 'H' // authentication wrap
	TokenDigest    byte = 'D' // irreversible digest
	TokenTruncate  byte = 'T' // irreversible truncation
)

// Chain grammars, one per axis. Key chains allow an optional prefix, any
// number of encodings, and an optional irreversible terminal. Value chains
// allow serialize/compress stages, an optional cipher, and an optional
// terminal MAC so the MAC covers the final stored form.
var (
	keyGrammar   = regexp.MustCompile(`^P?E*[DT]?$`)
	valueGrammar = regexp.MustCompile(`^[SC]*X?H?$`)
)

// validateChain checks an already-resolved chain against its axis grammar.
// It runs once at compile time, never on the hot path.
func validateChain(axis Axis, names []string, chain []Transform) error {
	tokens := make([]byte, len(chain))
	for i, t := range chain {
		tokens[i] = t.Token
	}

	grammar := keyGrammar
	if axis == AxisValue {
		grammar = valueGrammar
	}
	if !grammar.Match(tokens) {
		return newChainError(ErrInvalidChainGrammar, axis, names, "")
	}
	return nil
}
