// Package addr validates account addresses. Addresses are base58-encoded
// 32-byte ed25519 public keys.
package addr

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Validation errors.
var (
	ErrEmpty      = errors.New("address is empty")
	ErrBadLength  = errors.New("address is not 32 bytes")
	ErrNotOnCurve = errors.New("address is not a valid ed25519 point")
)

// Validate checks that s is a well-formed account address.
func Validate(s string) error {
	if s == "" {
		return ErrEmpty
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != 32 {
		return ErrBadLength
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return ErrNotOnCurve
	}
	return nil
}

// MustEncode encodes raw 32-byte key material as an address, panicking on
// bad input. Intended for fixtures and generated test accounts.
func MustEncode(raw []byte) string {
	if len(raw) != 32 {
		panic(fmt.Sprintf("addr: MustEncode got %d bytes", len(raw)))
	}
	return base58.Encode(raw)
}
