// Package solana provides helpers for the Solana address format:
// base58-encoded 32-byte ed25519 points.
package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// AddressLength is the byte length of a decoded Solana address.
const AddressLength = 32

// DecodeAddress decodes a base58 address and checks its length.
func DecodeAddress(addr string) ([]byte, error) {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", addr, err)
	}
	if len(decoded) != AddressLength {
		return nil, fmt.Errorf("address %q: expected %d bytes, got %d", addr, AddressLength, len(decoded))
	}
	return decoded, nil
}

// IsOnCurve reports whether a 32-byte encoding decodes as a valid
// ed25519 point. Wallet public keys are on the curve; program-derived
// addresses are deliberately off it.
func IsOnCurve(point []byte) bool {
	if len(point) != AddressLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// ValidateWalletAddress checks that addr is a well-formed wallet key:
// base58, 32 bytes, on the curve. Program accounts and PDAs fail the
// curve check, which is what the tracked-wallet config wants.
func ValidateWalletAddress(addr string) error {
	decoded, err := DecodeAddress(addr)
	if err != nil {
		return err
	}
	if !IsOnCurve(decoded) {
		return fmt.Errorf("address %q is not an ed25519 point (program-derived address?)", addr)
	}
	return nil
}
