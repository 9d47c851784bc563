// Package address normalizes the wallet addresses used as member identities.
//
// Identities arrive from the wallet provider in whatever casing the client
// chose. Storage keeps the EIP-55 checksummed spelling for display and a
// folded (lower-case) copy for comparisons, so casing can never produce two
// distinct approvals from the same holder.
package address

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ErrInvalid is returned for anything that is not a 20-byte hex address.
var ErrInvalid = errors.New("address must be 0x followed by 40 hex characters")

// Fold returns the comparison form of an address: trimmed and lower-cased.
func Fold(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Validate checks the syntactic shape of an address.
func Validate(addr string) error {
	a := strings.TrimSpace(addr)
	if len(a) != 42 || !(strings.HasPrefix(a, "0x") || strings.HasPrefix(a, "0X")) {
		return ErrInvalid
	}
	if _, err := hex.DecodeString(a[2:]); err != nil {
		return ErrInvalid
	}
	return nil
}

// Normalize validates addr and returns its EIP-55 checksummed form.
func Normalize(addr string) (string, error) {
	if err := Validate(addr); err != nil {
		return "", err
	}
	return Checksum(addr), nil
}

// Checksum applies EIP-55 mixed-case encoding. The input must already be valid.
func Checksum(addr string) string {
	lower := strings.ToLower(strings.TrimSpace(addr))[2:]

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := make([]byte, 0, 42)
	out = append(out, '0', 'x')
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if c >= 'a' && c <= 'f' && nibble >= 8 {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// Equal compares two addresses ignoring case and surrounding whitespace.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}
