package emailloop

import (
	"crypto/rand"
	"fmt"
)

// crockfordAlphabet is Crockford's base32: excludes I, L, O, U to avoid
// confusion with 1, 1, 0, V, and carries no padding character. Stdlib's
// encoding/base32 only implements the RFC 4648 alphabet (includes those
// excluded letters, requires padding), so the one-time code alphabet is
// hand-rolled here.
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// codeLength is the length, in Crockford characters, of a one-time code.
const codeLength = 12

// generateCode returns a random 12-character Crockford base32 code,
// upper-case, with no checksum character.
func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate one-time code: %w", err)
	}

	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = crockfordAlphabet[int(b)%len(crockfordAlphabet)]
	}
	return string(out), nil
}
