package cryptox

import (
	"encoding/base64"

	"golang.org/x/crypto/blake2b"
)

// RateIdentity derives a short one-way identity from a bearer token for use
// as a rate-limit key. The raw credential must never become a map key or
// appear in a log line; BLAKE2b-128 keeps keys compact and unlinkable to
// the token.
func RateIdentity(bearer string) string {
	sum := blake2b.Sum256([]byte(bearer))
	return base64.RawURLEncoding.EncodeToString(sum[:16])
}
