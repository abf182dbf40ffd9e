package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashLength is the number of hex characters kept from a SHA-256 digest.
const HashLength = 16

// Key derives the cache key for source rendered under the given options
// fingerprint. The same source rendered with different filters or line
// endings gets a different key.
func Key(source []byte, fingerprint string) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write(source)
	return hex.EncodeToString(h.Sum(nil))[:HashLength]
}
