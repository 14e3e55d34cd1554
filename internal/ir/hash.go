package ir

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future change of key format.
const (
	DomainExpression = "splitq/expression/v1"
	DomainQuery      = "splitq/query/v1"
)

// ContentDigest computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data), hex encoded.
// The null separator prevents domain/data boundary ambiguity.
func ContentDigest(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns the stable content address of an expression. It is derived
// from the canonical key, so it is identical for equal expressions across
// processes and after a serialization round trip.
func Digest(e Expression) string {
	return ContentDigest(DomainExpression, []byte(e.Key()))
}

// Hash returns a 64-bit structural hash of e. Equal expressions hash equally;
// variants with identical payloads (Le vs Lt) hash differently because the
// discriminator is part of the key.
func Hash(e Expression) uint64 {
	return xxhash.Sum64String(e.Key())
}
