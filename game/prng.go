package game

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
)

const (
	// Round segment and cursor of the crash-point draw. Further draws in the same
	// round take the next cursor so no two share an input.
	CrashRound  = 0
	CrashCursor = 1
)

// DeriveUniform returns the crash-point draw for a round in [0, 1).
func DeriveUniform(serverSeed, clientSeed string, nonce uint64) float64 {
	return DeriveUniformAt(serverSeed, clientSeed, nonce, CrashRound, CrashCursor)
}

// DeriveUniformAt is HMAC-SHA256 keyed by the server seed over
// "clientSeed-nonce-round-cursor"; the top 52 bits of the digest become the float.
func DeriveUniformAt(serverSeed, clientSeed string, nonce uint64, round, cursor int) float64 {
	mac := hmac.New(sha256.New, []byte(serverSeed))
	fmt.Fprintf(mac, "%s-%d-%d-%d", clientSeed, nonce, round, cursor)
	sum := mac.Sum(nil)

	bits := binary.BigEndian.Uint64(sum[:8]) >> 12
	return float64(bits) / float64(uint64(1)<<52)
}

// NewSeededRNG returns a math/rand source seeded from the round's draw input, for
// simulations that need a stream rather than a single value.
func NewSeededRNG(serverSeed, clientSeed string, nonce uint64) *rand.Rand {
	mac := hmac.New(sha256.New, []byte(serverSeed))
	fmt.Fprintf(mac, "%s-%d-rng", clientSeed, nonce)
	sum := mac.Sum(nil)
	return rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(sum[:8]))))
}
