package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewSeed returns 32 random bytes hex-encoded.
func NewSeed() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// Commit is the public commitment published for a server seed before the round runs.
func Commit(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

func GenerateServerSeed() (seed string, hash string) {
	seed = NewSeed()
	hash = Commit(seed)
	return
}

func VerifySeed(seed, hash string) bool {
	return Commit(seed) == hash
}
