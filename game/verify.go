package game

import (
	"math"

	"crashengine/crypto"
)

// Verification is the outcome of recomputing a revealed round.
type Verification struct {
	Valid      bool    `json:"valid"`
	CrashPoint float64 `json:"crashPoint,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Verify recomputes the commitment and the crash point from revealed seed material.
// A claimed crash point of 0 skips the comparison.
func Verify(fd FairnessData, claimed float64, p Params) Verification {
	if fd.ServerSeed == "" {
		return Verification{Error: "server seed not revealed"}
	}
	if fd.ServerSeedHash != "" && !crypto.VerifySeed(fd.ServerSeed, fd.ServerSeedHash) {
		return Verification{Error: "server seed hash does not match"}
	}

	crash := CalculateCrashPoint(fd.ServerSeed, fd.ClientSeed, fd.Nonce, p)
	if claimed != 0 && math.Abs(crash-claimed) > 1e-9 {
		return Verification{CrashPoint: crash, Error: "crash point does not match"}
	}
	return Verification{Valid: true, CrashPoint: crash}
}
