package core

import (
	"github.com/minio/blake2b-simd"
)

const (
	// PotSeedSize is the size of a proof-of-time seed in bytes.
	PotSeedSize = 16
	// PotKeySize is the size of a derived proof-of-time cipher key in bytes.
	PotKeySize = 16
	// PotOutputSize is the size of one proof-of-time output in bytes, one
	// AES block.
	PotOutputSize = 16
	// NumCheckpoints is the number of checkpoints recorded per proof.
	NumCheckpoints = 8
)

// PotSeed seeds one slot's proof-of-time computation.
type PotSeed [PotSeedSize]byte

// Key derives the cipher key for the sequential computation from the seed.
func (s PotSeed) Key() PotKey {
	digest := blake2b.Sum256(s[:])

	var key PotKey
	copy(key[:], digest[:PotKeySize])
	return key
}

// PotKey is the AES key derived from a seed.
type PotKey [PotKeySize]byte

// PotOutput is the cipher state at one checkpoint boundary.
type PotOutput [PotOutputSize]byte

// PotCheckpoints is the ordered sequence of checkpoint outputs of one proof.
type PotCheckpoints [NumCheckpoints]PotOutput

// Outputs returns the checkpoints as a slice for verification.
func (c *PotCheckpoints) Outputs() []PotOutput {
	return c[:]
}
