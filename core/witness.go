package core

import (
	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"golang.org/x/xerrors"
)

// Witness is a KZG opening binding a piece to its position in the global
// history commitment: a compressed BLS12-381 G1 point.
type Witness [WitnessSize]byte

// WitnessFromBytes decodes a witness from the tail region of a piece. The
// input must be exactly WitnessSize bytes and decode to a valid point in the
// G1 subgroup.
func WitnessFromBytes(b []byte) (Witness, error) {
	var witness Witness
	if len(b) != WitnessSize {
		return witness, xerrors.Errorf("witness must be %d bytes, got %d", WitnessSize, len(b))
	}

	var point bls12381.G1Affine
	if _, err := point.SetBytes(b); err != nil {
		return witness, xerrors.Errorf("decoding witness point: %w", err)
	}

	copy(witness[:], b)
	return witness, nil
}
