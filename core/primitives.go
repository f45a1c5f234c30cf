// Package core holds the primitive types shared across the farmer: pieces and
// their indices, sector identity, witnesses and proof-of-time values. These
// types are plain values with no I/O; all derivations are deterministic
// blake2b-256 constructions.
package core

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/minio/blake2b-simd"
)

const (
	// PieceSize is the protocol-fixed size of a single piece in bytes,
	// record bytes followed by witness bytes.
	PieceSize = 4096
	// WitnessSize is the size of the witness region at the tail of a piece.
	WitnessSize = 48
)

// PieceIndex identifies a piece's position within the total history of all
// pieces ever archived.
type PieceIndex uint64

func (i PieceIndex) String() string {
	return fmt.Sprintf("%d", uint64(i))
}

// Piece is a single unit of archived history: a record region at the front
// and a witness region at the tail.
type Piece [PieceSize]byte

// Record returns the record region of the piece for the given record size.
func (p *Piece) Record(recordSize uint32) []byte {
	return p[:recordSize]
}

// WitnessBytes returns the witness region of the piece for the given record
// size.
func (p *Piece) WitnessBytes(recordSize uint32) []byte {
	return p[recordSize:]
}

// PublicKey is a farmer identity key.
type PublicKey [32]byte

// PieceIndexHash is the blake2b-256 hash of a piece index, used to build
// tier-specific content keys.
type PieceIndexHash [32]byte

// PieceIndexHashFromIndex hashes the little-endian encoding of a piece index.
func PieceIndexHashFromIndex(pieceIndex PieceIndex) PieceIndexHash {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(pieceIndex))
	return blake2b.Sum256(buf[:])
}

// SectorId is derived from a farmer public key and a sector index and acts as
// the namespace for everything belonging to one sector.
type SectorId [32]byte

// NewSectorId derives the sector identifier as a keyed blake2b-256 hash of
// the little-endian sector index, keyed with the public key.
func NewSectorId(publicKey PublicKey, sectorIndex uint64) SectorId {
	h, err := blake2b.New(&blake2b.Config{
		Size: 32,
		Key:  publicKey[:],
	})
	if err != nil {
		// Config above is static and valid.
		panic(fmt.Sprintf("instantiating keyed blake2b: %s", err))
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], sectorIndex)
	h.Write(buf[:])

	var sectorId SectorId
	copy(sectorId[:], h.Sum(nil))
	return sectorId
}

// DerivePieceIndex maps a sector-local piece offset to a global piece index.
// The mapping is a pseudo-random but reproducible sample of the global piece
// space: blake2b-256 of the sector id and the little-endian offset, reduced
// modulo the number of pieces known at plotting time.
func (s SectorId) DerivePieceIndex(pieceOffset PieceIndex, totalPieces uint64) PieceIndex {
	h := blake2b.New256()
	h.Write(s[:])

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(pieceOffset))
	h.Write(buf[:])

	n := new(big.Int).SetBytes(h.Sum(nil))
	n.Mod(n, new(big.Int).SetUint64(totalPieces))
	return PieceIndex(n.Uint64())
}

// PlotSectorSize returns the size of one plotted sector in bytes for the
// given space parameter.
func PlotSectorSize(spaceL uint16) uint64 {
	return uint64(spaceL) * PieceSize
}
