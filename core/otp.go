package core

import (
	"encoding/binary"

	"github.com/minio/blake2b-simd"
)

// OTPSize is the size of a single one-time pad in bytes, bounding the chunk
// width the encoder may use to OTPSize*8 bits.
const OTPSize = 32

// DeriveChunkOTP derives the one-time pad for one chunk of a record:
// blake2b-256 of the sector id, the piece witness and the little-endian
// chunk index. Deterministic, so encoding with the same pad twice restores
// the original bytes.
func DeriveChunkOTP(sectorId *SectorId, witness *Witness, chunkIndex uint32) [OTPSize]byte {
	h := blake2b.New256()
	h.Write(sectorId[:])
	h.Write(witness[:])

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], chunkIndex)
	h.Write(buf[:])

	var otp [OTPSize]byte
	copy(otp[:], h.Sum(nil))
	return otp
}
