package plotting

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/spacetime-network/farmer/core"
)

// encodeRecord XORs the record bits with per-chunk one-time pads, in place.
// Bits are taken LSB-first within each byte; chunk i covers the spaceL bits
// starting at bit i*spaceL. Trailing bits of a record that is not an exact
// multiple of spaceL stay unencoded.
//
// Chunks are independent, so they are processed in parallel. Workers take
// contiguous runs of chunks whose start index is a multiple of 8: a run
// boundary then falls on a whole byte regardless of spaceL, so no two
// workers ever write the same byte.
func encodeRecord(record []byte, sectorId *core.SectorId, witness *core.Witness, spaceL uint16) {
	numChunks := len(record) * 8 / int(spaceL)
	if numChunks == 0 {
		return
	}

	stride := (numChunks + runtime.NumCPU() - 1) / runtime.NumCPU()
	stride = (stride + 7) / 8 * 8

	var eg errgroup.Group
	for start := 0; start < numChunks; start += stride {
		end := start + stride
		if end > numChunks {
			end = numChunks
		}

		start := start
		eg.Go(func() error {
			for chunkIndex := start; chunkIndex < end; chunkIndex++ {
				otp := core.DeriveChunkOTP(sectorId, witness, uint32(chunkIndex))

				base := chunkIndex * int(spaceL)
				for bit := 0; bit < int(spaceL); bit++ {
					if otp[bit/8]&(1<<(bit%8)) != 0 {
						pos := base + bit
						record[pos/8] ^= 1 << (pos % 8)
					}
				}
			}
			return nil
		})
	}
	// Workers never return errors, the group is only used for the join.
	_ = eg.Wait()
}
