// Package plotting turns retrieved pieces into an encoded sector: it derives
// the piece indices belonging to a sector, pulls each piece through an
// injected getter, decodes the piece witness and encodes the record region
// with a one-time pad bound to the sector identity.
package plotting

import (
	"context"

	"github.com/spacetime-network/farmer/core"
)

// PieceGetter resolves a piece index to piece bytes. A nil piece with a nil
// error means the piece was not found. The returned piece is owned by the
// caller, which encodes it in place. retrieval.PieceReceiver satisfies this
// shape.
type PieceGetter func(ctx context.Context, pieceIndex core.PieceIndex) (*core.Piece, error)

// FarmerProtocolInfo is the read-only protocol parameter snapshot consumed
// by plotting. It is provided per call and not owned by this package.
type FarmerProtocolInfo struct {
	// RecordSize is the size of the record region of a piece in bytes.
	RecordSize uint32
	// SpaceL is the space parameter: the one-time-pad chunk width in bits.
	SpaceL uint16
	// RecordedHistorySegmentSize is the size of one recorded history
	// segment in pieces of records.
	RecordedHistorySegmentSize uint32
	// TotalPieces is the number of pieces archived so far.
	TotalPieces uint64
	// SectorExpiration is the sector lifetime in segments past the segment
	// current at plotting time.
	SectorExpiration uint64
	// Replication is the history replication factor applied when converting
	// piece counts to segment indexes. The protocol currently fixes it at 2.
	Replication uint64
}

// PlottingStatus reports how a PlotSector call ended.
type PlottingStatus int

const (
	// PlottedSuccessfully means the whole sector and its metadata were
	// written.
	PlottedSuccessfully PlottingStatus = iota
	// Interrupted means a shutdown was observed mid-plot; the sector is
	// partially written and must be discarded or replotted by the caller.
	Interrupted
)

func (s PlottingStatus) String() string {
	switch s {
	case PlottedSuccessfully:
		return "plotted successfully"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// SectorMetadata is written once after all of a sector's pieces, recording
// the piece count the sector was created against and when it expires, in
// segment index units.
type SectorMetadata struct {
	TotalPieces uint64
	ExpiresAt   uint64
}
