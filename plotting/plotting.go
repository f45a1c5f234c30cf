package plotting

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats"
	"golang.org/x/xerrors"

	"github.com/spacetime-network/farmer/core"
	"github.com/spacetime-network/farmer/metrics"
)

var log = logging.Logger("plotting")

// PlotSector plots a single sector: it derives the sector's piece indexes,
// fetches every piece through getPiece, encodes each record region with its
// one-time pad and appends the encoded pieces to sector in slot order. Once
// all pieces are written, the sector metadata record is written to
// sectorMetadata. Both writers must already be positioned; no seeking is
// performed here.
//
// The shutdown flag is checked once per piece. Observing it returns
// Interrupted with the sector partially written; discarding or replotting is
// the caller's responsibility.
//
// NOTE: This call does blocking bit-level work across large buffers and must
// be kept off latency-sensitive scheduling paths.
func PlotSector(
	ctx context.Context,
	publicKey core.PublicKey,
	sectorIndex uint64,
	getPiece PieceGetter,
	shuttingDown *atomic.Bool,
	info *FarmerProtocolInfo,
	sector io.Writer,
	sectorMetadata io.Writer,
) (PlottingStatus, error) {
	if int(info.SpaceL) > core.OTPSize*8 {
		return PlottedSuccessfully, xerrors.Errorf("space parameter must be at most %d bits, got %d", core.OTPSize*8, info.SpaceL)
	}

	defer metrics.Timer(ctx, metrics.SectorPlotDurationMs)()

	sectorId := core.NewSectorId(publicKey, sectorIndex)
	numPieces := core.PlotSectorSize(info.SpaceL) / core.PieceSize

	currentSegmentIndex := info.TotalPieces /
		uint64(info.RecordedHistorySegmentSize) /
		uint64(info.RecordSize) *
		info.Replication
	expiresAt := currentSegmentIndex + info.SectorExpiration

	for pieceOffset := uint64(0); pieceOffset < numPieces; pieceOffset++ {
		if shuttingDown.Load() {
			log.Debugw("instance is shutting down, interrupting plotting", "sector", sectorIndex)
			return Interrupted, nil
		}

		pieceIndex := sectorId.DerivePieceIndex(core.PieceIndex(pieceOffset), info.TotalPieces)

		piece, err := getPiece(ctx, pieceIndex)
		if err != nil {
			return PlottedSuccessfully, &PieceRetrievalError{PieceIndex: pieceIndex, Err: err}
		}
		if piece == nil {
			return PlottedSuccessfully, &PieceNotFoundError{PieceIndex: pieceIndex}
		}

		witness, err := core.WitnessFromBytes(piece.WitnessBytes(info.RecordSize))
		if err != nil {
			// Pieces are validated before they get here; a piece with a
			// corrupt witness means that validation is broken and nothing
			// this process produces can be trusted.
			panic(fmt.Sprintf("failed to decode witness for piece %d, must be a bug on the node: %s", pieceIndex, err))
		}

		encodeRecord(piece.Record(info.RecordSize), &sectorId, &witness, info.SpaceL)

		if _, err := sector.Write(piece[:]); err != nil {
			return PlottedSuccessfully, xerrors.Errorf("writing piece %d to sector: %w", pieceIndex, err)
		}

		stats.Record(ctx, metrics.PiecesPlotted.M(1))
	}

	meta := &SectorMetadata{
		TotalPieces: info.TotalPieces,
		ExpiresAt:   expiresAt,
	}
	if err := meta.MarshalCBOR(sectorMetadata); err != nil {
		return PlottedSuccessfully, xerrors.Errorf("writing sector metadata: %w", err)
	}

	return PlottedSuccessfully, nil
}
