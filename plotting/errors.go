package plotting

import (
	"fmt"

	"github.com/spacetime-network/farmer/core"
)

// PieceRetrievalError is returned when the piece getter failed for one of
// the sector's pieces. It aborts the whole plot; there is no partial-sector
// salvage at this layer.
type PieceRetrievalError struct {
	PieceIndex core.PieceIndex
	Err        error
}

func (e *PieceRetrievalError) Error() string {
	return fmt.Sprintf("failed to retrieve piece %d: %s", e.PieceIndex, e.Err)
}

func (e *PieceRetrievalError) Unwrap() error {
	return e.Err
}

// PieceNotFoundError is returned when the piece getter succeeded but the
// piece does not exist anywhere the getter can reach. It aborts the whole
// plot.
type PieceNotFoundError struct {
	PieceIndex core.PieceIndex
}

func (e *PieceNotFoundError) Error() string {
	return fmt.Sprintf("piece %d not found", e.PieceIndex)
}
