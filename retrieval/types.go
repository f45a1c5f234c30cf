// Package retrieval fetches pieces from the distributed storage network. A
// piece may be advertised by peers in two storage tiers, a fast cache and
// slower archival storage, each addressed by a tier-specific content key.
// PieceProvider races the two tiers, retries with backoff and honors a
// shared cancellation flag.
package retrieval

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multihash"
	"golang.org/x/xerrors"

	"github.com/spacetime-network/farmer/core"
)

// Multihash codes for tier-specific content keys, in the multicodec
// private-use range.
const (
	MultihashCodePieceIndex = uint64(0x300500)
	MultihashCodeSector     = uint64(0x300501)
)

// StorageTier selects which storage class a lookup targets.
type StorageTier int

const (
	// TierCache is the piece cache, low latency but best-effort.
	TierCache StorageTier = iota
	// TierArchival is archival storage, authoritative but slower.
	TierArchival
)

func (t StorageTier) String() string {
	switch t {
	case TierCache:
		return "cache"
	case TierArchival:
		return "archival"
	default:
		return "unknown"
	}
}

// MultihashCode returns the content key code peers use to advertise pieces
// in this tier.
func (t StorageTier) MultihashCode() uint64 {
	if t == TierArchival {
		return MultihashCodeSector
	}
	return MultihashCodePieceIndex
}

// Key wraps a piece index hash into this tier's content key.
func (t StorageTier) Key(hash core.PieceIndexHash) (multihash.Multihash, error) {
	mh, err := multihash.Encode(hash[:], t.MultihashCode())
	if err != nil {
		return nil, xerrors.Errorf("encoding %s tier key: %w", t, err)
	}
	return mh, nil
}

// PieceKey addresses a piece within one storage tier.
type PieceKey struct {
	Tier StorageTier
	Hash core.PieceIndexHash
}

// PieceRequest asks a peer for the piece stored under a key.
type PieceRequest struct {
	Key PieceKey
}

// PieceResponse carries the requested piece, or nil when the peer does not
// have it.
type PieceResponse struct {
	Piece *core.Piece
}

// Node is the network capability the provider runs on: provider discovery
// for a content key and direct piece requests to individual peers.
type Node interface {
	// GetProviders streams the ids of peers advertising the given key. The
	// returned channel is closed once the underlying query completes; it
	// may yield no peers at all.
	GetProviders(ctx context.Context, key multihash.Multihash) (<-chan peer.ID, error)
	// RequestPiece asks a single peer for a piece by key.
	RequestPiece(ctx context.Context, p peer.ID, req PieceRequest) (PieceResponse, error)
}

// PieceReceiver is the piece lookup capability consumed by plotting. A nil
// piece with a nil error means the piece was not found.
type PieceReceiver interface {
	GetPiece(ctx context.Context, pieceIndex core.PieceIndex) (*core.Piece, error)
}

// PieceValidator checks a piece received from a peer. The result is
// authoritative: returning nil rejects the piece and ends the lookup that
// produced it.
type PieceValidator interface {
	ValidatePiece(ctx context.Context, src peer.ID, pieceIndex core.PieceIndex, piece *core.Piece) *core.Piece
}
