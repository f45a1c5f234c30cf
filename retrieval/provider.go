package retrieval

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/jpillora/backoff"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.opencensus.io/stats"
	"golang.org/x/xerrors"

	"github.com/spacetime-network/farmer/core"
	"github.com/spacetime-network/farmer/metrics"
)

var log = logging.Logger("retrieval")

// Retrieval tuning. Vars rather than consts so tests can compress time.
var (
	// getPieceInitialInterval is the first delay between retrieval attempts.
	getPieceInitialInterval = time.Second
	// getPieceMaxInterval caps the delay between retrieval attempts.
	getPieceMaxInterval = 5 * time.Second
	// getPieceArchivalStorageDelay is the head start the cache tier gets
	// before the archival lookup is started.
	getPieceArchivalStorageDelay = 2 * time.Second
	// getPieceTimeout bounds a single tier lookup, the archival head start
	// included.
	getPieceTimeout = 5 * time.Second
)

// ErrGetPieceCancelled is returned once the shared cancellation flag is set.
// It is permanent: the provider will not retry after observing it.
var ErrGetPieceCancelled = xerrors.New("piece retrieval cancelled")

// PieceProvider retrieves pieces from the network, racing the cache tier
// against archival storage and retrying with exponential backoff until it
// succeeds or the shared cancellation flag is set.
type PieceProvider struct {
	node      Node
	validator PieceValidator
	cancelled *atomic.Bool
}

var _ PieceReceiver = (*PieceProvider)(nil)

// NewPieceProvider builds a provider on top of the given network node. The
// validator may be nil, in which case received pieces are accepted as-is.
// The cancellation flag is owned by the caller and shared across calls; it
// is expected to be set at most once.
func NewPieceProvider(node Node, validator PieceValidator, cancelled *atomic.Bool) *PieceProvider {
	return &PieceProvider{
		node:      node,
		validator: validator,
		cancelled: cancelled,
	}
}

// GetPiece fetches a piece by index. It retries failed attempts forever, so
// it only returns early with an error once the cancellation flag is set or
// the caller's context expires.
func (p *PieceProvider) GetPiece(ctx context.Context, pieceIndex core.PieceIndex) (*core.Piece, error) {
	log.Debugw("piece request", "piece", pieceIndex)
	defer metrics.Timer(ctx, metrics.PieceGetDurationMs)()

	bo := &backoff.Backoff{
		Min:    getPieceInitialInterval,
		Max:    getPieceMaxInterval,
		Factor: 2,
	}

	for {
		if p.cancelled.Load() {
			log.Debugw("piece retrieval cancelled", "piece", pieceIndex)
			return nil, ErrGetPieceCancelled
		}

		if piece := p.racePieceLookups(ctx, pieceIndex); piece != nil {
			return piece, nil
		}

		stats.Record(ctx, metrics.PieceGetRetries.M(1))
		log.Warnw("couldn't get piece, retrying", "piece", pieceIndex)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bo.Duration()):
		}
	}
}

// racePieceLookups runs the cache and archival lookups concurrently and
// returns the first piece either of them yields. The archival lookup starts
// after a grace delay so a fast cache wins outright; each branch is bounded
// by getPieceTimeout. Once a winner is selected the losing branch's context
// is cancelled and its connections dropped.
func (p *PieceProvider) racePieceLookups(ctx context.Context, pieceIndex core.PieceIndex) *core.Piece {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan *core.Piece, 2)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()

		ctx, cancel := context.WithTimeout(ctx, getPieceTimeout)
		defer cancel()

		results <- p.getPieceFromStorage(ctx, pieceIndex, TierCache)
	}()

	go func() {
		defer wg.Done()

		ctx, cancel := context.WithTimeout(ctx, getPieceTimeout)
		defer cancel()

		select {
		case <-ctx.Done():
			results <- nil
			return
		case <-time.After(getPieceArchivalStorageDelay):
		}

		results <- p.getPieceFromStorage(ctx, pieceIndex, TierArchival)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for piece := range results {
		if piece != nil {
			log.Debugw("got piece", "piece", pieceIndex)
			return piece
		}
	}

	return nil
}

// getPieceFromStorage performs a single tier lookup: stream the peers
// advertising the tier key and ask each in turn for the piece. Individual
// request failures move on to the next peer; running out of peers means not
// found, which is not an error.
func (p *PieceProvider) getPieceFromStorage(ctx context.Context, pieceIndex core.PieceIndex, tier StorageTier) *core.Piece {
	hash := core.PieceIndexHashFromIndex(pieceIndex)

	key, err := tier.Key(hash)
	if err != nil {
		log.Warnw("building tier key", "piece", pieceIndex, "tier", tier, "error", err)
		return nil
	}

	providers, err := p.node.GetProviders(ctx, key)
	if err != nil {
		log.Warnw("get providers failed", "piece", pieceIndex, "tier", tier, "error", err)
		return nil
	}

	for {
		var provider peer.ID
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case provider, ok = <-providers:
			if !ok {
				return nil
			}
		}

		resp, err := p.node.RequestPiece(ctx, provider, PieceRequest{
			Key: PieceKey{Tier: tier, Hash: hash},
		})
		if err != nil {
			log.Warnw("piece request failed", "piece", pieceIndex, "tier", tier, "provider", provider, "error", err)
			continue
		}
		if resp.Piece == nil {
			log.Debugw("piece request returned empty piece", "piece", pieceIndex, "tier", tier, "provider", provider)
			continue
		}

		log.Debugw("piece request succeeded", "piece", pieceIndex, "tier", tier, "provider", provider)

		if p.validator != nil {
			// The validator's verdict is final, rejection included.
			return p.validator.ValidatePiece(ctx, provider, pieceIndex, resp.Piece)
		}

		return resp.Piece
	}
}
