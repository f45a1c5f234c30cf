package retrieval

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/spacetime-network/farmer/core"
)

// tierBehavior scripts how the fake network serves one storage tier.
type tierBehavior struct {
	providers []peer.ID
	delay     time.Duration
	piece     *core.Piece
	err       error
}

type fakeNode struct {
	tiers map[StorageTier]*tierBehavior

	lookups atomic.Int64
}

func (n *fakeNode) tierForKey(key multihash.Multihash) StorageTier {
	decoded, err := multihash.Decode(key)
	if err != nil {
		panic(err)
	}
	if decoded.Code == MultihashCodeSector {
		return TierArchival
	}
	return TierCache
}

func (n *fakeNode) GetProviders(ctx context.Context, key multihash.Multihash) (<-chan peer.ID, error) {
	n.lookups.Add(1)

	tier := n.tiers[n.tierForKey(key)]
	providers := make(chan peer.ID, len(tier.providers))
	for _, p := range tier.providers {
		providers <- p
	}
	close(providers)
	return providers, nil
}

func (n *fakeNode) RequestPiece(ctx context.Context, p peer.ID, req PieceRequest) (PieceResponse, error) {
	tier := n.tiers[req.Key.Tier]

	if tier.delay > 0 {
		select {
		case <-ctx.Done():
			return PieceResponse{}, ctx.Err()
		case <-time.After(tier.delay):
		}
	}

	if tier.err != nil {
		return PieceResponse{}, tier.err
	}
	return PieceResponse{Piece: tier.piece}, nil
}

func makePiece(fill byte) *core.Piece {
	var piece core.Piece
	for i := range piece {
		piece[i] = fill
	}
	return &piece
}

func compressTime(t *testing.T) {
	t.Helper()

	initial, max, archival, timeout := getPieceInitialInterval, getPieceMaxInterval, getPieceArchivalStorageDelay, getPieceTimeout
	t.Cleanup(func() {
		getPieceInitialInterval, getPieceMaxInterval, getPieceArchivalStorageDelay, getPieceTimeout = initial, max, archival, timeout
	})

	getPieceInitialInterval = 50 * time.Millisecond
	getPieceMaxInterval = 200 * time.Millisecond
	getPieceArchivalStorageDelay = 50 * time.Millisecond
	getPieceTimeout = 250 * time.Millisecond
}

func TestGetPiecePrefersCache(t *testing.T) {
	cachePiece := makePiece(0xaa)
	archivalPiece := makePiece(0xbb)

	node := &fakeNode{tiers: map[StorageTier]*tierBehavior{
		TierCache:    {providers: []peer.ID{peer.ID("cache-peer")}, delay: 500 * time.Millisecond, piece: cachePiece},
		TierArchival: {providers: []peer.ID{peer.ID("archival-peer")}, delay: 3 * time.Second, piece: archivalPiece},
	}}

	var cancelled atomic.Bool
	provider := NewPieceProvider(node, nil, &cancelled)

	start := time.Now()
	piece, err := provider.GetPiece(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, cachePiece, piece)
	require.Less(t, time.Since(start), 2*time.Second, "must not wait for the archival branch")
}

func TestGetPieceFallsBackToArchival(t *testing.T) {
	compressTime(t)

	archivalPiece := makePiece(0xbb)

	node := &fakeNode{tiers: map[StorageTier]*tierBehavior{
		TierCache:    {},
		TierArchival: {providers: []peer.ID{peer.ID("archival-peer")}, piece: archivalPiece},
	}}

	var cancelled atomic.Bool
	provider := NewPieceProvider(node, nil, &cancelled)

	piece, err := provider.GetPiece(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, archivalPiece, piece)
}

func TestGetPieceSkipsFailingProviders(t *testing.T) {
	compressTime(t)

	piece := makePiece(0xcc)

	// First provider errors, second returns an empty response, third has
	// the piece: the lookup walks the stream in order.
	node := &fakeNode{tiers: map[StorageTier]*tierBehavior{
		TierCache:    {providers: []peer.ID{"dead", "empty", "good"}, piece: piece},
		TierArchival: {},
	}}
	var requests atomic.Int64
	provider := NewPieceProvider(&scriptedNode{fakeNode: node, script: func(p peer.ID) (PieceResponse, error) {
		requests.Add(1)
		switch p {
		case "dead":
			return PieceResponse{}, xerrors.New("connection refused")
		case "empty":
			return PieceResponse{}, nil
		default:
			return PieceResponse{Piece: piece}, nil
		}
	}}, nil, new(atomic.Bool))

	got, err := provider.GetPiece(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, piece, got)
	require.EqualValues(t, 3, requests.Load())
}

// scriptedNode overrides RequestPiece with a per-peer script.
type scriptedNode struct {
	*fakeNode
	script func(p peer.ID) (PieceResponse, error)
}

func (n *scriptedNode) RequestPiece(ctx context.Context, p peer.ID, req PieceRequest) (PieceResponse, error) {
	return n.script(p)
}

func TestGetPieceRetriesUntilCancelled(t *testing.T) {
	compressTime(t)

	// No tier ever has the piece; every attempt comes up empty and is
	// retried under backoff until the flag is set.
	node := &fakeNode{tiers: map[StorageTier]*tierBehavior{
		TierCache:    {providers: []peer.ID{peer.ID("cache-peer")}, err: xerrors.New("request failed")},
		TierArchival: {},
	}}

	var cancelled atomic.Bool
	provider := NewPieceProvider(node, nil, &cancelled)

	type result struct {
		piece *core.Piece
		err   error
	}
	done := make(chan result, 1)
	go func() {
		piece, err := provider.GetPiece(context.Background(), 1)
		done <- result{piece, err}
	}()

	// Both tiers get a provider lookup per attempt; wait for at least two
	// full attempts before cancelling.
	require.Eventually(t, func() bool {
		return node.lookups.Load() >= 4
	}, 5*time.Second, 10*time.Millisecond, "expected the retrieval to be retried")

	cancelled.Store(true)

	select {
	case res := <-done:
		require.ErrorIs(t, res.err, ErrGetPieceCancelled)
		require.Nil(t, res.piece)
	case <-time.After(5 * time.Second):
		t.Fatal("GetPiece did not observe cancellation")
	}
}

func TestGetPieceCancelledBeforeStart(t *testing.T) {
	node := &fakeNode{tiers: map[StorageTier]*tierBehavior{
		TierCache:    {},
		TierArchival: {},
	}}

	var cancelled atomic.Bool
	cancelled.Store(true)

	provider := NewPieceProvider(node, nil, &cancelled)

	piece, err := provider.GetPiece(context.Background(), 1)
	require.ErrorIs(t, err, ErrGetPieceCancelled)
	require.Nil(t, piece)
	require.Zero(t, node.lookups.Load(), "no lookups once cancelled")
}

// rewritingValidator replaces every received piece; rejectingValidator
// rejects every received piece.
type rewritingValidator struct {
	replacement *core.Piece
}

func (v *rewritingValidator) ValidatePiece(ctx context.Context, src peer.ID, pieceIndex core.PieceIndex, piece *core.Piece) *core.Piece {
	return v.replacement
}

type rejectingValidator struct {
	rejected atomic.Int64
}

func (v *rejectingValidator) ValidatePiece(ctx context.Context, src peer.ID, pieceIndex core.PieceIndex, piece *core.Piece) *core.Piece {
	v.rejected.Add(1)
	return nil
}

func TestGetPieceValidatorIsAuthoritative(t *testing.T) {
	compressTime(t)

	received := makePiece(0xaa)
	replacement := makePiece(0xdd)

	node := &fakeNode{tiers: map[StorageTier]*tierBehavior{
		TierCache:    {providers: []peer.ID{peer.ID("cache-peer")}, piece: received},
		TierArchival: {},
	}}

	provider := NewPieceProvider(node, &rewritingValidator{replacement: replacement}, new(atomic.Bool))

	piece, err := provider.GetPiece(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, replacement, piece)
}

func TestGetPieceValidatorRejectionEndsLookup(t *testing.T) {
	compressTime(t)

	node := &fakeNode{tiers: map[StorageTier]*tierBehavior{
		TierCache:    {providers: []peer.ID{"a", "b"}, piece: makePiece(0xaa)},
		TierArchival: {},
	}}

	validator := &rejectingValidator{}
	var cancelled atomic.Bool
	provider := NewPieceProvider(node, validator, &cancelled)

	done := make(chan error, 1)
	go func() {
		_, err := provider.GetPiece(context.Background(), 1)
		done <- err
	}()

	// A rejection ends the tier lookup without trying further providers,
	// so the attempt fails and gets retried.
	require.Eventually(t, func() bool {
		return validator.rejected.Load() >= 2
	}, 5*time.Second, 10*time.Millisecond)

	cancelled.Store(true)
	require.ErrorIs(t, <-done, ErrGetPieceCancelled)

	// One rejection per attempt, never one per provider: each attempt does
	// one provider lookup per tier.
	require.LessOrEqual(t, validator.rejected.Load(), node.lookups.Load()/2+1)
}

func TestStorageTierKeys(t *testing.T) {
	hash := core.PieceIndexHashFromIndex(42)

	cacheKey, err := TierCache.Key(hash)
	require.NoError(t, err)
	archivalKey, err := TierArchival.Key(hash)
	require.NoError(t, err)
	require.NotEqual(t, cacheKey, archivalKey)

	decoded, err := multihash.Decode(cacheKey)
	require.NoError(t, err)
	require.Equal(t, MultihashCodePieceIndex, decoded.Code)
	require.Equal(t, hash[:], decoded.Digest)

	decoded, err = multihash.Decode(archivalKey)
	require.NoError(t, err)
	require.Equal(t, MultihashCodeSector, decoded.Code)
}
