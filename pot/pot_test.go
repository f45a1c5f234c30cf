package pot_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacetime-network/farmer/core"
	"github.com/spacetime-network/farmer/pot"
)

func testSeed() core.PotSeed {
	var seed core.PotSeed
	copy(seed[:], "pot test seed")
	return seed
}

func TestProveVerify(t *testing.T) {
	seed := testSeed()
	const iterations = uint32(core.NumCheckpoints * 2 * 4)

	checkpoints, err := pot.Prove(seed, iterations)
	require.NoError(t, err)

	// Proving is deterministic.
	again, err := pot.Prove(seed, iterations)
	require.NoError(t, err)
	require.Equal(t, checkpoints, again)

	ok, err := pot.Verify(seed, iterations, checkpoints.Outputs())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyWrongSeed(t *testing.T) {
	const iterations = uint32(core.NumCheckpoints * 2)

	checkpoints, err := pot.Prove(testSeed(), iterations)
	require.NoError(t, err)

	var otherSeed core.PotSeed
	copy(otherSeed[:], "different seed")

	ok, err := pot.Verify(otherSeed, iterations, checkpoints.Outputs())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyTamperedCheckpoints(t *testing.T) {
	seed := testSeed()
	const iterations = uint32(core.NumCheckpoints * 2 * 2)

	checkpoints, err := pot.Prove(seed, iterations)
	require.NoError(t, err)

	for checkpoint := 0; checkpoint < core.NumCheckpoints; checkpoint++ {
		for _, byteIndex := range []int{0, core.PotOutputSize - 1} {
			tampered := checkpoints
			tampered[checkpoint][byteIndex] ^= 1

			ok, err := pot.Verify(seed, iterations, tampered.Outputs())
			require.NoError(t, err)
			require.False(t, ok, "checkpoint %d byte %d", checkpoint, byteIndex)
		}
	}
}

func TestIterationsNotMultipleOfCheckpoints(t *testing.T) {
	seed := testSeed()

	for _, iterations := range []uint32{0, 1, core.NumCheckpoints, core.NumCheckpoints * 3, core.NumCheckpoints*2 + 1} {
		_, err := pot.Prove(seed, iterations)

		var potErr *pot.NotMultipleOfCheckpointsError
		require.ErrorAs(t, err, &potErr, "iterations %d", iterations)
		require.Equal(t, iterations, potErr.Iterations)
		require.Equal(t, uint32(core.NumCheckpoints), potErr.NumCheckpoints)
	}

	checkpoints, err := pot.Prove(seed, core.NumCheckpoints*2)
	require.NoError(t, err)

	// Three checkpoints would need a multiple of six iterations.
	_, err = pot.Verify(seed, 16, checkpoints.Outputs()[:3])
	var potErr *pot.NotMultipleOfCheckpointsError
	require.ErrorAs(t, err, &potErr)
	require.Equal(t, uint32(3), potErr.NumCheckpoints)

	_, err = pot.Verify(seed, 16, nil)
	require.ErrorAs(t, err, &potErr)
}
