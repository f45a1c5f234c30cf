// Package pot implements the proof-of-time: a verifiable delay function
// built from a chained AES-128 permutation with evenly spaced checkpoints.
// Proving is strictly sequential, which is the security property; each
// checkpoint is a resumption point, so verification can check segments
// independently and in parallel.
package pot

import (
	"crypto/subtle"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"

	"github.com/spacetime-network/farmer/core"
)

var log = logging.Logger("pot")

// NotMultipleOfCheckpointsError is returned when the requested number of
// iterations cannot be evenly split across checkpoints.
type NotMultipleOfCheckpointsError struct {
	Iterations     uint32
	NumCheckpoints uint32
}

func (e *NotMultipleOfCheckpointsError) Error() string {
	return "iterations is not a multiple of number of checkpoints times two"
}

// Prove runs the sequential computation for the given seed and records the
// cipher state at every checkpoint boundary. iterations must be a non-zero
// multiple of 2*core.NumCheckpoints.
func Prove(seed core.PotSeed, iterations uint32) (core.PotCheckpoints, error) {
	var checkpoints core.PotCheckpoints
	if iterations == 0 || iterations%(core.NumCheckpoints*2) != 0 {
		return checkpoints, &NotMultipleOfCheckpointsError{
			Iterations:     iterations,
			NumCheckpoints: core.NumCheckpoints,
		}
	}

	start := time.Now()

	block := newCipher(seed.Key())
	checkpointIterations := iterations / core.NumCheckpoints

	state := core.PotOutput(seed)
	for i := range checkpoints {
		state = sequence(block, state, checkpointIterations)
		checkpoints[i] = state
	}

	log.Debugw("proving completed", "iterations", iterations, "took", time.Since(start))

	return checkpoints, nil
}

// Verify recomputes the sequential chain for the given seed and reports
// whether it reproduces the supplied checkpoints. iterations must be a
// non-zero multiple of twice the checkpoint count. Segments are verified in
// parallel: each checkpoint doubles as the starting state of the segment
// after it.
func Verify(seed core.PotSeed, iterations uint32, checkpoints []core.PotOutput) (bool, error) {
	numCheckpoints := uint32(len(checkpoints))
	if iterations == 0 || numCheckpoints == 0 || iterations%(numCheckpoints*2) != 0 {
		return false, &NotMultipleOfCheckpointsError{
			Iterations:     iterations,
			NumCheckpoints: numCheckpoints,
		}
	}

	start := time.Now()

	key := seed.Key()
	checkpointIterations := iterations / numCheckpoints

	results := make([]bool, len(checkpoints))
	var eg errgroup.Group
	for i := range checkpoints {
		i := i
		eg.Go(func() error {
			input := core.PotOutput(seed)
			if i > 0 {
				input = checkpoints[i-1]
			}

			// Not secret data, but constant-time comparison is free here.
			state := sequence(newCipher(key), input, checkpointIterations)
			results[i] = subtle.ConstantTimeCompare(state[:], checkpoints[i][:]) == 1
			return nil
		})
	}
	// Workers only report through results, no errors to collect.
	_ = eg.Wait()

	for _, ok := range results {
		if !ok {
			log.Debugw("verification failed", "iterations", iterations, "took", time.Since(start))
			return false, nil
		}
	}

	log.Debugw("verification succeeded", "iterations", iterations, "took", time.Since(start))

	return true, nil
}
