package pot

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/spacetime-network/farmer/core"
)

// newCipher builds the AES-128 block cipher for one proof. The key size is
// fixed by core.PotKeySize, so construction cannot fail on valid inputs.
func newCipher(key core.PotKey) cipher.Block {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(fmt.Sprintf("instantiating AES-128 with fixed-size key: %s", err))
	}
	return block
}

// sequence runs checkpointIterations chained block encryptions starting from
// input and returns the final state. Each iteration depends on the previous
// one, so the chain cannot be parallelized or shortcut.
func sequence(block cipher.Block, input core.PotOutput, checkpointIterations uint32) core.PotOutput {
	state := input
	for i := uint32(0); i < checkpointIterations; i++ {
		block.Encrypt(state[:], state[:])
	}
	return state
}
