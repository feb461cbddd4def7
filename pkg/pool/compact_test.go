package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/makonode/p2p/pkg/wire/util"
)

func TestShortIDIsDeterministic(t *testing.T) {
	var blockHash, txHash util.Uint256
	blockHash[0] = 0xaa
	txHash[0] = 0xbb

	a := shortID(blockHash, 42, txHash)
	b := shortID(blockHash, 42, txHash)
	assert.Equal(t, a, b)
}

func TestShortIDIs48Bit(t *testing.T) {
	var blockHash, txHash util.Uint256
	blockHash[0] = 0x01
	txHash[0] = 0x02

	id := shortID(blockHash, 7, txHash)
	assert.Zero(t, id&^uint64(0xFFFFFFFFFFFF), "shortID must fit in 48 bits")
}

func TestShortIDVariesWithNonceAndHash(t *testing.T) {
	var blockHash, txHash util.Uint256
	blockHash[0] = 0x10
	txHash[0] = 0x20

	base := shortID(blockHash, 1, txHash)

	differentNonce := shortID(blockHash, 2, txHash)
	assert.NotEqual(t, base, differentNonce)

	var otherTx util.Uint256
	otherTx[0] = 0x21
	differentTx := shortID(blockHash, 1, otherTx)
	assert.NotEqual(t, base, differentTx)

	var otherBlock util.Uint256
	otherBlock[0] = 0x11
	differentBlock := shortID(otherBlock, 1, txHash)
	assert.NotEqual(t, base, differentBlock)
}
