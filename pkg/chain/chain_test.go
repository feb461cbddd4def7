package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makonode/p2p/pkg/chaincfg"
	"github.com/makonode/p2p/pkg/wire/payload"
	"github.com/makonode/p2p/pkg/wire/util"
)

// easyBits is a compact target so loose every hash satisfies it, keeping
// these tests about contiguity rather than proof-of-work difficulty.
const easyBits = 0x217fffff

func header(prev util.Uint256, nonce uint32) *payload.BlockHeader {
	return &payload.BlockHeader{
		Version:    1,
		PrevHash:   prev,
		MerkleRoot: util.Uint256{},
		Timestamp:  1700000000,
		Bits:       easyBits,
		Nonce:      nonce,
	}
}

func TestAddHeadersChainsFromGenesis(t *testing.T) {
	params := chaincfg.Params{CheckpointsEnabled: false}
	c := New(params)

	genesis := header(util.Uint256{}, 1)
	n, crossed, err := c.AddHeaders([]*payload.BlockHeader{genesis})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, crossed)
	assert.Equal(t, uint32(0), c.Tip().Height)
	assert.True(t, c.Tip().Hash.Equals(genesis.Hash()))

	next := header(genesis.Hash(), 2)
	n, _, err = c.AddHeaders([]*payload.BlockHeader{next})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint32(1), c.Tip().Height)
}

func TestAddHeadersRejectsBrokenLinkage(t *testing.T) {
	params := chaincfg.Params{CheckpointsEnabled: false}
	c := New(params)

	genesis := header(util.Uint256{}, 1)
	_, _, err := c.AddHeaders([]*payload.BlockHeader{genesis})
	require.NoError(t, err)

	bogusPrev, _ := util.Uint256DecodeBytes(make([]byte, 32))
	bogusPrev[0] = 0xff
	bad := header(bogusPrev, 2)
	_, _, err = c.AddHeaders([]*payload.BlockHeader{bad})
	assert.ErrorIs(t, err, ErrNotContiguous)
	// Tip must not have moved.
	assert.Equal(t, uint32(0), c.Tip().Height)
}

func TestAddHeadersCrossesCheckpointAndDisengages(t *testing.T) {
	genesis := header(util.Uint256{}, 1)
	h1 := header(genesis.Hash(), 2)

	params := chaincfg.Params{
		CheckpointsEnabled: true,
		Checkpoints: []chaincfg.Checkpoint{
			{Height: 1, Hash: h1.Hash()},
		},
	}
	c := New(params)
	assert.True(t, c.InCheckpointMode())

	_, _, err := c.AddHeaders([]*payload.BlockHeader{genesis})
	require.NoError(t, err)
	assert.True(t, c.InCheckpointMode())

	_, crossed, err := c.AddHeaders([]*payload.BlockHeader{h1})
	require.NoError(t, err)
	assert.True(t, crossed)
	assert.False(t, c.InCheckpointMode())
	assert.True(t, c.Synced())
}

func TestAddHeadersWrongCheckpointHashCloses(t *testing.T) {
	genesis := header(util.Uint256{}, 1)
	h1 := header(genesis.Hash(), 2)

	wrongHash, _ := util.Uint256DecodeBytes(make([]byte, 32))
	params := chaincfg.Params{
		CheckpointsEnabled: true,
		Checkpoints: []chaincfg.Checkpoint{
			{Height: 1, Hash: wrongHash},
		},
	}
	c := New(params)

	_, _, err := c.AddHeaders([]*payload.BlockHeader{genesis})
	require.NoError(t, err)

	_, _, err = c.AddHeaders([]*payload.BlockHeader{h1})
	assert.ErrorIs(t, err, ErrNotContiguous)
}

func TestAddBodyRequiresKnownHeader(t *testing.T) {
	params := chaincfg.Params{CheckpointsEnabled: false}
	c := New(params)

	genesis := header(util.Uint256{}, 1)
	_, _, err := c.AddHeaders([]*payload.BlockHeader{genesis})
	require.NoError(t, err)

	err = c.Add(genesis.Hash(), []byte{0x01, 0x02})
	require.NoError(t, err)

	raw, ok, err := c.Body(genesis.Hash())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x02}, raw)

	err = c.Add(genesis.Hash(), []byte{0x03})
	assert.ErrorIs(t, err, ErrBlockAlreadyExists)

	unknown, _ := util.Uint256DecodeBytes(make([]byte, 32))
	err = c.Add(unknown, []byte{0x09})
	assert.ErrorIs(t, err, ErrUnknownParent)
}
