package chaincfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makonode/p2p/pkg/wire/protocol"
)

func TestNetParamsKnownNetworks(t *testing.T) {
	for _, magic := range []protocol.Magic{protocol.MainNet, protocol.TestNet, protocol.RegTest} {
		params, err := NetParams(magic)
		require.NoError(t, err)
		assert.Equal(t, magic, params.Magic)
		assert.NotZero(t, params.DefaultPort)
	}
}

func TestNetParamsUnknownMagic(t *testing.T) {
	_, err := NetParams(protocol.Magic(0xdeadbeef))
	assert.Error(t, err)
}

func TestLastCheckpoint(t *testing.T) {
	params, err := NetParams(protocol.MainNet)
	require.NoError(t, err)

	last, ok := params.LastCheckpoint()
	require.True(t, ok)
	assert.Equal(t, params.Checkpoints[len(params.Checkpoints)-1], last)

	empty := Params{}
	_, ok = empty.LastCheckpoint()
	assert.False(t, ok)
}

func TestNextCheckpoint(t *testing.T) {
	params, err := NetParams(protocol.TestNet)
	require.NoError(t, err)

	next, ok := params.NextCheckpoint(0)
	require.True(t, ok)
	assert.Equal(t, params.Checkpoints[0], next)

	_, ok = params.NextCheckpoint(params.Checkpoints[len(params.Checkpoints)-1].Height)
	assert.False(t, ok)
}

func TestRegtestHasNoCheckpointsAndAllowsSelfConnect(t *testing.T) {
	params, err := NetParams(protocol.RegTest)
	require.NoError(t, err)
	assert.Empty(t, params.Checkpoints)
	assert.True(t, params.SelfConnect)
	assert.False(t, params.CheckpointsEnabled)
}
