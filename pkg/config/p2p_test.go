package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestP2PValidate(t *testing.T) {
	assert.NoError(t, P2P{}.Validate())
	assert.NoError(t, P2P{MaxOutbound: 8, MaxInbound: 117}.Validate())
	assert.Error(t, P2P{MaxOutbound: -1}.Validate())
	assert.Error(t, P2P{MaxInbound: -1}.Validate())
}
