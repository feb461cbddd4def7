package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makonode/p2p/pkg/wire/protocol"
)

func TestLoadEmbeddedProfiles(t *testing.T) {
	for net, magic := range map[string]protocol.Magic{
		"mainnet": protocol.MainNet,
		"testnet": protocol.TestNet,
		"regtest": protocol.RegTest,
	} {
		cfg, err := Load("", net)
		require.NoError(t, err)
		assert.Equal(t, net, cfg.Network)
		gotMagic, err := cfg.Magic()
		require.NoError(t, err)
		assert.Equal(t, magic, gotMagic)
	}
}

func TestLoadUnknownNetwork(t *testing.T) {
	_, err := Load("", "not-a-network")
	assert.Error(t, err)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
Network: testnet
DataDir: /tmp/custom
P2P:
  ListenAddr: ":1"
  MaxOutbound: 3
  MaxInbound: 5
Logger:
  LogLevel: debug
`), 0644))

	cfg, err := Load(path, "testnet")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom", cfg.DataDir)
	assert.Equal(t, 3, cfg.P2P.MaxOutbound)
	assert.Equal(t, "debug", cfg.Logger.LogLevel)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yml")
	require.NoError(t, os.WriteFile(path, []byte("NotARealField: true\n"), 0644))

	_, err := Load(path, "mainnet")
	assert.Error(t, err)
}

func TestValidateRejectsNegativePeerCounts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.P2P.MaxOutbound = -1
	assert.Error(t, cfg.Validate())
}
