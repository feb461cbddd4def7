// Package chaincfg holds per-network profiles: magic, default ports,
// hardcoded checkpoints and the dial/sync knobs each network needs.
// Built around a NetParams-switch shape, with a Bitcoin-style checkpoint
// list consumed by the headers-first sync engine in place of an
// embedded genesis block.
package chaincfg

import (
	"fmt"

	"github.com/makonode/p2p/pkg/wire/protocol"
	"github.com/makonode/p2p/pkg/wire/util"
)

// Checkpoint is a hardcoded (height, hash) tuple a headers-first sync
// anchors to.
type Checkpoint struct {
	Height uint32
	Hash   util.Uint256
}

// Params bundles everything POOL needs to know about the network it is
// dialing into.
type Params struct {
	Magic protocol.Magic
	// DefaultPort is the TCP port peers on this network listen on.
	DefaultPort uint16
	// Checkpoints is ordered ascending by Height.
	Checkpoints []Checkpoint
	// SelfConnect, when true, disables the NONCES self-connection check
	// (useful for regtest where a node may dial itself).
	SelfConnect bool
	// RequestMempool, when true, sends `mempool` to the loader peer when
	// its handshake completes, provided CHAIN is already synced.
	RequestMempool bool
	// CheckpointsEnabled gates headers-first sync.
	CheckpointsEnabled bool
	// DNSSeeds are hostnames POOL resolves for bootstrap addresses.
	DNSSeeds []string
}

// LastCheckpoint returns the highest known checkpoint, or ok=false if the
// network carries none.
func (p Params) LastCheckpoint() (Checkpoint, bool) {
	if len(p.Checkpoints) == 0 {
		return Checkpoint{}, false
	}
	return p.Checkpoints[len(p.Checkpoints)-1], true
}

// NextCheckpoint returns the first checkpoint strictly above height, the
// initial header_tip.
func (p Params) NextCheckpoint(height uint32) (Checkpoint, bool) {
	for _, cp := range p.Checkpoints {
		if cp.Height > height {
			return cp, true
		}
	}
	return Checkpoint{}, false
}

func mustHash(s string) util.Uint256 {
	h, err := util.Uint256DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("chaincfg: bad checkpoint hash %q: %v", s, err))
	}
	return h
}

// NetParams returns the profile for a known network magic.
func NetParams(magic protocol.Magic) (Params, error) {
	switch magic {
	case protocol.MainNet:
		return mainnet(), nil
	case protocol.TestNet:
		return testnet(), nil
	case protocol.RegTest:
		return regtest(), nil
	default:
		return Params{}, fmt.Errorf("chaincfg: unknown network magic %s", magic)
	}
}

func mainnet() Params {
	return Params{
		Magic:              protocol.MainNet,
		DefaultPort:        8333,
		CheckpointsEnabled: true,
		RequestMempool:     false,
		SelfConnect:        false,
		DNSSeeds:           []string{"seed.makonode.org", "seed2.makonode.org"},
		Checkpoints: []Checkpoint{
			{Height: 11111, Hash: mustHash("0000000069e244f73d78e8fd29ba2fd2ed618bd6fa2ee92559f542fdb26e7c1d")},
			{Height: 33333, Hash: mustHash("000000002dd5588a74784eaa7ab0507a18ad16a236e7b1ce69f00d7ddfb5d0a6")},
			{Height: 74000, Hash: mustHash("0000000000573993a3c9e41ce34471c079dcf5f52a0e824a81e7f953b8661a20")},
		},
	}
}

func testnet() Params {
	return Params{
		Magic:              protocol.TestNet,
		DefaultPort:        18333,
		CheckpointsEnabled: true,
		RequestMempool:     true,
		SelfConnect:        false,
		DNSSeeds:           []string{"testnet-seed.makonode.org"},
		Checkpoints: []Checkpoint{
			{Height: 546, Hash: mustHash("000000002a936ca763904c3c35fce2f3556c559c0214345d31b1bcebf76acb70")},
		},
	}
}

func regtest() Params {
	return Params{
		Magic:              protocol.RegTest,
		DefaultPort:        18444,
		CheckpointsEnabled: false,
		RequestMempool:     true,
		SelfConnect:        true,
		Checkpoints:        nil,
	}
}
