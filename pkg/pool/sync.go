package pool

import (
	"github.com/makonode/p2p/pkg/chain"
	"github.com/makonode/p2p/pkg/wire/payload"
	"github.com/makonode/p2p/pkg/wire/util"
)

// newGetHeadersFromTip builds a getheaders request anchored at tipHash,
// stopping at stopHash (the active checkpoint while in checkpoint mode).
// The locator carries a single hash since CHAIN's header index is a flat
// (hash, height) sequence rather than a fork-aware tree; a denser,
// geometrically spaced locator only matters once competing forks exist,
// which block validation's Non-goal status rules out here.
func newGetHeadersFromTip(tipHash, stopHash util.Uint256) (*payload.GetHeadersMessage, error) {
	return payload.NewGetHeadersMessage([]util.Uint256{tipHash}, stopHash)
}

// newGetBlocksFromTip builds a getblocks request anchored at tipHash with
// no stop hash, used once headers-first sync has disengaged.
func newGetBlocksFromTip(tipHash util.Uint256) (*payload.GetBlocksMessage, error) {
	return payload.NewGetBlocksMessage([]util.Uint256{tipHash}, util.Uint256{})
}

// newGetDataBlocks requests the first batch of block bodies following
// tipHash, the transition out of headers-first sync once the last
// checkpoint has been crossed.
func newGetDataBlocks(c *chain.Chain, tipHash util.Uint256, limit int) (*payload.GetDataMessage, error) {
	hashes, err := c.HashesFrom([]util.Uint256{tipHash}, util.Uint256{}, limit)
	if err != nil {
		return nil, err
	}
	if len(hashes) == 0 {
		return nil, nil
	}
	msg, err := payload.NewGetDataMessage(payload.InvTypeBlock)
	if err != nil {
		return nil, err
	}
	for _, h := range hashes {
		if err := msg.AddHash(h); err != nil {
			break
		}
	}
	return msg, nil
}
