// Package chain implements CHAIN, the collaborator POOL hands block and
// header bodies to. Block validation, UTXO tracking and mining are out
// of scope, so unlike a full ledger with a UTXO index this package
// limits itself to what headers-first sync and block bookkeeping
// actually need: proof-of-work and contiguity checking on headers, and
// a durable place for header/checkpoint state and raw block/tx bodies
// to live. Adapted from a Chain/SaveHeaders/VerifyBlock shape and a
// ValidationError/DatabaseError error idiom.
package chain

import (
	"sync"

	"github.com/makonode/p2p/pkg/chaincfg"
	"github.com/makonode/p2p/pkg/wire/payload"
	"github.com/makonode/p2p/pkg/wire/util"
)

// HeaderNode is one link of HEADERS CHAIN: a (hash, height) pair
// representing a prefix of known block headers.
type HeaderNode struct {
	Hash   util.Uint256
	Height uint32
	Header *payload.BlockHeader
}

// Chain tracks the locally known header chain and, once headers-first
// sync completes, accepted block bodies. It is owned by POOL and is not
// safe to share across POOL instances, but is internally safe for
// concurrent calls since POOL's own dispatch loop may call it from
// stall-timer and read-loop goroutines alike.
type Chain struct {
	mu sync.RWMutex

	params chaincfg.Params
	store  *store

	tip HeaderNode

	// checkpointIdx indexes the next checkpoint in params.Checkpoints the
	// chain has not yet crossed; -1 once checkpoint mode has disengaged.
	checkpointIdx int
}

// Option configures a new Chain.
type Option func(*Chain)

// WithStore opens bbolt/goleveldb stores at the given paths for durable
// header, checkpoint and block-body persistence. Without this option the
// chain is purely in-memory (used by tests).
func WithStore(headerPath, bodyPath string) Option {
	return func(c *Chain) {
		s, err := openStore(headerPath, bodyPath)
		if err != nil {
			// A Chain built with a bad path still functions in-memory;
			// the open error is discarded and nothing reports it.
			return
		}
		c.store = s
	}
}

// New builds a Chain rooted at genesis (height 0) for the given network.
func New(params chaincfg.Params, opts ...Option) *Chain {
	c := &Chain{params: params, checkpointIdx: 0}
	for _, o := range opts {
		o(c)
	}
	if !params.CheckpointsEnabled {
		c.checkpointIdx = -1
	}
	if c.store != nil {
		if idx, ok, _ := c.store.getCheckpointCursor(); ok {
			c.checkpointIdx = idx
		}
	}
	return c
}

// Close releases the chain's storage handles, if any.
func (c *Chain) Close() error { return c.store.Close() }

// Tip returns the current header chain tip.
func (c *Chain) Tip() HeaderNode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tip
}

// HeaderTip returns the checkpoint headers-first sync is currently working
// toward, and whether one is active.
func (c *Chain) HeaderTip() (chaincfg.Checkpoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.headerTipLocked()
}

func (c *Chain) headerTipLocked() (chaincfg.Checkpoint, bool) {
	if c.checkpointIdx < 0 || c.checkpointIdx >= len(c.params.Checkpoints) {
		return chaincfg.Checkpoint{}, false
	}
	return c.params.Checkpoints[c.checkpointIdx], true
}

// InCheckpointMode reports whether POOL should be issuing getheaders
// rather than getblocks: true whenever checkpoints are enabled and the
// local tip is below the network's last checkpoint.
func (c *Chain) InCheckpointMode() bool {
	_, ok := c.HeaderTip()
	return ok
}

// VerifyHeaderPoW checks a header's hash against its own Bits target,
// against the difficulty target encoded in its own Bits field.
func (c *Chain) VerifyHeaderPoW(h *payload.BlockHeader) error {
	if !verifyPoW(h.Hash(), h.Bits) {
		return ErrBadProofOfWork
	}
	return nil
}

// AddHeaders validates and appends a headers batch onto the current tail,
// It returns the number of headers accepted and whether the batch
// crossed the active checkpoint (POOL uses this to decide getheaders
// vs. switching to block getdata).
func (c *Chain) AddHeaders(hdrs []*payload.BlockHeader) (accepted int, crossedCheckpoint bool, err error) {
	if len(hdrs) == 0 {
		return 0, false, nil
	}
	if len(hdrs) > payload.MaxHeadersResult {
		return 0, false, ErrNotContiguous
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tail := c.tip
	cp, hasCp := c.headerTipLocked()

	for _, h := range hdrs {
		if err := c.VerifyHeaderPoW(h); err != nil {
			return accepted, crossedCheckpoint, err
		}
		// Genesis has no parent to check against; every later header must
		// chain onto the current tail (I5).
		if accepted > 0 || tail.Height > 0 || !tail.Hash.IsZero() {
			if !h.PrevHash.Equals(tail.Hash) {
				return accepted, crossedCheckpoint, ErrNotContiguous
			}
		}

		height := tail.Height
		if accepted > 0 || !tail.Hash.IsZero() {
			height = tail.Height + 1
		}
		hash := h.Hash()

		if hasCp && height == cp.Height {
			if !hash.Equals(cp.Hash) {
				return accepted, crossedCheckpoint, ErrNotContiguous
			}
			crossedCheckpoint = true
		}

		tail = HeaderNode{Hash: hash, Height: height, Header: h}
		if err := c.store.putHeader(height, h); err != nil {
			return accepted, crossedCheckpoint, err
		}
		accepted++
	}

	c.tip = tail

	if crossedCheckpoint {
		c.advanceCheckpointLocked()
	}
	return accepted, crossedCheckpoint, nil
}

// advanceCheckpointLocked moves to the next checkpoint, or disengages
// checkpoint mode once the last one has been crossed.
func (c *Chain) advanceCheckpointLocked() {
	c.checkpointIdx++
	if c.checkpointIdx >= len(c.params.Checkpoints) {
		c.checkpointIdx = -1
	}
	_ = c.store.putCheckpointCursor(c.checkpointIdx)
}

// Synced reports whether the header chain has reached the network's last
// known checkpoint (or checkpoints are disabled entirely).
func (c *Chain) Synced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.checkpointIdx < 0
}

// Add accepts a full block body once its header is already known,
// Validation beyond proof-of-work is out of scope (block validation and
// UTXO tracking are not handled here); this records the raw tx bytes
// against the block's known header hash and reports
// ErrUnknownParent/ErrBlockAlreadyExists the way POOL expects in order
// to apply ban score or re-request.
func (c *Chain) Add(hash util.Uint256, rawTxBytes []byte) error {
	c.mu.RLock()
	_, exists, err := c.store.getBody(hash)
	c.mu.RUnlock()
	if err != nil {
		return err
	}
	if exists {
		return ErrBlockAlreadyExists
	}

	c.mu.RLock()
	_, known, err := c.findHeaderLocked(hash)
	c.mu.RUnlock()
	if err != nil {
		return err
	}
	if !known {
		return ErrUnknownParent
	}

	return c.store.putBody(hash, rawTxBytes)
}

// findHeaderLocked looks a header up by hash, walking the height index
// from the current tip downward. Acceptable for the bounded scan sizes
// POOL uses (MAX_BLOCK_REQUEST-sized batches); a hash index would be a
// reasonable next step if batches grow.
func (c *Chain) findHeaderLocked(hash util.Uint256) (*payload.BlockHeader, bool, error) {
	if c.tip.Hash.Equals(hash) {
		return c.tip.Header, true, nil
	}
	for h := c.tip.Height; ; h-- {
		hdr, ok, err := c.store.getHeaderByHeight(h)
		if err != nil {
			return nil, false, err
		}
		if ok && hdr.Hash().Equals(hash) {
			return hdr, true, nil
		}
		if h == 0 {
			break
		}
	}
	return nil, false, nil
}

// HasBody reports whether a block body is already recorded for hash.
func (c *Chain) HasBody(hash util.Uint256) bool {
	_, ok, err := c.Body(hash)
	return err == nil && ok
}

// heightOfLocked returns the height of a hash already known to be in the
// chain (via findHeaderLocked), walking the same downward scan.
func (c *Chain) heightOfLocked(hash util.Uint256) uint32 {
	if c.tip.Hash.Equals(hash) {
		return c.tip.Height
	}
	for h := c.tip.Height; ; h-- {
		hdr, ok, err := c.store.getHeaderByHeight(h)
		if err == nil && ok && hdr.Hash().Equals(hash) {
			return h
		}
		if h == 0 {
			break
		}
	}
	return 0
}

// HeadersFrom resolves a getheaders-style locator to the headers
// immediately following the best-matching hash, up to stop or limit.
func (c *Chain) HeadersFrom(start []util.Uint256, stop util.Uint256, limit int) ([]*payload.BlockHeader, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fromHeight := c.bestMatchLocked(start)
	var out []*payload.BlockHeader
	for h := fromHeight + 1; h <= c.tip.Height && len(out) < limit; h++ {
		hdr, ok, err := c.store.getHeaderByHeight(h)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, hdr)
		if !stop.IsZero() && hdr.Hash().Equals(stop) {
			break
		}
	}
	return out, nil
}

// HashesFrom resolves a getblocks-style locator to the block hashes
// immediately following the best-matching hash, up to stop or limit.
func (c *Chain) HashesFrom(start []util.Uint256, stop util.Uint256, limit int) ([]util.Uint256, error) {
	headers, err := c.HeadersFrom(start, stop, limit)
	if err != nil {
		return nil, err
	}
	out := make([]util.Uint256, len(headers))
	for i, h := range headers {
		out[i] = h.Hash()
	}
	return out, nil
}

// bestMatchLocked returns the height of the first locator hash already
// known to the chain (locator order is most-recent-first), or 0 (genesis)
// if none match.
func (c *Chain) bestMatchLocked(start []util.Uint256) uint32 {
	for _, h := range start {
		if _, ok, _ := c.findHeaderLocked(h); ok {
			return c.heightOfLocked(h)
		}
	}
	return 0
}

// Header returns the known header for hash, if any.
func (c *Chain) Header(hash util.Uint256) (*payload.BlockHeader, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findHeaderLocked(hash)
}

// Body returns the raw tx bytes previously recorded for hash, if any.
func (c *Chain) Body(hash util.Uint256) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.getBody(hash)
}
