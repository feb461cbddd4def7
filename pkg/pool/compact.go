// BIP152 compact-block relay: receiving a cmpctblock, filling it in from
// MEMPOOL, and falling back to getblocktxn/blocktxn for whatever mempool
// can't resolve. Grounded on the connection manager's ownership
// bookkeeping generalized onto per-block partial reconstruction state.
package pool

import (
	"time"

	"github.com/twmb/murmur3"

	"github.com/makonode/p2p/pkg/wire/payload"
	"github.com/makonode/p2p/pkg/wire/util"
)

// partialCompact tracks one in-flight compact block while its short IDs
// are being resolved against MEMPOOL, or while a getblocktxn round-trip
// is filling in the rest.
type partialCompact struct {
	header   payload.BlockHeader
	nonce    uint64
	slots    [][]byte // nil until resolved, indexed by position in block
	missing  []uint64 // indexes still unresolved
	received time.Time
}

// shortID computes the 48-bit BIP152-style short transaction ID for txHash
// under a given block's cmpctblock nonce. A full SipHash-2-4 keyed on the
// header fields is how BIP152 does it; this uses murmur3 instead, seeded
// on the block hash and nonce, since no SipHash implementation is
// available here.
func shortID(blockHash util.Uint256, nonce uint64, txHash util.Uint256) uint64 {
	h1, _ := murmur3.SeedSum128(nonce, murmur3.Sum64(blockHash.Bytes()), txHash.Bytes())
	return h1 & 0xFFFFFFFFFFFF
}

// onCmpctBlock implements the BIP152 receiver side: verify PoW, reject
// duplicates and unrequested-while-full-already blocks, then try to
// complete the block entirely out of MEMPOOL before falling back to
// getblocktxn for whatever's left.
func (p *Pool) onCmpctBlock(ps *peerState, m *payload.CmpctBlockMessage) {
	if !p.cfg.BIP152Enabled || p.cfg.Chain == nil {
		return
	}
	hash := m.Header.Hash()

	if err := p.cfg.Chain.VerifyHeaderPoW(&m.Header); err != nil {
		ps.AddBanScore(100)
		return
	}
	if p.cfg.Chain.HasBody(hash) {
		ps.AddBanScore(10)
		return
	}

	ps.mu.Lock()
	tooMany := len(ps.compactMap) >= MaxInFlightCompact
	ps.mu.Unlock()
	if tooMany {
		ps.AddBanScore(10)
		return
	}

	if _, _, err := p.cfg.Chain.AddHeaders([]*payload.BlockHeader{&m.Header}); err != nil {
		ps.AddBanScore(100)
		return
	}

	total := len(m.ShortIDs) + len(m.PrefilledTxs)
	slots := make([][]byte, total)
	taken := make(map[int]bool, len(m.PrefilledTxs))
	for _, pf := range m.PrefilledTxs {
		idx := int(pf.Index)
		if idx < 0 || idx >= total {
			ps.AddBanScore(100)
			return
		}
		slots[idx] = pf.Raw
		taken[idx] = true
	}

	byShort := make(map[uint64][]byte, len(m.ShortIDs))
	if p.cfg.Mempool != nil {
		for _, e := range p.cfg.Mempool.Entries() {
			byShort[shortID(hash, m.Nonce, e.Hash)] = e.Raw
		}
	}

	var missing []uint64
	shortIdx := 0
	for idx := 0; idx < total; idx++ {
		if taken[idx] {
			continue
		}
		id := m.ShortIDs[shortIdx]
		shortIdx++
		if raw, ok := byShort[id]; ok {
			slots[idx] = raw
		} else {
			missing = append(missing, uint64(idx))
		}
	}

	if len(missing) == 0 {
		p.finishCompact(ps, hash, slots)
		return
	}

	pc := &partialCompact{header: m.Header, nonce: m.Nonce, slots: slots, missing: missing, received: time.Now()}
	p.do(func() {
		ps.mu.Lock()
		ps.compactMap[hash] = pc
		ps.mu.Unlock()
		p.compactOwner[hash] = ps.id
	})

	req, err := payload.NewGetBlockTxnMessage(hash, missing)
	if err != nil {
		return
	}
	_ = ps.Write(req)
}

// onGetBlockTxn answers a peer's getblocktxn from the accepted block body
// CHAIN already holds. The body is one opaque blob with no per-transaction
// boundaries, so the whole body is returned once per requested index.
func (p *Pool) onGetBlockTxn(ps *peerState, m *payload.GetBlockTxnMessage) {
	if p.cfg.Chain == nil {
		return
	}
	raw, ok, err := p.cfg.Chain.Body(m.BlockHash)
	if err != nil || !ok {
		return
	}
	txs := make([][]byte, len(m.Indexes))
	for i := range txs {
		txs[i] = raw
	}
	out, err := payload.NewBlockTxnMessage(m.BlockHash, txs)
	if err != nil {
		return
	}
	_ = ps.Write(out)
}

// onBlockTxn completes a partial compact block once the peer answers the
// getblocktxn round-trip; an incomplete or mismatched answer bans the
// peer lightly rather than closing the connection outright.
func (p *Pool) onBlockTxn(ps *peerState, m *payload.BlockTxnMessage) {
	ps.mu.Lock()
	pc, ok := ps.compactMap[m.BlockHash]
	if ok {
		delete(ps.compactMap, m.BlockHash)
	}
	ps.mu.Unlock()
	if !ok {
		ps.AddBanScore(10)
		return
	}
	p.do(func() { delete(p.compactOwner, m.BlockHash) })

	if len(m.Txs) != len(pc.missing) {
		ps.AddBanScore(10)
		return
	}
	for i, idx := range pc.missing {
		pc.slots[idx] = m.Txs[i]
	}
	p.finishCompact(ps, m.BlockHash, pc.slots)
}

// finishCompact concatenates a fully resolved compact block's transaction
// slots into the opaque raw body CHAIN.Add expects and records it.
func (p *Pool) finishCompact(ps *peerState, hash util.Uint256, slots [][]byte) {
	if p.cfg.Chain == nil {
		return
	}
	var raw []byte
	for _, tx := range slots {
		raw = append(raw, tx...)
	}
	if err := p.cfg.Chain.Add(hash, raw); err != nil {
		ps.AddBanScore(20)
		return
	}
	p.metrics.BlocksAccepted.Inc()
}
