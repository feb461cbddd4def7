// Message dispatch: once PEER has handled handshake/ping locally, every
// other incoming message is routed here. Grounded on a connmgr-style
// callback-wiring approach (LocalConfig's On* fields set to closures
// over the owning Pool), generalized from a bare dial manager's single
// OnDisconnect hook into the full per-command dispatch table.
package pool

import (
	"time"

	"github.com/twmb/murmur3"
	"go.uber.org/zap"

	"github.com/makonode/p2p/pkg/peer"
	"github.com/makonode/p2p/pkg/wire/checksum"
	"github.com/makonode/p2p/pkg/wire/payload"
	"github.com/makonode/p2p/pkg/wire/protocol"
	"github.com/makonode/p2p/pkg/wire/util"
)

// wireHandlers finishes ps-local state that depends on Config but isn't
// part of LocalConfig's callback wiring, called from spawn() right after
// the peerState exists.
func (p *Pool) wireHandlers(ps *peerState) {
	ps.mu.Lock()
	if p.cfg.BIP152Enabled {
		ps.compactMode = 0
	}
	ps.mu.Unlock()
}

// buildLocalConfig assembles the peer.LocalConfig for a not-yet-constructed
// peer. ps is a pointer to the variable spawn() will assign after
// peer.NewPeer returns; every closure here reads *ps at invocation time,
// not at construction time, so they observe the fully built peerState.
func (p *Pool) buildLocalConfig(ps **peerState, nonce uint64) peer.LocalConfig {
	return peer.LocalConfig{
		Net:                p.cfg.Net,
		UserAgent:          p.cfg.UserAgent,
		Services:           p.cfg.Services,
		Nonce:              nonce,
		ProtocolVer:        protocol.Version,
		Relay:              p.cfg.Relay,
		StartHeight:        p.cfg.StartHeight,
		IsKnownNonce:       p.IsKnownNonce,
		CheckpointsEnabled: p.cfg.Params.CheckpointsEnabled,
		SelfConnectOK:      p.cfg.Params.SelfConnect,

		OnHandshakeComplete: func(pr *peer.Peer) { p.onHandshakeComplete(*ps) },
		OnDisconnect:        func(pr *peer.Peer) { p.onDisconnect(*ps) },

		OnVersion:     func(pr *peer.Peer, m *payload.VersionMessage) { p.onVersion(*ps, m) },
		OnGetAddr:     func(pr *peer.Peer, m *payload.GetAddrMessage) { p.onGetAddr(*ps, m) },
		OnAddr:        func(pr *peer.Peer, m *payload.AddrMessage) { p.onAddr(*ps, m) },
		OnHeader:      func(pr *peer.Peer, m *payload.HeadersMessage) { p.onHeaders(*ps, m) },
		OnGetHeaders:  func(pr *peer.Peer, m *payload.GetHeadersMessage) { p.onGetHeaders(*ps, m) },
		OnInv:         func(pr *peer.Peer, m *payload.InvMessage) { p.onInv(*ps, m) },
		OnGetData:     func(pr *peer.Peer, m *payload.GetDataMessage) { p.onGetData(*ps, m) },
		OnNotFound:    func(pr *peer.Peer, m *payload.NotFoundMessage) { p.onNotFound(*ps, m) },
		OnBlock:       func(pr *peer.Peer, m *payload.BlockMessage) { p.onBlock(*ps, m) },
		OnGetBlocks:   func(pr *peer.Peer, m *payload.GetBlocksMessage) { p.onGetBlocks(*ps, m) },
		OnTx:          func(pr *peer.Peer, m *payload.TxMessage) { p.onTx(*ps, m) },
		OnMemPool:     func(pr *peer.Peer, m *payload.MemPoolMessage) { p.onMemPool(*ps, m) },
		OnFeeFilter:   func(pr *peer.Peer, m *payload.FeeFilterMessage) { p.onFeeFilter(*ps, m) },
		OnSendHeaders: func(pr *peer.Peer, m *payload.SendHeadersMessage) { p.onSendHeaders(*ps, m) },
		OnSendCmpct:   func(pr *peer.Peer, m *payload.SendCmpctMessage) { p.onSendCmpct(*ps, m) },
		OnCmpctBlock:  func(pr *peer.Peer, m *payload.CmpctBlockMessage) { p.onCmpctBlock(*ps, m) },
		OnGetBlockTxn: func(pr *peer.Peer, m *payload.GetBlockTxnMessage) { p.onGetBlockTxn(*ps, m) },
		OnBlockTxn:    func(pr *peer.Peer, m *payload.BlockTxnMessage) { p.onBlockTxn(*ps, m) },
		OnReject:      func(pr *peer.Peer, m *payload.RejectMessage) { p.onReject(*ps, m) },
	}
}

func (p *Pool) onVersion(ps *peerState, v *payload.VersionMessage) {
	if p.cfg.Clock != nil {
		p.cfg.Clock.Add(ps.addr, time.Unix(v.Timestamp, 0))
	}
	p.forgetNonce(v.Nonce)
}

func (p *Pool) onGetAddr(ps *peerState, m *payload.GetAddrMessage) {
	if ps.outbound {
		return
	}
	ps.mu.Lock()
	already := ps.gotAddr
	ps.gotAddr = true
	ps.mu.Unlock()
	if already || p.cfg.Addrmgr == nil {
		return
	}
	p.cfg.Addrmgr.OnGetAddr(ps.Peer, m)
}

func (p *Pool) onAddr(ps *peerState, m *payload.AddrMessage) {
	if len(m.Addrs) > payload.MaxAddrs {
		ps.AddBanScore(100)
		return
	}
	if p.cfg.Addrmgr != nil {
		p.cfg.Addrmgr.OnAddr(ps.Peer, m)
	}
	if len(m.Addrs) >= 10 {
		return
	}
	p.forwardAddr(ps, m)
}

// forwardAddr relays a small, unsolicited addr message to two peers chosen
// deterministically by hashing the first address, matching the spirit of
// Bitcoin's "relay addr to 2 random peers" anti-eclipse behavior without an
// actual RNG in the hot path.
func (p *Pool) forwardAddr(ps *peerState, m *payload.AddrMessage) {
	if len(m.Addrs) == 0 {
		return
	}
	p.mu.RLock()
	targets := make([]*peerState, 0, len(p.peers))
	for _, other := range p.peers {
		if other.id != ps.id && other.State() == peer.StateConnected {
			targets = append(targets, other)
		}
	}
	p.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	seed := murmur3.Sum32(m.Addrs[0].IP[:])
	first := int(seed) % len(targets)
	second := (first + 1) % len(targets)
	chosen := map[int]bool{first: true}
	if len(targets) > 1 {
		chosen[second] = true
	}
	for idx := range chosen {
		out, err := payload.NewAddrMessage()
		if err != nil {
			continue
		}
		for i := range m.Addrs {
			if err := out.AddNetAddr(&m.Addrs[i]); err != nil {
				break
			}
		}
		_ = targets[idx].Write(out)
	}
}

func (p *Pool) onGetHeaders(ps *peerState, m *payload.GetHeadersMessage) {
	if p.cfg.Chain == nil {
		return
	}
	headers, err := p.cfg.Chain.HeadersFrom(m.HashStart, m.HashStop, payload.MaxHeadersResult)
	if err != nil {
		return
	}
	out, err := payload.NewHeadersMessage()
	if err != nil {
		return
	}
	for _, h := range headers {
		out.AddHeader(h)
	}
	_ = ps.Write(out)
}

func (p *Pool) onGetBlocks(ps *peerState, m *payload.GetBlocksMessage) {
	if p.cfg.Chain == nil {
		return
	}
	hashes, err := p.cfg.Chain.HashesFrom(m.HashStart, m.HashStop, GetBlocksBatchLimit)
	if err != nil {
		return
	}
	out, err := payload.NewInvMessage(payload.InvTypeBlock)
	if err != nil {
		return
	}
	for _, h := range hashes {
		if err := out.AddHash(h); err != nil {
			break
		}
	}
	_ = ps.Write(out)
}

// onHeaders drives headers-first sync against the loader's batches,
// verifying PoW/contiguity/checkpoint crossing in CHAIN and then issuing
// either the next getheaders or the first block getdata batch.
func (p *Pool) onHeaders(ps *peerState, m *payload.HeadersMessage) {
	if p.cfg.Chain == nil || len(m.Headers) == 0 {
		return
	}
	if len(m.Headers) > payload.MaxHeadersResult {
		ps.AddBanScore(100)
		return
	}
	if !ps.loader {
		return
	}

	_, crossed, err := p.cfg.Chain.AddHeaders(m.Headers)
	if err != nil {
		ps.AddBanScore(100)
		return
	}
	p.metrics.HeadersAccepted.Add(float64(len(m.Headers)))

	if crossed && !p.cfg.Chain.InCheckpointMode() {
		p.startBlockSync(ps)
		return
	}
	p.startHeadersSync(ps)
}

// startBlockSync issues the first batch of block getdata once headers-first
// sync has caught up to the last checkpoint.
func (p *Pool) startBlockSync(ps *peerState) {
	tip := p.cfg.Chain.Tip()
	msg, err := newGetDataBlocks(p.cfg.Chain, tip.Hash, MaxBlockRequest)
	if err != nil || msg == nil {
		return
	}
	_ = ps.Write(msg)
}

func (p *Pool) onInv(ps *peerState, m *payload.InvMessage) {
	if len(m.Hashes) > protocol.MaxInv {
		ps.AddBanScore(100)
		return
	}
	switch m.Type {
	case payload.InvTypeBlock, payload.InvTypeCmpctBlock:
		p.onBlockInv(ps, m.Hashes)
	case payload.InvTypeTx:
		p.onTxInv(ps, m.Hashes)
	}
}


// onBlockInv implements the block-inv handler: ignored entirely unless the
// node is synced or the sender is the loader, and skipped while headers-
// first sync is still in checkpoint mode (blocks are requested only after
// headers catch up).
func (p *Pool) onBlockInv(ps *peerState, hashes []util.Uint256) {
	if p.cfg.Chain == nil {
		return
	}
	if !p.cfg.Chain.Synced() && !ps.loader {
		return
	}
	if p.cfg.Chain.InCheckpointMode() {
		return
	}

	var toRequest []util.Uint256
	for _, h := range hashes {
		if p.cfg.Chain.HasBody(h) {
			continue
		}
		toRequest = append(toRequest, h)
	}
	if len(toRequest) == 0 {
		return
	}
	p.requestBlocks(ps, toRequest)
}

// requestBlocks enqueues up to MaxBlockRequest hashes as a single getdata,
// registering each in POOL's global block owner table and the peer's own
// block_map so a hash is outstanding against exactly one peer at a time.
func (p *Pool) requestBlocks(ps *peerState, hashes []util.Uint256) {
	if len(hashes) > MaxBlockRequest {
		hashes = hashes[:MaxBlockRequest]
	}
	out, err := payload.NewGetDataMessage(payload.InvTypeBlock)
	if err != nil {
		return
	}
	now := time.Now()
	p.do(func() {
		for _, h := range hashes {
			if _, owned := p.blockOwner[h]; owned {
				continue
			}
			if err := out.AddHash(h); err != nil {
				break
			}
			p.blockOwner[h] = ps.id
			ps.mu.Lock()
			ps.blockMap[h] = now
			ps.mu.Unlock()
		}
	})
	if len(out.Hashes) > 0 {
		_ = ps.Write(out)
	}
}

// onTxInv is the tx-inv handler: analogous to onBlockInv but against
// MEMPOOL instead of CHAIN, skipping hashes already known or rejected.
func (p *Pool) onTxInv(ps *peerState, hashes []util.Uint256) {
	if p.cfg.Mempool == nil {
		return
	}
	var toRequest []util.Uint256
	for _, h := range hashes {
		if p.cfg.Mempool.Has(h) || p.cfg.Mempool.HasReject(h) || p.cfg.Mempool.HasOrphan(h) {
			continue
		}
		toRequest = append(toRequest, h)
	}
	if len(toRequest) == 0 {
		return
	}
	if len(toRequest) > MaxTxRequest {
		toRequest = toRequest[:MaxTxRequest]
	}
	out, err := payload.NewGetDataMessage(payload.InvTypeTx)
	if err != nil {
		return
	}
	now := time.Now()
	p.do(func() {
		for _, h := range toRequest {
			if _, owned := p.txOwner[h]; owned {
				continue
			}
			if err := out.AddHash(h); err != nil {
				break
			}
			p.txOwner[h] = ps.id
			ps.mu.Lock()
			ps.txMap[h] = now
			ps.mu.Unlock()
		}
	})
	if len(out.Hashes) > 0 {
		_ = ps.Write(out)
	}
}

func (p *Pool) onGetData(ps *peerState, m *payload.GetDataMessage) {
	if len(m.Hashes) > protocol.MaxInv {
		ps.AddBanScore(100)
		return
	}
	for _, h := range m.Hashes {
		switch m.Type {
		case payload.InvTypeBlock:
			p.serveBlock(ps, h)
		case payload.InvTypeTx:
			p.serveTx(ps, h)
		}
	}
}

func (p *Pool) serveBlock(ps *peerState, hash util.Uint256) {
	if p.cfg.Chain == nil {
		return
	}
	hdr, ok, err := p.cfg.Chain.Header(hash)
	if err != nil || !ok {
		p.sendNotFound(ps, payload.InvTypeBlock, hash)
		return
	}
	raw, ok, err := p.cfg.Chain.Body(hash)
	if err != nil || !ok {
		p.sendNotFound(ps, payload.InvTypeBlock, hash)
		return
	}
	msg, err := payload.NewBlockMessage(*hdr)
	if err != nil {
		return
	}
	msg.TxBytes = raw
	_ = ps.Write(msg)
}

func (p *Pool) serveTx(ps *peerState, hash util.Uint256) {
	if p.cfg.Mempool == nil {
		return
	}
	entry, ok := p.cfg.Mempool.Get(hash)
	if !ok {
		p.sendNotFound(ps, payload.InvTypeTx, hash)
		return
	}
	msg, err := payload.NewTxMessage(entry.Raw)
	if err != nil {
		return
	}
	_ = ps.Write(msg)
}

func (p *Pool) sendNotFound(ps *peerState, t payload.InvType, hash util.Uint256) {
	msg, err := payload.NewNotFoundMessage(t)
	if err != nil {
		return
	}
	if err := msg.AddHash(hash); err != nil {
		return
	}
	_ = ps.Write(msg)
}

// onNotFound removes the matching hashes from POOL's outstanding sets; a
// notfound for a hash this peer never requested is a protocol violation.
func (p *Pool) onNotFound(ps *peerState, m *payload.NotFoundMessage) {
	unsolicited := false
	p.do(func() {
		ps.mu.Lock()
		defer ps.mu.Unlock()
		for _, h := range m.Hashes {
			switch m.Type {
			case payload.InvTypeBlock:
				if _, ok := ps.blockMap[h]; !ok {
					unsolicited = true
					continue
				}
				delete(ps.blockMap, h)
				delete(p.blockOwner, h)
			case payload.InvTypeTx:
				if _, ok := ps.txMap[h]; !ok {
					unsolicited = true
					continue
				}
				delete(ps.txMap, h)
				delete(p.txOwner, h)
			}
		}
	})
	if unsolicited {
		ps.Disconnect()
	}
}

// onBlock handles an incoming block: the hash must be outstanding against
// this peer, else it is unrequested and closes the connection.
func (p *Pool) onBlock(ps *peerState, m *payload.BlockMessage) {
	if p.cfg.Chain == nil {
		return
	}
	hash := m.Header.Hash()
	var owed bool
	p.do(func() {
		ps.mu.Lock()
		_, owed = ps.blockMap[hash]
		if owed {
			delete(ps.blockMap, hash)
		}
		ps.mu.Unlock()
		if owed {
			delete(p.blockOwner, hash)
		}
	})
	if !owed {
		ps.Disconnect()
		return
	}
	ps.mu.Lock()
	ps.lastBlock = time.Now()
	ps.mu.Unlock()

	if err := p.cfg.Chain.Add(hash, m.TxBytes); err != nil {
		msg, merr := payload.NewRejectMessage(m.Command(), payload.RejectInvalid, err.Error())
		if merr == nil {
			_ = ps.Write(msg)
		}
		ps.AddBanScore(20)
		return
	}
	p.metrics.BlocksAccepted.Inc()

	if p.cfg.Chain.InCheckpointMode() {
		p.startHeadersSync(ps)
	}
}

// onTx handles an incoming transaction: the hash must be outstanding
// against this peer's tx_map. On success, the transaction is announced
// to every other CONNECTED peer.
func (p *Pool) onTx(ps *peerState, m *payload.TxMessage) {
	if p.cfg.Mempool == nil {
		return
	}
	hash := txHash(m.Raw)
	var owed bool
	p.do(func() {
		ps.mu.Lock()
		_, owed = ps.txMap[hash]
		if owed {
			delete(ps.txMap, hash)
		}
		ps.mu.Unlock()
		if owed {
			delete(p.txOwner, hash)
		}
	})
	if !owed {
		ps.Disconnect()
		return
	}

	orphan, missing, err := p.cfg.Mempool.Add(hash, m.Raw, nil)
	if err != nil {
		ps.AddBanScore(20)
		return
	}
	if orphan {
		p.requestMissingParents(ps, missing)
		return
	}
	p.metrics.TxAccepted.Inc()
	p.announceTx(ps, hash)
}

func (p *Pool) requestMissingParents(ps *peerState, parents []util.Uint256) {
	if len(parents) == 0 {
		return
	}
	p.onTxInv(ps, parents)
}

// announceTx sends a one-item inv for hash to every CONNECTED peer except
// the one it arrived from, honoring each peer's inv filter and no-relay
// flag. There is no inv queue; each announcement is written immediately.
func (p *Pool) announceTx(source *peerState, hash util.Uint256) {
	p.mu.RLock()
	snapshot := make([]*peerState, 0, len(p.peers))
	for _, ps := range p.peers {
		if ps.id != source.id && ps.State() == peer.StateConnected {
			snapshot = append(snapshot, ps)
		}
	}
	p.mu.RUnlock()

	for _, ps := range snapshot {
		ps.mu.Lock()
		if ps.noRelay || ps.invFilter.Contains(hash.Bytes()) {
			ps.mu.Unlock()
			continue
		}
		ps.invFilter.Add(hash.Bytes())
		ps.mu.Unlock()

		inv, err := payload.NewInvMessage(payload.InvTypeTx)
		if err != nil {
			continue
		}
		if err := inv.AddHash(hash); err != nil {
			continue
		}
		_ = ps.Write(inv)
	}
}

func (p *Pool) onMemPool(ps *peerState, m *payload.MemPoolMessage) {
	if !p.cfg.BIP37Enabled || p.cfg.Mempool == nil {
		return
	}
	hashes := p.cfg.Mempool.Hashes()
	for len(hashes) > 0 {
		batch := hashes
		if len(batch) > 1000 {
			batch = batch[:1000]
		}
		inv, err := payload.NewInvMessage(payload.InvTypeTx)
		if err != nil {
			return
		}
		for _, h := range batch {
			if err := inv.AddHash(h); err != nil {
				break
			}
		}
		_ = ps.Write(inv)
		hashes = hashes[len(batch):]
	}
}

func (p *Pool) onFeeFilter(ps *peerState, m *payload.FeeFilterMessage) {
	ps.mu.Lock()
	ps.feeRate = int64(m.FeeRate)
	ps.mu.Unlock()
}

func (p *Pool) onSendHeaders(ps *peerState, m *payload.SendHeadersMessage) {
	ps.mu.Lock()
	ps.headerPref = true
	ps.mu.Unlock()
}

func (p *Pool) onSendCmpct(ps *peerState, m *payload.SendCmpctMessage) {
	if !p.cfg.BIP152Enabled {
		return
	}
	ps.mu.Lock()
	if m.Announce {
		ps.compactMode = 1
	} else {
		ps.compactMode = 0
	}
	ps.mu.Unlock()
}

func (p *Pool) onReject(ps *peerState, m *payload.RejectMessage) {
	p.log.Debug("peer sent reject",
		zap.String("addr", ps.addr),
		zap.String("command", string(m.RejectedCommand)),
		zap.Uint8("code", uint8(m.Code)),
		zap.String("reason", m.Reason))
}

func txHash(raw []byte) util.Uint256 {
	sum := checksum.DoubleSha256(raw)
	h, _ := util.Uint256DecodeBytes(sum[:])
	return h
}
