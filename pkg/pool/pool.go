// Package pool implements POOL, the root coordinator: it owns PEERS
// (the connected-peer table), NONCES (handshake nonce bookkeeping),
// HEADERS CHAIN bootstrap (delegated to pkg/chain once a node is in
// checkpoint mode) and drives outbound dialing, inbound accept, loader
// selection and message dispatch. Grounded on the connection manager's
// `actionch chan func()` serialized-loop idiom, generalized from a bare
// dial/retry manager into a full coordinator wired against pkg/chain,
// pkg/mempool, pkg/addrmgr and pkg/timedata as its collaborators.
package pool

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/makonode/p2p/pkg/addrmgr"
	"github.com/makonode/p2p/pkg/chain"
	"github.com/makonode/p2p/pkg/chaincfg"
	"github.com/makonode/p2p/pkg/mempool"
	"github.com/makonode/p2p/pkg/peer"
	"github.com/makonode/p2p/pkg/peer/bloom"
	"github.com/makonode/p2p/pkg/timedata"
	"github.com/makonode/p2p/pkg/wire/payload"
	"github.com/makonode/p2p/pkg/wire/protocol"
	"github.com/makonode/p2p/pkg/wire/util"
)

// Tunables governing outbound/inbound limits and sync batching.
const (
	DefaultMaxOutbound  = 8
	DefaultMaxInbound   = 8
	MaxBlockRequest     = 16
	MaxTxRequest        = 16
	RefillInterval      = 3 * time.Second
	TickInterval        = 5 * time.Second
	InvFlushInterval    = 5 * time.Second
	MaxInFlightCompact  = 15
	GetBlocksBatchLimit = 500
)

// Config wires POOL's collaborators and network identity together.
type Config struct {
	Net        protocol.Magic
	Params     chaincfg.Params
	ListenAddr string

	MaxOutbound int
	MaxInbound  int

	UserAgent        string
	Services         protocol.Service
	RequiredServices protocol.Service
	Relay            bool
	BIP37Enabled     bool
	BIP152Enabled    bool

	StartHeight func() uint32

	Chain   *chain.Chain
	Mempool *mempool.Pool
	Addrmgr *addrmgr.Addrmgr
	Clock   *timedata.Clock

	Log        *zap.Logger
	Registerer prometheus.Registerer
}

func (c *Config) setDefaults() {
	if c.MaxOutbound == 0 {
		c.MaxOutbound = DefaultMaxOutbound
	}
	if c.MaxInbound == 0 {
		c.MaxInbound = DefaultMaxInbound
	}
	if c.Log == nil {
		c.Log = zap.NewNop()
	}
}

// peerState is POOL's view of one connection: the *peer.Peer plus the
// bookkeeping attaches on top of a connection: loader flag, outstanding
// request tables, per-peer filters.
type peerState struct {
	*peer.Peer

	id uint32
	// sessionID is a process-unique identifier for this connection,
	// independent of id (which is only unique among currently-connected
	// peers and gets reused); log lines that need to correlate across a
	// peer's full lifetime, including past reconnects, key off this
	// instead.
	sessionID uuid.UUID
	addr      string
	outbound  bool
	nonce     uint64

	mu          sync.Mutex
	loader      bool
	gotAddr     bool
	gotMemPool  bool
	blockMap    map[util.Uint256]time.Time
	txMap       map[util.Uint256]time.Time
	compactMap  map[util.Uint256]*partialCompact
	invFilter   *bloom.Filter
	addrFilter  *bloom.Filter
	headerPref  bool
	compactMode int8 // -1 none, 0 hdr-announce, 1 cmpct-announce
	noRelay     bool
	feeRate     int64 // -1 none
	lastBlock   time.Time
}

func newPeerState(id uint32, p *peer.Peer, addr string, outbound bool, nonce uint64) *peerState {
	return &peerState{
		Peer:        p,
		id:          id,
		sessionID:   uuid.New(),
		addr:        addr,
		outbound:    outbound,
		nonce:       nonce,
		blockMap:    make(map[util.Uint256]time.Time),
		txMap:       make(map[util.Uint256]time.Time),
		compactMap:  make(map[util.Uint256]*partialCompact),
		invFilter:   bloom.New(50000, 1e-6),
		addrFilter:  bloom.New(5000, 0.001),
		compactMode: -1,
		feeRate:     -1,
	}
}

// Pool is POOL.
type Pool struct {
	cfg     Config
	log     *zap.Logger
	metrics *Metrics

	// actionch serializes all mutations to peers/nonces/loader state onto
	// one goroutine, a connmgr-style actionch pattern generalized
	// from connection bookkeeping to the whole coordinator.
	actionch chan func()
	stopCh   chan struct{}

	mu       sync.RWMutex
	peers    map[uint32]*peerState
	nextID   uint32
	loaderID uint32 // 0 = no loader

	// blockOwner/txOwner/compactOwner record which peer currently owns an
	// outstanding request for a given hash, enforcing that a hash is
	// outstanding against exactly one peer at a time.
	blockOwner   map[util.Uint256]uint32
	txOwner      map[util.Uint256]uint32
	compactOwner map[util.Uint256]uint32

	noncesMu sync.Mutex
	nonces   map[uint64]struct{}

	listener net.Listener
}

// New builds a Pool. Call Run to start listening/dialing.
func New(cfg Config) *Pool {
	cfg.setDefaults()
	return &Pool{
		cfg:      cfg,
		log:      cfg.Log,
		metrics:  NewMetrics(cfg.Registerer),
		actionch:     make(chan func(), 1024),
		stopCh:       make(chan struct{}),
		peers:        make(map[uint32]*peerState),
		blockOwner:   make(map[util.Uint256]uint32),
		txOwner:      make(map[util.Uint256]uint32),
		compactOwner: make(map[util.Uint256]uint32),
		nonces:       make(map[uint64]struct{}),
	}
}

// Run starts POOL's dispatch loop, optional listener, and refill ticker.
func (p *Pool) Run() error {
	go p.dispatchLoop()

	if p.cfg.ListenAddr != "" {
		ln, err := net.Listen("tcp", p.cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("pool: listen: %w", err)
		}
		p.listener = ln
		go p.acceptLoop()
	}

	go p.refillLoop()
	go p.tickLoop()
	return nil
}

// Stop shuts down the listener and background loops.
func (p *Pool) Stop() {
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
	if p.listener != nil {
		_ = p.listener.Close()
	}
}

func (p *Pool) dispatchLoop() {
	for {
		select {
		case f := <-p.actionch:
			f()
		case <-p.stopCh:
			return
		}
	}
}

// do runs f on the dispatch goroutine and waits for it to finish,
// a connmgr-style synchronous-via-channel idiom.
func (p *Pool) do(f func()) {
	done := make(chan struct{})
	select {
	case p.actionch <- func() { f(); close(done) }:
		<-done
	case <-p.stopCh:
	}
}

func (p *Pool) acceptLoop() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			select {
			case <-p.stopCh:
				return
			default:
				p.log.Warn("accept failed", zap.Error(err))
				continue
			}
		}
		if p.InboundCount() >= p.cfg.MaxInbound {
			conn.Close()
			continue
		}
		p.spawn(conn, false, conn.RemoteAddr().String())
	}
}

// Connect dials addr and registers it as an outbound peer.
func (p *Pool) Connect(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		p.metrics.DialFailures.Inc()
		if p.cfg.Addrmgr != nil {
			p.cfg.Addrmgr.Failed(addr)
		}
		return err
	}
	p.spawn(conn, true, addr)
	return nil
}

func (p *Pool) spawn(conn net.Conn, outbound bool, addr string) {
	var id uint32
	p.do(func() {
		p.nextID++
		id = p.nextID
	})

	// ps is declared before NewPeer and filled in afterward; OnDisconnect
	// closes over the variable itself (not its value at closure-creation
	// time), so by the time PEER actually invokes it, ps is populated.
	var ps *peerState
	nonce := p.newNonce()
	local := p.buildLocalConfig(&ps, nonce)
	pr := peer.NewPeer(conn, !outbound, local)
	ps = newPeerState(id, pr, addr, outbound, nonce)
	p.wireHandlers(ps)

	p.do(func() {
		p.mu.Lock()
		p.peers[id] = ps
		p.mu.Unlock()
	})

	if err := pr.Run(); err != nil {
		p.do(func() {
			p.mu.Lock()
			delete(p.peers, id)
			p.mu.Unlock()
		})
		p.forgetNonce(nonce)
		return
	}
}

// onHandshakeComplete runs the loader-selection evaluation and
// ADDRMAN bookkeeping triggered by every completed handshake.
func (p *Pool) onHandshakeComplete(ps *peerState) {
	p.log.Info("peer handshake complete",
		zap.Stringer("session", ps.sessionID), zap.String("addr", ps.addr), zap.Bool("outbound", ps.outbound))
	if p.cfg.Addrmgr != nil {
		p.cfg.Addrmgr.ConnectionComplete(ps.addr, !ps.outbound)
	}
	p.metrics.PeersConnected.Inc()
	if ps.outbound {
		p.metrics.PeersOutbound.Inc()
	}
	if rv := ps.RemoteVersion(); rv != nil {
		ps.mu.Lock()
		ps.noRelay = !rv.Relay
		ps.mu.Unlock()
	}
	if p.loaderID == 0 && ps.outbound {
		p.selectLoader()
	}
	if p.cfg.Params.RequestMempool && ps.loader && p.cfg.Chain != nil && p.cfg.Chain.Synced() {
		if msg, err := payload.NewMemPoolMessage(); err == nil {
			_ = ps.Write(msg)
		}
	}
}

func (p *Pool) onDisconnect(ps *peerState) {
	p.log.Info("peer disconnected", zap.Stringer("session", ps.sessionID), zap.String("addr", ps.addr))
	var wasLoader, wasConnected bool
	p.do(func() {
		p.mu.Lock()
		_, ok := p.peers[ps.id]
		if ok {
			delete(p.peers, ps.id)
		}
		p.mu.Unlock()
		if !ok {
			return
		}
		wasConnected = ps.State() == peer.StateConnected
		wasLoader = p.loaderID == ps.id
		if wasLoader {
			p.loaderID = 0
		}
		for h, owner := range p.blockOwner {
			if owner == ps.id {
				delete(p.blockOwner, h)
			}
		}
		for h, owner := range p.txOwner {
			if owner == ps.id {
				delete(p.txOwner, h)
			}
		}
		for h, owner := range p.compactOwner {
			if owner == ps.id {
				delete(p.compactOwner, h)
			}
		}
	})
	p.forgetNonce(ps.nonce)
	if ps.BanScore() >= peer.MaxBanScore {
		p.metrics.BansIssued.Inc()
		if p.cfg.Addrmgr != nil {
			p.cfg.Addrmgr.Ban(ps.addr, time.Now().Add(24*time.Hour))
		}
	}
	if p.cfg.Addrmgr != nil {
		p.cfg.Addrmgr.Failed(ps.addr)
	}
	if wasConnected {
		p.metrics.PeersConnected.Dec()
		if ps.outbound {
			p.metrics.PeersOutbound.Dec()
		}
	}
	if wasLoader {
		p.selectLoader()
	}
}

// newNonce generates a cryptographically random nonce and registers it in
// NONCES so self-connections can be detected.
func (p *Pool) newNonce() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	nonce := binary.LittleEndian.Uint64(b[:])

	p.noncesMu.Lock()
	p.nonces[nonce] = struct{}{}
	p.noncesMu.Unlock()
	return nonce
}

// IsKnownNonce reports whether nonce was generated by this node, PEER's
// self-connection check.
func (p *Pool) IsKnownNonce(nonce uint64) bool {
	p.noncesMu.Lock()
	defer p.noncesMu.Unlock()
	_, ok := p.nonces[nonce]
	return ok
}

func (p *Pool) forgetNonce(nonce uint64) {
	p.noncesMu.Lock()
	delete(p.nonces, nonce)
	p.noncesMu.Unlock()
}

// InboundCount reports the number of currently connected inbound peers.
func (p *Pool) InboundCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, ps := range p.peers {
		if !ps.outbound {
			n++
		}
	}
	return n
}

// OutboundCount reports the number of currently connected outbound peers.
func (p *Pool) OutboundCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, ps := range p.peers {
		if ps.outbound {
			n++
		}
	}
	return n
}

// PeerCount reports total connected peers.
func (p *Pool) PeerCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.peers)
}

// SyncMode reports which phase of sync CHAIN is currently in, a read-only
// introspection point for the admin console rather than a consensus
// decision of its own.
type SyncMode int

const (
	// SyncModeUnknown is returned when POOL carries no Chain collaborator.
	SyncModeUnknown SyncMode = iota
	// SyncModeHeaders is checkpoint-anchored headers-first sync.
	SyncModeHeaders
	// SyncModeBlocks is full-block catch-up once headers are synced but
	// bodies are not.
	SyncModeBlocks
	// SyncModeRelay is steady-state: headers and bodies both caught up,
	// the node just relays new inv as peers announce it.
	SyncModeRelay
)

func (m SyncMode) String() string {
	switch m {
	case SyncModeHeaders:
		return "headers"
	case SyncModeBlocks:
		return "blocks"
	case SyncModeRelay:
		return "relay"
	default:
		return "unknown"
	}
}

// SyncMode reports CHAIN's current sync phase. Headers and full-block
// catch-up are both transitional: headers mode is checkpoint-anchored
// getheaders, block mode is this module still actively pulling bodies it
// already has headers for (outstanding entries in blockOwner); once
// neither applies, the node has settled into steady-state relay.
func (p *Pool) SyncMode() SyncMode {
	if p.cfg.Chain == nil {
		return SyncModeUnknown
	}
	if p.cfg.Chain.InCheckpointMode() {
		return SyncModeHeaders
	}
	var pending int
	p.do(func() { pending = len(p.blockOwner) })
	if pending > 0 {
		return SyncModeBlocks
	}
	return SyncModeRelay
}

// selectLoader ensures exactly one CONNECTED outbound peer carries the
// loader flag at a time.
func (p *Pool) selectLoader() {
	p.do(func() {
		if p.loaderID != 0 {
			if ps, ok := p.peers[p.loaderID]; ok && ps.State() == peer.StateConnected {
				return
			}
			p.loaderID = 0
		}
		for id, ps := range p.peers {
			if ps.outbound && ps.State() == peer.StateConnected {
				p.loaderID = id
				ps.mu.Lock()
				ps.loader = true
				ps.mu.Unlock()
				p.startHeadersSync(ps)
				return
			}
		}
	})
	if p.loaderID == 0 {
		go func() {
			if addr, ok := p.nextDialCandidate(); ok {
				_ = p.Connect(addr)
			}
		}()
	}
}

// startHeadersSync kicks off headers-first sync, or once synced, a
// getblocks, against the newly chosen loader.
func (p *Pool) startHeadersSync(ps *peerState) {
	if p.cfg.Chain == nil {
		return
	}
	tip := p.cfg.Chain.Tip()
	if p.cfg.Chain.InCheckpointMode() {
		cp, _ := p.cfg.Chain.HeaderTip()
		msg, err := newGetHeadersFromTip(tip.Hash, cp.Hash)
		if err == nil {
			_ = ps.Write(msg)
		}
		return
	}
	msg, err := newGetBlocksFromTip(tip.Hash)
	if err == nil {
		_ = ps.Write(msg)
	}
}

// refillLoop runs every RefillInterval: ensure a loader exists and top
// up outbound connections from ADDRMAN.
func (p *Pool) refillLoop() {
	ticker := time.NewTicker(RefillInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.refillOnce()
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pool) refillOnce() {
	if p.loaderID == 0 {
		p.selectLoader()
	}
	for p.OutboundCount() < p.cfg.MaxOutbound {
		addr, ok := p.nextDialCandidate()
		if !ok {
			return
		}
		go func(a string) { _ = p.Connect(a) }(addr)
	}
}

// nextDialCandidate runs ADDRMAN's filter chain, minus onion-transport
// and attempt-recency scoring beyond what Addrmgr itself tracks.
func (p *Pool) nextDialCandidate() (string, bool) {
	if p.cfg.Addrmgr == nil {
		return "", false
	}
	candidates := p.cfg.Addrmgr.Unconnected()
	p.mu.RLock()
	connected := make(map[string]bool, len(p.peers))
	for _, ps := range p.peers {
		connected[ps.addr] = true
	}
	p.mu.RUnlock()

	for i := range candidates {
		na := candidates[i]
		addr := na.IPPort()
		if connected[addr] {
			continue
		}
		if p.cfg.Addrmgr.IsBanned(addr) {
			continue
		}
		if p.cfg.RequiredServices != 0 && protocol.Service(na.Services)&p.cfg.RequiredServices != p.cfg.RequiredServices {
			continue
		}
		return addr, true
	}
	return "", false
}

func (p *Pool) tickLoop() {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.tick()
		case <-p.stopCh:
			return
		}
	}
}

// tick applies the per-peer timeout policy for the outstanding request
// tables POOL itself tracks (block_map/tx_map); PEER owns its own
// stall-timer-driven command deadlines independently.
func (p *Pool) tick() {
	now := time.Now()
	p.mu.RLock()
	stateSnapshot := make([]*peerState, 0, len(p.peers))
	for _, ps := range p.peers {
		stateSnapshot = append(stateSnapshot, ps)
	}
	p.mu.RUnlock()

	var expiredBlocks, expiredTxs []util.Uint256
	for _, ps := range stateSnapshot {
		ps.mu.Lock()
		for h, deadline := range ps.blockMap {
			if now.Sub(deadline) > 120*time.Second {
				delete(ps.blockMap, h)
				expiredBlocks = append(expiredBlocks, h)
			}
		}
		for h, deadline := range ps.txMap {
			if now.Sub(deadline) > 120*time.Second {
				delete(ps.txMap, h)
				expiredTxs = append(expiredTxs, h)
			}
		}
		ps.mu.Unlock()
	}
	p.do(func() {
		for _, h := range expiredBlocks {
			delete(p.blockOwner, h)
		}
		for _, h := range expiredTxs {
			delete(p.txOwner, h)
		}
	})

	if p.cfg.Mempool != nil {
		p.cfg.Mempool.ExpireOlderThan(now)
	}
}
