// Package peer implements PEER: one instance per connection, owning a
// framer, the version/verack handshake state machine, ban-score policy
// and the stall detector.
package peer

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/makonode/p2p/pkg/framer"
	"github.com/makonode/p2p/pkg/peer/stall"
	"github.com/makonode/p2p/pkg/wire/command"
	"github.com/makonode/p2p/pkg/wire/payload"
	"github.com/makonode/p2p/pkg/wire/protocol"
)

// State is PEER's lifecycle tag: a five-state handshake/connected machine.
type State uint8

// States, in transition order.
const (
	StateConnecting State = iota
	StateWaitVersion
	StateWaitVerack
	StateConnected
	StateDead
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateWaitVersion:
		return "WAIT_VERSION"
	case StateWaitVerack:
		return "WAIT_VERACK"
	case StateConnected:
		return "CONNECTED"
	default:
		return "DEAD"
	}
}

// MaxBanScore is the threshold at which a peer is closed and its address
// banned.
const MaxBanScore = 100

// Ban-score increments for specific violations.
const (
	BanScoreFramingError  = 10
	BanScoreProtocolError = 20
	BanScoreStall         = 20
)

var (
	// ErrSelfConnection is returned when a remote version carries a nonce
	// this node generated itself.
	ErrSelfConnection = errors.New("peer: self-connection detected")
	// ErrObsoleteVersion is returned when the remote's version is below
	// protocol.MinVersion.
	ErrObsoleteVersion = errors.New("peer: version below MinVersion")
	// ErrMissingService is returned when an outbound peer lacks a
	// required service bit.
	ErrMissingService = errors.New("peer: missing required service bit")
	// ErrWrongState is returned when version/verack arrives out of turn.
	ErrWrongState  = errors.New("peer: message received in wrong state")
	errDisconnected = errors.New("peer: disconnected")
)

// LocalConfig describes the local node's identity and the callbacks POOL
// registers to receive decoded messages.
type LocalConfig struct {
	Net         protocol.Magic
	UserAgent   string
	Services    protocol.Service
	Nonce       uint64
	ProtocolVer uint32
	Relay       bool
	Port        uint16

	StartHeight func() uint32

	// IsKnownNonce reports whether nonce belongs to NONCES, i.e. was
	// generated by this local node — the self-connection check.
	IsKnownNonce func(nonce uint64) bool
	// CheckpointsEnabled gates the HEADERS_VERSION requirement for
	// outbound peers.
	CheckpointsEnabled bool
	// SelfConnectOK disables the self-connection check (test/regtest
	// escape hatch).
	SelfConnectOK bool

	OnVersion     func(p *Peer, msg *payload.VersionMessage)
	OnGetAddr     func(p *Peer, msg *payload.GetAddrMessage)
	OnAddr        func(p *Peer, msg *payload.AddrMessage)
	OnHeader      func(p *Peer, msg *payload.HeadersMessage)
	OnGetHeaders  func(p *Peer, msg *payload.GetHeadersMessage)
	OnInv         func(p *Peer, msg *payload.InvMessage)
	OnGetData     func(p *Peer, msg *payload.GetDataMessage)
	OnNotFound    func(p *Peer, msg *payload.NotFoundMessage)
	OnBlock       func(p *Peer, msg *payload.BlockMessage)
	OnGetBlocks   func(p *Peer, msg *payload.GetBlocksMessage)
	OnTx          func(p *Peer, msg *payload.TxMessage)
	OnMemPool     func(p *Peer, msg *payload.MemPoolMessage)
	OnFeeFilter   func(p *Peer, msg *payload.FeeFilterMessage)
	OnSendHeaders func(p *Peer, msg *payload.SendHeadersMessage)
	OnSendCmpct   func(p *Peer, msg *payload.SendCmpctMessage)
	OnCmpctBlock  func(p *Peer, msg *payload.CmpctBlockMessage)
	OnGetBlockTxn func(p *Peer, msg *payload.GetBlockTxnMessage)
	OnBlockTxn    func(p *Peer, msg *payload.BlockTxnMessage)
	OnReject      func(p *Peer, msg *payload.RejectMessage)

	// OnHandshakeComplete fires once, when state transitions to CONNECTED
	// on receiving verack — POOL's loader-selection trigger.
	OnHandshakeComplete func(p *Peer)

	// OnDisconnect fires exactly once, from the socket-closed callback.
	OnDisconnect func(p *Peer)
}

// Peer is a single connection's framing, handshake and request state.
type Peer struct {
	conn    net.Conn
	inbound bool
	cfg     LocalConfig
	fr      *framer.Framer

	createdAt time.Time

	mu            sync.RWMutex
	state         State
	banScore      int32
	verackSent    bool
	verackRecv    int32 // atomic bool
	remoteVersion *payload.VersionMessage

	writeMu sync.Mutex

	// Detector is exported so POOL/tests can observe Quitch directly.
	Detector *stall.Detector

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPeer wires conn into a fresh Peer in StateConnecting (outbound) or
// StateWaitVersion (inbound).
func NewPeer(conn net.Conn, inbound bool, cfg LocalConfig) *Peer {
	st := StateConnecting
	if inbound {
		st = StateWaitVersion
	}
	p := &Peer{
		conn:      conn,
		inbound:   inbound,
		cfg:       cfg,
		fr:        framer.New(cfg.Net, framer.DefaultCodecs()),
		createdAt: time.Now(),
		state:     st,
		Detector:  stall.NewDetector(30*time.Second, 5*time.Second),
		closed:    make(chan struct{}),
	}
	return p
}

// Inbound reports whether this connection was accepted rather than dialed.
func (p *Peer) Inbound() bool { return p.inbound }

// Services returns the locally configured service bitfield advertised in
// our version message.
func (p *Peer) Services() protocol.Service { return p.cfg.Services }

// UserAgent returns the locally configured user agent string.
func (p *Peer) UserAgent() string { return p.cfg.UserAgent }

// CanRelay reports whether this node told the peer it relays transactions.
func (p *Peer) CanRelay() bool { return p.cfg.Relay }

// CreatedAt returns when this Peer was constructed.
func (p *Peer) CreatedAt() time.Time { return p.createdAt }

// RemoteAddr returns the underlying connection's remote address.
func (p *Peer) RemoteAddr() net.Addr { return p.conn.RemoteAddr() }

// IsVerackReceived reports whether the remote has acknowledged our
// version with a verack.
func (p *Peer) IsVerackReceived() bool { return atomic.LoadInt32(&p.verackRecv) == 1 }

// RemoteVersion returns the remote's version message once the handshake
// has progressed past it, or nil beforehand.
func (p *Peer) RemoteVersion() *payload.VersionMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.remoteVersion
}

// State returns the current lifecycle state.
func (p *Peer) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// BanScore returns the accumulated ban score.
func (p *Peer) BanScore() int32 { return atomic.LoadInt32(&p.banScore) }

// AddBanScore increments ban score and disconnects once MaxBanScore is
// reached.
func (p *Peer) AddBanScore(delta int32) {
	if atomic.AddInt32(&p.banScore, delta) >= MaxBanScore {
		p.Disconnect()
	}
}

func (p *Peer) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run drives the connection: sends the outbound version immediately,
// then loops reading frames until the connection is closed or a fatal
// framing/protocol error occurs.
func (p *Peer) Run() error {
	if !p.inbound {
		if err := p.sendVersion(); err != nil {
			p.Disconnect()
			return err
		}
		p.setState(StateWaitVerack)
	}
	go p.readLoop()
	go p.watchStall()
	return nil
}

func (p *Peer) watchStall() {
	select {
	case <-p.Detector.Quitch:
		p.AddBanScore(BanScoreStall)
		p.Disconnect()
	case <-p.closed:
	}
}

func (p *Peer) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			decoded, ferr := p.fr.Feed(buf[:n])
			for _, d := range decoded {
				if derr := p.handle(d); derr != nil {
					p.AddBanScore(BanScoreProtocolError)
					p.Disconnect()
					return
				}
			}
			if ferr != nil {
				p.AddBanScore(BanScoreFramingError)
				p.Disconnect()
				return
			}
		}
		if err != nil {
			p.Disconnect()
			return
		}
	}
}

func (p *Peer) handle(d framer.Decoded) error {
	switch body := d.Body.(type) {
	case *payload.VersionMessage:
		return p.onVersion(body)
	case *payload.VerAckMessage:
		return p.onVerAck()
	case *payload.PingMessage:
		return p.onPing(body)
	case *payload.PongMessage:
		p.Detector.RemoveMessage(command.Ping)
		return nil
	case *payload.AddrMessage:
		if p.cfg.OnAddr != nil {
			p.cfg.OnAddr(p, body)
		}
		return nil
	case *payload.HeadersMessage:
		p.Detector.RemoveMessage(command.GetHeaders)
		if p.cfg.OnHeader != nil {
			p.cfg.OnHeader(p, body)
		}
		return nil
	case *payload.GetHeadersMessage:
		if p.cfg.OnGetHeaders != nil {
			p.cfg.OnGetHeaders(p, body)
		}
		return nil
	case *payload.InvMessage:
		if p.cfg.OnInv != nil {
			p.cfg.OnInv(p, body)
		}
		return nil
	case *payload.GetDataMessage:
		if p.cfg.OnGetData != nil {
			p.cfg.OnGetData(p, body)
		}
		return nil
	case *payload.BlockMessage:
		p.Detector.RemoveMessage(command.GetData)
		if p.cfg.OnBlock != nil {
			p.cfg.OnBlock(p, body)
		}
		return nil
	case *payload.GetBlocksMessage:
		if p.cfg.OnGetBlocks != nil {
			p.cfg.OnGetBlocks(p, body)
		}
		return nil
	case *payload.TxMessage:
		if p.cfg.OnTx != nil {
			p.cfg.OnTx(p, body)
		}
		return nil
	case *payload.CmpctBlockMessage:
		if p.cfg.OnCmpctBlock != nil {
			p.cfg.OnCmpctBlock(p, body)
		}
		return nil
	case *payload.GetBlockTxnMessage:
		if p.cfg.OnGetBlockTxn != nil {
			p.cfg.OnGetBlockTxn(p, body)
		}
		return nil
	case *payload.BlockTxnMessage:
		if p.cfg.OnBlockTxn != nil {
			p.cfg.OnBlockTxn(p, body)
		}
		return nil
	case *payload.GetAddrMessage:
		if p.cfg.OnGetAddr != nil {
			p.cfg.OnGetAddr(p, body)
		}
		return nil
	case *payload.MemPoolMessage:
		if p.cfg.OnMemPool != nil {
			p.cfg.OnMemPool(p, body)
		}
		return nil
	case *payload.FeeFilterMessage:
		if p.cfg.OnFeeFilter != nil {
			p.cfg.OnFeeFilter(p, body)
		}
		return nil
	case *payload.SendHeadersMessage:
		if p.cfg.OnSendHeaders != nil {
			p.cfg.OnSendHeaders(p, body)
		}
		return nil
	case *payload.SendCmpctMessage:
		if p.cfg.OnSendCmpct != nil {
			p.cfg.OnSendCmpct(p, body)
		}
		return nil
	case *payload.NotFoundMessage:
		if p.cfg.OnNotFound != nil {
			p.cfg.OnNotFound(p, body)
		}
		return nil
	case *payload.RejectMessage:
		if p.cfg.OnReject != nil {
			p.cfg.OnReject(p, body)
		}
		return nil
	default:
		return fmt.Errorf("peer: unhandled message %T", body)
	}
}

func (p *Peer) onVersion(v *payload.VersionMessage) error {
	if p.State() != StateWaitVersion && p.State() != StateWaitVerack {
		return ErrWrongState
	}
	if p.remoteVersion != nil {
		return ErrWrongState
	}
	if !p.cfg.SelfConnectOK && p.cfg.IsKnownNonce != nil && p.cfg.IsKnownNonce(v.Nonce) {
		return ErrSelfConnection
	}
	if v.Version < protocol.MinVersion {
		return ErrObsoleteVersion
	}
	if !p.inbound {
		services := protocol.Service(v.Services)
		if !services.Has(protocol.Network) || !services.Has(protocol.Witness) {
			return ErrMissingService
		}
		if p.cfg.CheckpointsEnabled && v.Version < protocol.HeadersVersion {
			return ErrObsoleteVersion
		}
	}
	p.remoteVersion = v

	if p.cfg.OnVersion != nil {
		p.cfg.OnVersion(p, v)
	}

	if p.inbound {
		if err := p.sendVersion(); err != nil {
			return err
		}
	}
	if err := p.sendVerAck(); err != nil {
		return err
	}
	if p.inbound {
		p.setState(StateWaitVerack)
	}
	return nil
}

func (p *Peer) onVerAck() error {
	if p.IsVerackReceived() {
		return ErrWrongState
	}
	atomic.StoreInt32(&p.verackRecv, 1)
	p.setState(StateConnected)
	if p.cfg.OnHandshakeComplete != nil {
		p.cfg.OnHandshakeComplete(p)
	}
	return nil
}

func (p *Peer) onPing(ping *payload.PingMessage) error {
	pong, err := payload.NewPongMessage(ping.Nonce)
	if err != nil {
		return err
	}
	return p.Write(pong)
}

func (p *Peer) sendVersion() error {
	tcpAddr, _ := p.conn.RemoteAddr().(*net.TCPAddr)
	if tcpAddr == nil {
		tcpAddr = &net.TCPAddr{IP: net.IPv4zero, Port: int(p.cfg.Port)}
	}
	height := uint32(0)
	if p.cfg.StartHeight != nil {
		height = p.cfg.StartHeight()
	}
	v, err := payload.NewVersionMessage(tcpAddr, p.cfg.Nonce, p.cfg.Relay, height, p.cfg.Services, p.cfg.UserAgent, time.Now().Unix())
	if err != nil {
		return err
	}
	return p.Write(v)
}

func (p *Peer) sendVerAck() error {
	if p.verackSent {
		return nil
	}
	ack, err := payload.NewVerAckMessage()
	if err != nil {
		return err
	}
	if err := p.Write(ack); err != nil {
		return err
	}
	p.verackSent = true
	return nil
}

// Write frames and sends m to the peer, serialized under a single mutex
// so concurrent POOL callers can't interleave partial frames.
func (p *Peer) Write(m payload.Message) error {
	select {
	case <-p.closed:
		return errDisconnected
	default:
	}
	if tracksResponse(m.Command()) {
		p.Detector.AddMessage(m.Command())
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return framer.WriteMessage(p.conn, p.cfg.Net, m)
}

// tracksResponse reports whether sending this command starts a stall-timer
// deadline for the matching response.
func tracksResponse(cmd command.Type) bool {
	switch cmd {
	case command.Ping, command.GetHeaders, command.GetData:
		return true
	default:
		return false
	}
}

// Disconnect closes the connection and stall detector exactly once,
// invoking OnDisconnect synchronously.
func (p *Peer) Disconnect() {
	p.closeOnce.Do(func() {
		p.setState(StateDead)
		close(p.closed)
		p.Detector.Stop()
		_ = p.conn.Close()
		if p.cfg.OnDisconnect != nil {
			p.cfg.OnDisconnect(p)
		}
	})
}
