package payload

import (
	"io"

	"github.com/makonode/p2p/pkg/wire/binio"
	"github.com/makonode/p2p/pkg/wire/command"
)

// VerAckMessage acknowledges a Version handshake. It carries no body.
type VerAckMessage struct{}

// NewVerAckMessage builds an empty verack payload.
func NewVerAckMessage() (*VerAckMessage, error) { return &VerAckMessage{}, nil }

// Command implements Message.
func (m *VerAckMessage) Command() command.Type { return command.VerAck }

// EncodePayload implements Message.
func (m *VerAckMessage) EncodePayload(w io.Writer) error { return nil }

// DecodePayload implements Message.
func (m *VerAckMessage) DecodePayload(r io.Reader) error { return nil }

// GetAddrMessage requests the peer's address table. It carries no body.
type GetAddrMessage struct{}

// NewGetAddrMessage builds an empty getaddr payload.
func NewGetAddrMessage() (*GetAddrMessage, error) { return &GetAddrMessage{}, nil }

// Command implements Message.
func (m *GetAddrMessage) Command() command.Type { return command.GetAddr }

// EncodePayload implements Message.
func (m *GetAddrMessage) EncodePayload(w io.Writer) error { return nil }

// DecodePayload implements Message.
func (m *GetAddrMessage) DecodePayload(r io.Reader) error { return nil }

// PingMessage carries a nonce the peer must echo back in Pong, the
// stall detector's liveness check.
type PingMessage struct {
	Nonce uint64
}

// NewPingMessage builds a ping payload with the given nonce.
func NewPingMessage(nonce uint64) (*PingMessage, error) {
	return &PingMessage{Nonce: nonce}, nil
}

// Command implements Message.
func (m *PingMessage) Command() command.Type { return command.Ping }

// EncodePayload implements Message.
func (m *PingMessage) EncodePayload(w io.Writer) error {
	return encodeWith(w, func(bw *binio.BinWriter) { bw.WriteU64LE(m.Nonce) })
}

// DecodePayload implements Message.
func (m *PingMessage) DecodePayload(r io.Reader) error {
	return decodeWith(r, func(br *binio.BinReader) { m.Nonce = br.ReadU64LE() })
}

// PongMessage echoes the nonce from a Ping.
type PongMessage struct {
	Nonce uint64
}

// NewPongMessage builds a pong payload replying to the given ping nonce.
func NewPongMessage(nonce uint64) (*PongMessage, error) {
	return &PongMessage{Nonce: nonce}, nil
}

// Command implements Message.
func (m *PongMessage) Command() command.Type { return command.Pong }

// EncodePayload implements Message.
func (m *PongMessage) EncodePayload(w io.Writer) error {
	return encodeWith(w, func(bw *binio.BinWriter) { bw.WriteU64LE(m.Nonce) })
}

// DecodePayload implements Message.
func (m *PongMessage) DecodePayload(r io.Reader) error {
	return decodeWith(r, func(br *binio.BinReader) { m.Nonce = br.ReadU64LE() })
}

// SendHeadersMessage asks the peer to announce new blocks with unsolicited
// Headers instead of Inv, an optimization available once both sides
// have completed the handshake.
type SendHeadersMessage struct{}

// NewSendHeadersMessage builds an empty sendheaders payload.
func NewSendHeadersMessage() (*SendHeadersMessage, error) { return &SendHeadersMessage{}, nil }

// Command implements Message.
func (m *SendHeadersMessage) Command() command.Type { return command.SendHeaders }

// EncodePayload implements Message.
func (m *SendHeadersMessage) EncodePayload(w io.Writer) error { return nil }

// DecodePayload implements Message.
func (m *SendHeadersMessage) DecodePayload(r io.Reader) error { return nil }

// MemPoolMessage requests the peer's mempool transaction inventory.
type MemPoolMessage struct{}

// NewMemPoolMessage builds an empty mempool payload.
func NewMemPoolMessage() (*MemPoolMessage, error) { return &MemPoolMessage{}, nil }

// Command implements Message.
func (m *MemPoolMessage) Command() command.Type { return command.MemPool }

// EncodePayload implements Message.
func (m *MemPoolMessage) EncodePayload(w io.Writer) error { return nil }

// DecodePayload implements Message.
func (m *MemPoolMessage) DecodePayload(r io.Reader) error { return nil }
