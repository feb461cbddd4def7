package payload

import (
	"errors"
	"io"

	"github.com/makonode/p2p/pkg/wire/binio"
	"github.com/makonode/p2p/pkg/wire/command"
	"github.com/makonode/p2p/pkg/wire/util"
)

// MaxAddrs is the maximum number of address records a single Addr message
// may carry, mirroring the wire's maxHashes-style inventory cap.
const MaxAddrs = 1000

// ErrTooManyAddrs is returned when AddNetAddr would exceed MaxAddrs.
var ErrTooManyAddrs = errors.New("payload: addr message exceeds MaxAddrs")

// AddrMessage relays known peer addresses, ADDRMAN's address-table
// gossip.
type AddrMessage struct {
	Addrs []util.Net_addr
}

// NewAddrMessage builds an empty addr payload.
func NewAddrMessage() (*AddrMessage, error) { return &AddrMessage{}, nil }

// AddNetAddr appends a single address record.
func (m *AddrMessage) AddNetAddr(na *util.Net_addr) error {
	if len(m.Addrs) >= MaxAddrs {
		return ErrTooManyAddrs
	}
	m.Addrs = append(m.Addrs, *na)
	return nil
}

// Command implements Message.
func (m *AddrMessage) Command() command.Type { return command.Addr }

// EncodePayload implements Message.
func (m *AddrMessage) EncodePayload(w io.Writer) error {
	return encodeWith(w, func(bw *binio.BinWriter) {
		bw.WriteVarUint(uint64(len(m.Addrs)))
		for _, na := range m.Addrs {
			writeNetAddr(bw, na)
		}
	})
}

// DecodePayload implements Message.
func (m *AddrMessage) DecodePayload(r io.Reader) error {
	return decodeWith(r, func(br *binio.BinReader) {
		n := br.ReadVarUint()
		m.Addrs = make([]util.Net_addr, 0, n)
		for i := uint64(0); i < n && br.Err == nil; i++ {
			m.Addrs = append(m.Addrs, readNetAddr(br))
		}
	})
}
