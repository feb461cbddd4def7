package payload

import (
	"errors"
	"io"

	"github.com/makonode/p2p/pkg/wire/binio"
	"github.com/makonode/p2p/pkg/wire/command"
	"github.com/makonode/p2p/pkg/wire/protocol"
	"github.com/makonode/p2p/pkg/wire/util"
)

// InvType identifies what an inventory vector refers to.
type InvType uint32

// Inventory vector types.
const (
	InvTypeError InvType = 0
	InvTypeTx    InvType = 1
	InvTypeBlock InvType = 2
	// InvTypeCmpctBlock requests a compact-block relay instead of a full
	// block, BIP152's fast path.
	InvTypeCmpctBlock InvType = 0x40000002
)

// maxHashes bounds a single inv/getdata/notfound vector list.
const maxHashes = protocol.MaxInv

// MaxHashError is returned once a vector list would exceed maxHashes.
var MaxHashError = errors.New("payload: inventory exceeds maxHashes")

// invVector is the shared [inv, getdata, notfound] body: a type-tagged
// list of hashes.
type invVector struct {
	Type   InvType
	Hashes []util.Uint256
}

func (m *invVector) addHash(h util.Uint256) error {
	if len(m.Hashes) >= maxHashes {
		return MaxHashError
	}
	m.Hashes = append(m.Hashes, h)
	return nil
}

func (m *invVector) encode(w io.Writer) error {
	return encodeWith(w, func(bw *binio.BinWriter) {
		bw.WriteU32LE(uint32(m.Type))
		bw.WriteVarUint(uint64(len(m.Hashes)))
		for _, h := range m.Hashes {
			bw.WriteBytes(h.Bytes())
		}
	})
}

func (m *invVector) decode(r io.Reader) error {
	return decodeWith(r, func(br *binio.BinReader) {
		m.Type = InvType(br.ReadU32LE())
		n := br.ReadVarUint()
		m.Hashes = make([]util.Uint256, 0, n)
		for i := uint64(0); i < n && br.Err == nil; i++ {
			var b [util.Uint256Size]byte
			br.ReadBytes(b[:])
			h, err := util.Uint256DecodeBytes(b[:])
			if err != nil {
				br.Err = err
				return
			}
			m.Hashes = append(m.Hashes, h)
		}
	})
}

// InvMessage announces available objects.
type InvMessage struct{ invVector }

// NewInvMessage builds an empty inv payload of the given type.
func NewInvMessage(t InvType) (*InvMessage, error) {
	return &InvMessage{invVector{Type: t}}, nil
}

// AddHash appends a hash to the inventory list.
func (m *InvMessage) AddHash(h util.Uint256) error { return m.addHash(h) }

// Command implements Message.
func (m *InvMessage) Command() command.Type { return command.Inv }

// EncodePayload implements Message.
func (m *InvMessage) EncodePayload(w io.Writer) error { return m.encode(w) }

// DecodePayload implements Message.
func (m *InvMessage) DecodePayload(r io.Reader) error { return m.decode(r) }

// GetDataMessage requests the full objects named by an earlier Inv.
type GetDataMessage struct{ invVector }

// NewGetDataMessage builds an empty getdata payload of the given type.
func NewGetDataMessage(t InvType) (*GetDataMessage, error) {
	return &GetDataMessage{invVector{Type: t}}, nil
}

// AddHash appends a hash to the request list.
func (m *GetDataMessage) AddHash(h util.Uint256) error { return m.addHash(h) }

// Command implements Message.
func (m *GetDataMessage) Command() command.Type { return command.GetData }

// EncodePayload implements Message.
func (m *GetDataMessage) EncodePayload(w io.Writer) error { return m.encode(w) }

// DecodePayload implements Message.
func (m *GetDataMessage) DecodePayload(r io.Reader) error { return m.decode(r) }

// NotFoundMessage answers a GetData for objects the peer no longer has.
type NotFoundMessage struct{ invVector }

// NewNotFoundMessage builds an empty notfound payload of the given type.
func NewNotFoundMessage(t InvType) (*NotFoundMessage, error) {
	return &NotFoundMessage{invVector{Type: t}}, nil
}

// AddHash appends a hash to the not-found list.
func (m *NotFoundMessage) AddHash(h util.Uint256) error { return m.addHash(h) }

// Command implements Message.
func (m *NotFoundMessage) Command() command.Type { return command.NotFound }

// EncodePayload implements Message.
func (m *NotFoundMessage) EncodePayload(w io.Writer) error { return m.encode(w) }

// DecodePayload implements Message.
func (m *NotFoundMessage) DecodePayload(r io.Reader) error { return m.decode(r) }
