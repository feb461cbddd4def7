package payload

import (
	"io"

	"github.com/makonode/p2p/pkg/wire/binio"
	"github.com/makonode/p2p/pkg/wire/command"
	"github.com/makonode/p2p/pkg/wire/util"
)

// SendCmpctMessage negotiates BIP152 compact-block relay: Announce turns
// it on/off, Version picks the encoding (low-bandwidth relay mode uses
// version 1 here; witness-mode negotiation is left to protocol.Version
// since this fork carries no segwit-equivalent).
type SendCmpctMessage struct {
	Announce bool
	Version  uint64
}

// NewSendCmpctMessage builds a sendcmpct payload.
func NewSendCmpctMessage(announce bool, version uint64) (*SendCmpctMessage, error) {
	return &SendCmpctMessage{Announce: announce, Version: version}, nil
}

// Command implements Message.
func (m *SendCmpctMessage) Command() command.Type { return command.SendCmpct }

// EncodePayload implements Message.
func (m *SendCmpctMessage) EncodePayload(w io.Writer) error {
	return encodeWith(w, func(bw *binio.BinWriter) {
		bw.WriteBool(m.Announce)
		bw.WriteU64LE(m.Version)
	})
}

// DecodePayload implements Message.
func (m *SendCmpctMessage) DecodePayload(r io.Reader) error {
	return decodeWith(r, func(br *binio.BinReader) {
		m.Announce = br.ReadBool()
		m.Version = br.ReadU64LE()
	})
}

// PrefilledTx is a transaction included in full inside a CmpctBlock,
// indexed by its position in the block (the coinbase-equivalent first
// transaction, plus any the sender predicts the receiver lacks).
type PrefilledTx struct {
	Index uint64
	Raw   []byte
}

// CmpctBlockMessage carries a block header, a short-ID per omitted
// transaction, and a handful of prefilled transactions, per BIP152.
// POOL reconstructs the full block from its mempool when every short ID
// resolves, and falls back to GetBlockTxn otherwise.
type CmpctBlockMessage struct {
	Header       BlockHeader
	Nonce        uint64
	ShortIDs     []uint64
	PrefilledTxs []PrefilledTx
}

// NewCmpctBlockMessage builds a cmpctblock payload around the given
// header and nonce.
func NewCmpctBlockMessage(h BlockHeader, nonce uint64) (*CmpctBlockMessage, error) {
	return &CmpctBlockMessage{Header: h, Nonce: nonce}, nil
}

// Command implements Message.
func (m *CmpctBlockMessage) Command() command.Type { return command.CmpctBlock }

// EncodePayload implements Message.
func (m *CmpctBlockMessage) EncodePayload(w io.Writer) error {
	return encodeWith(w, func(bw *binio.BinWriter) {
		m.Header.encodeHashableFields(bw)
		bw.WriteU64LE(m.Nonce)
		bw.WriteVarUint(uint64(len(m.ShortIDs)))
		for _, id := range m.ShortIDs {
			var b [6]byte
			for i := range b {
				b[i] = byte(id >> (8 * i))
			}
			bw.WriteBytes(b[:])
		}
		bw.WriteVarUint(uint64(len(m.PrefilledTxs)))
		for _, p := range m.PrefilledTxs {
			bw.WriteVarUint(p.Index)
			bw.WriteVarBytes(p.Raw)
		}
	})
}

// DecodePayload implements Message.
func (m *CmpctBlockMessage) DecodePayload(r io.Reader) error {
	return decodeWith(r, func(br *binio.BinReader) {
		h := new(BlockHeader)
		h.Version = br.ReadU32LE()
		var prev, merkle [util.Uint256Size]byte
		br.ReadBytes(prev[:])
		br.ReadBytes(merkle[:])
		h.Timestamp = br.ReadU32LE()
		h.Bits = br.ReadU32LE()
		h.Nonce = br.ReadU32LE()
		if br.Err != nil {
			return
		}
		var err error
		h.PrevHash, err = decodeUint256(prev[:])
		if err != nil {
			br.Err = err
			return
		}
		h.MerkleRoot, err = decodeUint256(merkle[:])
		if err != nil {
			br.Err = err
			return
		}
		h.createHash()
		m.Header = *h

		m.Nonce = br.ReadU64LE()
		n := br.ReadVarUint()
		m.ShortIDs = make([]uint64, 0, n)
		for i := uint64(0); i < n && br.Err == nil; i++ {
			var b [6]byte
			br.ReadBytes(b[:])
			var id uint64
			for j := range b {
				id |= uint64(b[j]) << (8 * j)
			}
			m.ShortIDs = append(m.ShortIDs, id)
		}
		pn := br.ReadVarUint()
		m.PrefilledTxs = make([]PrefilledTx, 0, pn)
		for i := uint64(0); i < pn && br.Err == nil; i++ {
			idx := br.ReadVarUint()
			raw := br.ReadVarBytes(MaxBlockSize)
			m.PrefilledTxs = append(m.PrefilledTxs, PrefilledTx{Index: idx, Raw: raw})
		}
	})
}

// GetBlockTxnMessage requests the transactions a CmpctBlock's short IDs
// failed to resolve against the local mempool.
type GetBlockTxnMessage struct {
	BlockHash util.Uint256
	Indexes   []uint64
}

// NewGetBlockTxnMessage builds a getblocktxn payload.
func NewGetBlockTxnMessage(blockHash util.Uint256, indexes []uint64) (*GetBlockTxnMessage, error) {
	return &GetBlockTxnMessage{BlockHash: blockHash, Indexes: indexes}, nil
}

// Command implements Message.
func (m *GetBlockTxnMessage) Command() command.Type { return command.GetBlockTxn }

// EncodePayload implements Message.
func (m *GetBlockTxnMessage) EncodePayload(w io.Writer) error {
	return encodeWith(w, func(bw *binio.BinWriter) {
		bw.WriteBytes(m.BlockHash.Bytes())
		bw.WriteVarUint(uint64(len(m.Indexes)))
		for _, idx := range m.Indexes {
			bw.WriteVarUint(idx)
		}
	})
}

// DecodePayload implements Message.
func (m *GetBlockTxnMessage) DecodePayload(r io.Reader) error {
	return decodeWith(r, func(br *binio.BinReader) {
		var bh [util.Uint256Size]byte
		br.ReadBytes(bh[:])
		if br.Err != nil {
			return
		}
		var err error
		m.BlockHash, err = decodeUint256(bh[:])
		if err != nil {
			br.Err = err
			return
		}
		n := br.ReadVarUint()
		m.Indexes = make([]uint64, 0, n)
		for i := uint64(0); i < n && br.Err == nil; i++ {
			m.Indexes = append(m.Indexes, br.ReadVarUint())
		}
	})
}

// BlockTxnMessage answers a GetBlockTxn with the requested raw
// transactions, in index order.
type BlockTxnMessage struct {
	BlockHash util.Uint256
	Txs       [][]byte
}

// NewBlockTxnMessage builds a blocktxn payload.
func NewBlockTxnMessage(blockHash util.Uint256, txs [][]byte) (*BlockTxnMessage, error) {
	return &BlockTxnMessage{BlockHash: blockHash, Txs: txs}, nil
}

// Command implements Message.
func (m *BlockTxnMessage) Command() command.Type { return command.BlockTxn }

// EncodePayload implements Message.
func (m *BlockTxnMessage) EncodePayload(w io.Writer) error {
	return encodeWith(w, func(bw *binio.BinWriter) {
		bw.WriteBytes(m.BlockHash.Bytes())
		bw.WriteVarUint(uint64(len(m.Txs)))
		for _, tx := range m.Txs {
			bw.WriteVarBytes(tx)
		}
	})
}

// DecodePayload implements Message.
func (m *BlockTxnMessage) DecodePayload(r io.Reader) error {
	return decodeWith(r, func(br *binio.BinReader) {
		var bh [util.Uint256Size]byte
		br.ReadBytes(bh[:])
		if br.Err != nil {
			return
		}
		var err error
		m.BlockHash, err = decodeUint256(bh[:])
		if err != nil {
			br.Err = err
			return
		}
		n := br.ReadVarUint()
		m.Txs = make([][]byte, 0, n)
		for i := uint64(0); i < n && br.Err == nil; i++ {
			m.Txs = append(m.Txs, br.ReadVarBytes(MaxBlockSize))
		}
	})
}
