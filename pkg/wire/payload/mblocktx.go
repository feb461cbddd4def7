package payload

import (
	"io"

	"github.com/makonode/p2p/pkg/wire/binio"
	"github.com/makonode/p2p/pkg/wire/command"
)

// MaxBlockSize bounds a single Block/Tx payload, preventing a hostile peer
// from forcing an unbounded decode allocation.
const MaxBlockSize = 4 * 1024 * 1024

// BlockMessage carries a full serialized block. Transaction-level
// serialization is out of scope (consensus and script execution are not
// handled here); the body is treated as the opaque bytes POOL forwards
// to the CHAIN collaborator for validation and storage.
type BlockMessage struct {
	Header  BlockHeader
	TxCount uint64
	TxBytes []byte
}

// NewBlockMessage builds an empty block payload around the given header.
func NewBlockMessage(h BlockHeader) (*BlockMessage, error) {
	return &BlockMessage{Header: h}, nil
}

// Command implements Message.
func (m *BlockMessage) Command() command.Type { return command.Block }

// EncodePayload implements Message.
func (m *BlockMessage) EncodePayload(w io.Writer) error {
	return encodeWith(w, func(bw *binio.BinWriter) {
		m.Header.encodeHashableFields(bw)
		bw.WriteVarUint(m.TxCount)
		bw.WriteVarBytes(m.TxBytes)
	})
}

// DecodePayload implements Message.
func (m *BlockMessage) DecodePayload(r io.Reader) error {
	return decodeWith(r, func(br *binio.BinReader) {
		h := new(BlockHeader)
		h.Version = br.ReadU32LE()
		var prev, merkle [32]byte
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
		m.TxCount = br.ReadVarUint()
		m.TxBytes = br.ReadVarBytes(MaxBlockSize)
	})
}

// TxMessage carries a single serialized transaction, relayed opaquely
// between POOL and the MEMPOOL collaborator.
type TxMessage struct {
	Raw []byte
}

// NewTxMessage builds a tx payload wrapping raw serialized bytes.
func NewTxMessage(raw []byte) (*TxMessage, error) { return &TxMessage{Raw: raw}, nil }

// Command implements Message.
func (m *TxMessage) Command() command.Type { return command.Tx }

// EncodePayload implements Message. The tx body is the entire payload, no
// length prefix: the frame header already carries the payload length.
func (m *TxMessage) EncodePayload(w io.Writer) error {
	_, err := w.Write(m.Raw)
	return err
}

// DecodePayload implements Message.
func (m *TxMessage) DecodePayload(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.Raw = raw
	return nil
}
