package payload

import (
	"io"

	"github.com/makonode/p2p/pkg/wire/binio"
	"github.com/makonode/p2p/pkg/wire/command"
	"github.com/makonode/p2p/pkg/wire/util"
)

// RejectCode classifies why a message was rejected.
type RejectCode uint8

// Reject codes, a subset of BIP61's.
const (
	RejectMalformed       RejectCode = 0x01
	RejectInvalid         RejectCode = 0x10
	RejectObsolete         RejectCode = 0x11
	RejectDuplicate        RejectCode = 0x12
	RejectNonstandard      RejectCode = 0x40
	RejectCheckpoint       RejectCode = 0x43
)

// RejectMessage explains why a prior message from this node was rejected,
// used for diagnostics rather than ban-scoring (PEER tracks ban score
// internally; Reject is informational only).
type RejectMessage struct {
	RejectedCommand command.Type
	Code            RejectCode
	Reason          string
	ExtraData       util.Uint256
}

// NewRejectMessage builds a reject payload.
func NewRejectMessage(cmd command.Type, code RejectCode, reason string) (*RejectMessage, error) {
	return &RejectMessage{RejectedCommand: cmd, Code: code, Reason: reason}, nil
}

// Command implements Message.
func (m *RejectMessage) Command() command.Type { return command.Reject }

// EncodePayload implements Message.
func (m *RejectMessage) EncodePayload(w io.Writer) error {
	return encodeWith(w, func(bw *binio.BinWriter) {
		b := m.RejectedCommand.Bytes()
		bw.WriteVarString(trimCommand(b))
		bw.WriteU8(uint8(m.Code))
		bw.WriteVarString(m.Reason)
		bw.WriteBytes(m.ExtraData.Bytes())
	})
}

// DecodePayload implements Message.
func (m *RejectMessage) DecodePayload(r io.Reader) error {
	return decodeWith(r, func(br *binio.BinReader) {
		cmdStr := br.ReadVarString(16)
		cmd, err := command.FromBytes(padCommand(cmdStr))
		if err != nil {
			br.Err = err
			return
		}
		m.RejectedCommand = cmd
		m.Code = RejectCode(br.ReadU8())
		m.Reason = br.ReadVarString(256)
		var extra [util.Uint256Size]byte
		br.ReadBytes(extra[:])
		if br.Err != nil {
			return
		}
		m.ExtraData, br.Err = util.Uint256DecodeBytes(extra[:])
	})
}

func trimCommand(b [12]byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func padCommand(s string) [12]byte {
	var b [12]byte
	copy(b[:], s)
	return b
}

// FeeFilterMessage tells the peer to only relay transactions paying at
// least FeeRate satoshis/kB.
type FeeFilterMessage struct {
	FeeRate uint64
}

// NewFeeFilterMessage builds a feefilter payload.
func NewFeeFilterMessage(feeRate uint64) (*FeeFilterMessage, error) {
	return &FeeFilterMessage{FeeRate: feeRate}, nil
}

// Command implements Message.
func (m *FeeFilterMessage) Command() command.Type { return command.FeeFilter }

// EncodePayload implements Message.
func (m *FeeFilterMessage) EncodePayload(w io.Writer) error {
	return encodeWith(w, func(bw *binio.BinWriter) { bw.WriteU64LE(m.FeeRate) })
}

// DecodePayload implements Message.
func (m *FeeFilterMessage) DecodePayload(r io.Reader) error {
	return decodeWith(r, func(br *binio.BinReader) { m.FeeRate = br.ReadU64LE() })
}
