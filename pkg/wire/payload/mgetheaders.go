package payload

import (
	"io"

	"github.com/makonode/p2p/pkg/wire/binio"
	"github.com/makonode/p2p/pkg/wire/command"
	"github.com/makonode/p2p/pkg/wire/util"
)

// MaxLocatorHashes bounds a block-locator list, preventing a hostile peer
// from forcing an unbounded allocation on decode.
const MaxLocatorHashes = 500

// locator is the shared [getheaders, getblocks] body: a sparse list of
// known hashes (most-recent first, thinning geometrically toward genesis)
// plus an optional stop hash, headers-first sync's request shape.
type locator struct {
	HashStart []util.Uint256
	HashStop  util.Uint256
}

func (m *locator) encode(w io.Writer) error {
	return encodeWith(w, func(bw *binio.BinWriter) {
		bw.WriteVarUint(uint64(len(m.HashStart)))
		for _, h := range m.HashStart {
			bw.WriteBytes(h.Bytes())
		}
		bw.WriteBytes(m.HashStop.Bytes())
	})
}

func (m *locator) decode(r io.Reader) error {
	return decodeWith(r, func(br *binio.BinReader) {
		n := br.ReadVarUint()
		if n > MaxLocatorHashes {
			br.Err = ErrTooManyAddrs
			return
		}
		m.HashStart = make([]util.Uint256, 0, n)
		for i := uint64(0); i < n && br.Err == nil; i++ {
			var b [util.Uint256Size]byte
			br.ReadBytes(b[:])
			h, err := util.Uint256DecodeBytes(b[:])
			if err != nil {
				br.Err = err
				return
			}
			m.HashStart = append(m.HashStart, h)
		}
		var stop [util.Uint256Size]byte
		br.ReadBytes(stop[:])
		h, err := util.Uint256DecodeBytes(stop[:])
		if err != nil {
			br.Err = err
			return
		}
		m.HashStop = h
	})
}

// GetHeadersMessage requests headers starting after the best-matching
// locator hash up to HashStop (or MaxHeadersResult, whichever is first).
type GetHeadersMessage struct{ locator }

// NewGetHeadersMessage builds a getheaders payload.
func NewGetHeadersMessage(start []util.Uint256, stop util.Uint256) (*GetHeadersMessage, error) {
	return &GetHeadersMessage{locator{HashStart: start, HashStop: stop}}, nil
}

// Command implements Message.
func (m *GetHeadersMessage) Command() command.Type { return command.GetHeaders }

// EncodePayload implements Message.
func (m *GetHeadersMessage) EncodePayload(w io.Writer) error { return m.encode(w) }

// DecodePayload implements Message.
func (m *GetHeadersMessage) DecodePayload(r io.Reader) error { return m.decode(r) }

// GetBlocksMessage requests an Inv of block hashes, the legacy (non
// headers-first) sync request.
type GetBlocksMessage struct{ locator }

// NewGetBlocksMessage builds a getblocks payload.
func NewGetBlocksMessage(start []util.Uint256, stop util.Uint256) (*GetBlocksMessage, error) {
	return &GetBlocksMessage{locator{HashStart: start, HashStop: stop}}, nil
}

// Command implements Message.
func (m *GetBlocksMessage) Command() command.Type { return command.GetBlocks }

// EncodePayload implements Message.
func (m *GetBlocksMessage) EncodePayload(w io.Writer) error { return m.encode(w) }

// DecodePayload implements Message.
func (m *GetBlocksMessage) DecodePayload(r io.Reader) error { return m.decode(r) }
