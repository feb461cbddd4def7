package payload

import (
	"io"

	"github.com/makonode/p2p/pkg/wire/binio"
	"github.com/makonode/p2p/pkg/wire/checksum"
	"github.com/makonode/p2p/pkg/wire/command"
	"github.com/makonode/p2p/pkg/wire/util"
)

// MaxHeadersResult is the most headers a single Headers message may carry.
const MaxHeadersResult = 2000

// BlockHeader is the fixed-size, hashable part of a block: the six
// fields fed into HEADERS CHAIN's contiguity and proof-of-work checks.
// EncodeBinary/DecodeBinary/createHash follow a BinWriter/sticky-hash
// idiom.
type BlockHeader struct {
	Version    uint32
	PrevHash   util.Uint256
	MerkleRoot util.Uint256
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32

	// TxCount is always 0 on the wire for a standalone header (Bitcoin's
	// "headers" message appends a zero tx-count byte after every header).
	// EncodeBinary always writes a zero and DecodeBinary discards the byte,
	// so neither reads nor sets this field.
	TxCount uint8

	hash util.Uint256
}

// Hash returns the double-SHA256 block hash, computing and caching it on
// first use.
func (h *BlockHeader) Hash() util.Uint256 {
	if h.hash.IsZero() {
		h.createHash()
	}
	return h.hash
}

func (h *BlockHeader) createHash() {
	bb := h.getHashableData()
	full := checksum.DoubleSha256(bb)
	hashed, _ := util.Uint256DecodeBytes(full[:])
	h.hash = hashed
}

func (h *BlockHeader) getHashableData() []byte {
	bw := binio.NewBinWriterFromIO(new(hashBuf))
	h.encodeHashableFields(bw)
	return bw.W.(*hashBuf).buf
}

// hashBuf is a trivial growable io.Writer, avoiding a bytes.Buffer import
// purely for this one internal helper.
type hashBuf struct{ buf []byte }

func (b *hashBuf) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (h *BlockHeader) encodeHashableFields(bw *binio.BinWriter) {
	bw.WriteU32LE(h.Version)
	bw.WriteBytes(h.PrevHash.Bytes())
	bw.WriteBytes(h.MerkleRoot.Bytes())
	bw.WriteU32LE(h.Timestamp)
	bw.WriteU32LE(h.Bits)
	bw.WriteU32LE(h.Nonce)
}

// EncodeBinary writes the header followed by its trailing zero tx-count.
func (h *BlockHeader) EncodeBinary(bw *binio.BinWriter) {
	h.encodeHashableFields(bw)
	bw.WriteVarUint(0)
}

// DecodeBinary reads a header and its trailing tx-count, then caches the
// hash (decoding is the one place we always know we'll need it).
func (h *BlockHeader) DecodeBinary(br *binio.BinReader) {
	h.Version = br.ReadU32LE()
	var prev, merkle [util.Uint256Size]byte
	br.ReadBytes(prev[:])
	br.ReadBytes(merkle[:])
	h.Timestamp = br.ReadU32LE()
	h.Bits = br.ReadU32LE()
	h.Nonce = br.ReadU32LE()
	_ = br.ReadVarUint()
	if br.Err != nil {
		return
	}
	h.PrevHash, br.Err = util.Uint256DecodeBytes(prev[:])
	if br.Err != nil {
		return
	}
	h.MerkleRoot, br.Err = util.Uint256DecodeBytes(merkle[:])
	if br.Err != nil {
		return
	}
	h.createHash()
}

func decodeUint256(b []byte) (util.Uint256, error) { return util.Uint256DecodeBytes(b) }

// HeadersMessage carries a batch of block headers, the payload of
// headers-first sync.
type HeadersMessage struct {
	Headers []*BlockHeader
}

// NewHeadersMessage builds an empty headers payload.
func NewHeadersMessage() (*HeadersMessage, error) { return &HeadersMessage{}, nil }

// AddHeader appends a header to the batch.
func (m *HeadersMessage) AddHeader(h *BlockHeader) { m.Headers = append(m.Headers, h) }

// Command implements Message.
func (m *HeadersMessage) Command() command.Type { return command.Headers }

// EncodePayload implements Message.
func (m *HeadersMessage) EncodePayload(w io.Writer) error {
	return encodeWith(w, func(bw *binio.BinWriter) {
		bw.WriteVarUint(uint64(len(m.Headers)))
		for _, h := range m.Headers {
			h.EncodeBinary(bw)
		}
	})
}

// DecodePayload implements Message.
func (m *HeadersMessage) DecodePayload(r io.Reader) error {
	return decodeWith(r, func(br *binio.BinReader) {
		n := br.ReadVarUint()
		if n > MaxHeadersResult {
			br.Err = ErrTooManyAddrs
			return
		}
		m.Headers = make([]*BlockHeader, 0, n)
		for i := uint64(0); i < n && br.Err == nil; i++ {
			h := new(BlockHeader)
			h.DecodeBinary(br)
			m.Headers = append(m.Headers, h)
		}
	})
}
