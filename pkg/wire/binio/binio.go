// Package binio provides the little-endian binary reader/writer pair that
// every payload in pkg/wire/payload encodes and decodes itself with. It
// follows a BinWriter/BinReader idiom: a sticky error field so a chain of
// writes/reads can skip individual error checks and be checked once at the
// end.
package binio

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/makonode/p2p/pkg/wire/protocol"
)

// ErrVarBytesTooLong is returned when a length-prefixed field would exceed
// the caller-supplied cap.
var ErrVarBytesTooLong = errors.New("binio: varbytes length exceeds limit")

// BinWriter accumulates a sticky error across many small writes.
type BinWriter struct {
	W   io.Writer
	Err error
}

// NewBinWriterFromIO wraps an io.Writer.
func NewBinWriterFromIO(w io.Writer) *BinWriter {
	return &BinWriter{W: w}
}

func (w *BinWriter) write(p []byte) {
	if w.Err != nil {
		return
	}
	_, w.Err = w.W.Write(p)
}

// WriteBytes writes p verbatim, no length prefix.
func (w *BinWriter) WriteBytes(p []byte) { w.write(p) }

// WriteU8 writes a single byte.
func (w *BinWriter) WriteU8(v uint8) { w.write([]byte{v}) }

// WriteBool writes a single byte, 1 for true.
func (w *BinWriter) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

// WriteU16LE writes v little-endian.
func (w *BinWriter) WriteU16LE(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.write(b[:])
}

// WriteU32LE writes v little-endian.
func (w *BinWriter) WriteU32LE(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.write(b[:])
}

// WriteU64LE writes v little-endian.
func (w *BinWriter) WriteU64LE(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.write(b[:])
}

// WriteI64LE writes v little-endian.
func (w *BinWriter) WriteI64LE(v int64) { w.WriteU64LE(uint64(v)) }

// WriteVarUint writes v using Bitcoin-style CompactSize encoding.
func (w *BinWriter) WriteVarUint(v uint64) {
	switch {
	case v < 0xfd:
		w.WriteU8(uint8(v))
	case v <= 0xffff:
		w.WriteU8(0xfd)
		w.WriteU16LE(uint16(v))
	case v <= 0xffffffff:
		w.WriteU8(0xfe)
		w.WriteU32LE(uint32(v))
	default:
		w.WriteU8(0xff)
		w.WriteU64LE(v)
	}
}

// WriteVarBytes writes a CompactSize length followed by the bytes.
func (w *BinWriter) WriteVarBytes(p []byte) {
	w.WriteVarUint(uint64(len(p)))
	w.WriteBytes(p)
}

// WriteVarString writes a CompactSize length followed by the string bytes.
func (w *BinWriter) WriteVarString(s string) { w.WriteVarBytes([]byte(s)) }

// BinReader mirrors BinWriter on the read side.
type BinReader struct {
	R   io.Reader
	Err error
}

// NewBinReaderFromIO wraps an io.Reader.
func NewBinReaderFromIO(r io.Reader) *BinReader {
	return &BinReader{R: r}
}

func (r *BinReader) readFull(p []byte) {
	if r.Err != nil {
		return
	}
	_, r.Err = io.ReadFull(r.R, p)
}

// ReadBytes reads exactly len(p) bytes into p.
func (r *BinReader) ReadBytes(p []byte) { r.readFull(p) }

// ReadU8 reads a single byte.
func (r *BinReader) ReadU8() uint8 {
	var b [1]byte
	r.readFull(b[:])
	return b[0]
}

// ReadBool reads a single byte as a bool.
func (r *BinReader) ReadBool() bool { return r.ReadU8() != 0 }

// ReadU16LE reads a little-endian uint16.
func (r *BinReader) ReadU16LE() uint16 {
	var b [2]byte
	r.readFull(b[:])
	return binary.LittleEndian.Uint16(b[:])
}

// ReadU32LE reads a little-endian uint32.
func (r *BinReader) ReadU32LE() uint32 {
	var b [4]byte
	r.readFull(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// ReadU64LE reads a little-endian uint64.
func (r *BinReader) ReadU64LE() uint64 {
	var b [8]byte
	r.readFull(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// ReadI64LE reads a little-endian int64.
func (r *BinReader) ReadI64LE() int64 { return int64(r.ReadU64LE()) }

// ReadVarUint reads a CompactSize-encoded integer.
func (r *BinReader) ReadVarUint() uint64 {
	b := r.ReadU8()
	switch b {
	case 0xfd:
		return uint64(r.ReadU16LE())
	case 0xfe:
		return uint64(r.ReadU32LE())
	case 0xff:
		return r.ReadU64LE()
	default:
		return uint64(b)
	}
}

// ReadVarBytes reads a CompactSize length followed by that many bytes. max
// bounds the accepted length so a hostile peer can't force an unbounded
// allocation; 0 means "use protocol.MaxMessagePayload".
func (r *BinReader) ReadVarBytes(max uint64) []byte {
	n := r.ReadVarUint()
	if r.Err != nil {
		return nil
	}
	if max == 0 {
		max = protocol.MaxMessagePayload
	}
	if n > max {
		r.Err = ErrVarBytesTooLong
		return nil
	}
	p := make([]byte, n)
	r.readFull(p)
	return p
}

// ReadVarString reads a CompactSize-prefixed string, capped at max bytes.
func (r *BinReader) ReadVarString(max uint64) string {
	return string(r.ReadVarBytes(max))
}
