package binio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripScalars(t *testing.T) {
	buf := new(bytes.Buffer)
	w := NewBinWriterFromIO(buf)
	w.WriteU8(7)
	w.WriteBool(true)
	w.WriteU16LE(1234)
	w.WriteU32LE(0xdeadbeef)
	w.WriteU64LE(0x0102030405060708)
	w.WriteI64LE(-42)
	require.NoError(t, w.Err)

	r := NewBinReaderFromIO(buf)
	assert.Equal(t, uint8(7), r.ReadU8())
	assert.Equal(t, true, r.ReadBool())
	assert.Equal(t, uint16(1234), r.ReadU16LE())
	assert.Equal(t, uint32(0xdeadbeef), r.ReadU32LE())
	assert.Equal(t, uint64(0x0102030405060708), r.ReadU64LE())
	assert.Equal(t, int64(-42), r.ReadI64LE())
	require.NoError(t, r.Err)
}

func TestVarUintBoundaries(t *testing.T) {
	cases := []uint64{0, 0xfc, 0xfd, 0xffff, 0x10000, 0xffffffff, 0x100000000}
	for _, v := range cases {
		buf := new(bytes.Buffer)
		w := NewBinWriterFromIO(buf)
		w.WriteVarUint(v)
		require.NoError(t, w.Err)

		r := NewBinReaderFromIO(buf)
		assert.Equal(t, v, r.ReadVarUint())
		require.NoError(t, r.Err)
	}
}

func TestVarBytesRejectsOverCap(t *testing.T) {
	buf := new(bytes.Buffer)
	w := NewBinWriterFromIO(buf)
	w.WriteVarBytes(make([]byte, 10))
	require.NoError(t, w.Err)

	r := NewBinReaderFromIO(buf)
	got := r.ReadVarBytes(5)
	assert.Nil(t, got)
	assert.ErrorIs(t, r.Err, ErrVarBytesTooLong)
}

func TestVarStringRoundTrip(t *testing.T) {
	buf := new(bytes.Buffer)
	w := NewBinWriterFromIO(buf)
	w.WriteVarString("hello world")
	require.NoError(t, w.Err)

	r := NewBinReaderFromIO(buf)
	assert.Equal(t, "hello world", r.ReadVarString(0))
}
