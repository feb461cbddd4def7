package framer

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makonode/p2p/pkg/wire/command"
	"github.com/makonode/p2p/pkg/wire/payload"
	"github.com/makonode/p2p/pkg/wire/protocol"
)

func versionFrame(t *testing.T) []byte {
	t.Helper()
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8333}
	m, err := payload.NewVersionMessage(addr, 1, true, 0, protocol.LocalServices, "/makonode:0.1.0/", 1690000000)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, protocol.MainNet, m))
	return buf.Bytes()
}

// S1: one byte at a time must yield exactly one decoded message, emitted
// only once the last byte of the payload arrives.
func TestFeedByteAtATime(t *testing.T) {
	frame := versionFrame(t)
	f := New(protocol.MainNet, DefaultCodecs())

	var all []Decoded
	for i, b := range frame {
		out, err := f.Feed([]byte{b})
		require.NoError(t, err)
		if i < len(frame)-1 {
			assert.Empty(t, out)
		}
		all = append(all, out...)
	}
	require.Len(t, all, 1)
	assert.Equal(t, command.Version, all[0].Command)
}

// S1 (continued): two concatenated frames fed as a single chunk must
// produce two decoded messages, and the framer must stay usable after.
func TestFeedTwoFramesOneChunk(t *testing.T) {
	frame := versionFrame(t)
	chunk := append(append([]byte{}, frame...), frame...)

	f := New(protocol.MainNet, DefaultCodecs())
	out, err := f.Feed(chunk)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, command.Version, out[0].Command)
	assert.Equal(t, command.Version, out[1].Command)

	more, err := f.Feed(versionFrame(t))
	require.NoError(t, err)
	require.Len(t, more, 1)
}

// S2: a flipped payload byte must surface a checksum error and close the
// framer for good.
func TestFeedBadChecksumCloses(t *testing.T) {
	frame := versionFrame(t)
	corrupt := append([]byte{}, frame...)
	corrupt[len(corrupt)-1] ^= 0xff

	f := New(protocol.MainNet, DefaultCodecs())
	_, err := f.Feed(corrupt)
	assert.ErrorIs(t, err, ErrBadChecksum)

	_, err = f.Feed([]byte{0})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFeedBadMagic(t *testing.T) {
	frame := versionFrame(t)
	f := New(protocol.TestNet, DefaultCodecs())
	_, err := f.Feed(frame)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestFeedBadCommandBytes(t *testing.T) {
	frame := versionFrame(t)
	corrupt := append([]byte{}, frame...)
	// Command field starts right after the 4-byte magic; inject a
	// non-printable byte into it.
	corrupt[4] = 0x01

	f := New(protocol.MainNet, DefaultCodecs())
	_, err := f.Feed(corrupt)
	assert.ErrorIs(t, err, ErrBadCommand)
}

func TestFeedOversizedPayloadRejected(t *testing.T) {
	frame := versionFrame(t)
	corrupt := append([]byte{}, frame...)
	// Length field is bytes [16:20); set it past MaxMessagePayload.
	corrupt[16] = 0xff
	corrupt[17] = 0xff
	corrupt[18] = 0xff
	corrupt[19] = 0xff

	f := New(protocol.MainNet, DefaultCodecs())
	_, err := f.Feed(corrupt[:HeaderSize])
	assert.ErrorIs(t, err, ErrPayloadTooBig)
}

func TestWriteReadRoundTrip(t *testing.T) {
	ping, err := payload.NewPingMessage(42)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, protocol.MainNet, ping))

	f := New(protocol.MainNet, DefaultCodecs())
	out, err := f.Feed(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, out, 1)

	got, ok := out[0].Body.(*payload.PingMessage)
	require.True(t, ok)
	assert.Equal(t, uint64(42), got.Nonce)
}
