// Package framer translates between a raw byte stream and discrete wire
// messages: magic/command/length/checksum framing, every complete frame in
// the buffered bytes decoded per Feed call, and
// a hard stop on the first malformed frame.
package framer

import (
	"bytes"
	"errors"
	"io"

	"github.com/makonode/p2p/pkg/wire/binio"
	"github.com/makonode/p2p/pkg/wire/checksum"
	"github.com/makonode/p2p/pkg/wire/command"
	"github.com/makonode/p2p/pkg/wire/payload"
	"github.com/makonode/p2p/pkg/wire/protocol"
)

// HeaderSize is the fixed frame header width: 4 (magic) + 12 (command) +
// 4 (length) + 4 (checksum).
const HeaderSize = 4 + 12 + 4 + 4

// Errors returned by Feed; each one is the trigger for PEER to add
// ban-score and stop reading from this connection.
var (
	ErrBadMagic       = errors.New("framer: magic does not match network")
	ErrBadCommand     = errors.New("framer: malformed command bytes")
	ErrPayloadTooBig  = errors.New("framer: payload exceeds MaxMessagePayload")
	ErrBadChecksum    = errors.New("framer: checksum mismatch")
	ErrUnknownCommand = errors.New("framer: no codec registered for command")
	ErrClosed         = errors.New("framer: closed after a prior framing error")
)

// Decoded is one fully parsed, checksum-verified wire message.
type Decoded struct {
	Command command.Type
	Body    payload.Message
}

// Codec constructs an empty payload.Message to decode a given command
// into. The full command→codec table is built by DefaultCodecs (see
// codec.go).
type Codec func() payload.Message

// Framer accumulates inbound bytes and emits fully framed, checksummed
// messages. It is not safe for concurrent use; PEER owns one Framer and
// drives it from its single read loop.
type Framer struct {
	magic   protocol.Magic
	codecs  map[command.Type]Codec
	pending bytes.Buffer

	waiting int
	haveHdr bool
	cmd     command.Type
	wantSum [checksum.Size]byte
	payLen  uint32

	closed bool
}

// New builds a Framer bound to a single network magic and command→codec
// table.
func New(magic protocol.Magic, codecs map[command.Type]Codec) *Framer {
	return &Framer{magic: magic, codecs: codecs, waiting: HeaderSize}
}

// Feed appends newly read bytes and decodes as many complete messages as
// are now available. It returns the decoded messages in arrival order.
// Once it returns a non-nil error the Framer is closed: every subsequent
// Feed call returns ErrClosed immediately: the parser stays closed
// after its first error.
func (f *Framer) Feed(data []byte) ([]Decoded, error) {
	if f.closed {
		return nil, ErrClosed
	}
	f.pending.Write(data)

	var out []Decoded
	for f.pending.Len() >= f.waiting {
		if !f.haveHdr {
			if err := f.parseHeader(); err != nil {
				f.closed = true
				return out, err
			}
			continue
		}
		d, err := f.parseBody()
		if err != nil {
			f.closed = true
			return out, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *Framer) parseHeader() error {
	hdr := f.pending.Next(HeaderSize)
	br := binio.NewBinReaderFromIO(bytes.NewReader(hdr))

	magic := protocol.Magic(br.ReadU32LE())
	var cmdBytes [12]byte
	br.ReadBytes(cmdBytes[:])
	length := br.ReadU32LE()
	var sum [checksum.Size]byte
	br.ReadBytes(sum[:])
	if br.Err != nil {
		return br.Err
	}

	if magic != f.magic {
		return ErrBadMagic
	}
	cmd, err := command.FromBytes(cmdBytes)
	if err != nil {
		return ErrBadCommand
	}
	if length > protocol.MaxMessagePayload {
		return ErrPayloadTooBig
	}

	f.cmd = cmd
	f.wantSum = sum
	f.payLen = length
	f.waiting = int(length)
	f.haveHdr = true
	return nil
}

func (f *Framer) parseBody() (Decoded, error) {
	body := f.pending.Next(int(f.payLen))
	gotSum := checksum.Sum(body)
	if gotSum != f.wantSum {
		return Decoded{}, ErrBadChecksum
	}

	newCodec, ok := f.codecs[f.cmd]
	if !ok {
		return Decoded{}, ErrUnknownCommand
	}
	msg := newCodec()
	if err := msg.DecodePayload(bytes.NewReader(body)); err != nil {
		return Decoded{}, err
	}

	f.haveHdr = false
	f.waiting = HeaderSize
	return Decoded{Command: f.cmd, Body: msg}, nil
}

// WriteMessage frames and writes a single message to w, the encode
// side of Feed, used by PEER.send.
func WriteMessage(w io.Writer, magic protocol.Magic, m payload.Message) error {
	var body bytes.Buffer
	if err := m.EncodePayload(&body); err != nil {
		return err
	}
	if body.Len() > protocol.MaxMessagePayload {
		return ErrPayloadTooBig
	}

	bw := binio.NewBinWriterFromIO(w)
	bw.WriteU32LE(uint32(magic))
	bw.WriteBytes(paddedCommand(m.Command()))
	bw.WriteU32LE(uint32(body.Len()))
	sum := checksum.Sum(body.Bytes())
	bw.WriteBytes(sum[:])
	bw.WriteBytes(body.Bytes())
	return bw.Err
}

func paddedCommand(t command.Type) []byte {
	b := t.Bytes()
	return b[:]
}
