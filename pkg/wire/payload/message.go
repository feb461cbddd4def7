// Package payload implements the body of every message type in the
// wire protocol: version/verack handshake, addr relay, inventory
// announce/fetch, the headers-first sync messages and BIP152 compact
// blocks. Each type exposes Command(), EncodePayload(io.Writer) and
// DecodePayload(io.Reader).
package payload

import (
	"io"

	"github.com/makonode/p2p/pkg/wire/binio"
	"github.com/makonode/p2p/pkg/wire/command"
)

// Message is the interface every payload type implements so the framer
// and peer code can encode/decode generically by command.
type Message interface {
	Command() command.Type
	EncodePayload(w io.Writer) error
	DecodePayload(r io.Reader) error
}

func encodeWith(w io.Writer, fn func(bw *binio.BinWriter)) error {
	bw := binio.NewBinWriterFromIO(w)
	fn(bw)
	return bw.Err
}

func decodeWith(r io.Reader, fn func(br *binio.BinReader)) error {
	br := binio.NewBinReaderFromIO(r)
	fn(br)
	return br.Err
}
