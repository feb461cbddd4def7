package payload

import (
	"io"
	"net"

	"github.com/makonode/p2p/pkg/wire/binio"
	"github.com/makonode/p2p/pkg/wire/command"
	"github.com/makonode/p2p/pkg/wire/protocol"
	"github.com/makonode/p2p/pkg/wire/util"
)

// VersionMessage is the first message sent on every connection; handshake
// validation (self-connection via Nonce, minimum Version) is PEER's
// job, not this type's — this type only carries the fields.
type VersionMessage struct {
	Version     uint32
	Services    protocol.Service
	Timestamp   int64
	AddrRecv    util.Net_addr
	AddrFrom    util.Net_addr
	Nonce       uint64
	UserAgent   string
	StartHeight uint32
	Relay       bool
}

// NewVersionMessage builds a version payload describing the local node.
func NewVersionMessage(addrMe *net.TCPAddr, nonce uint64, relay bool, startHeight uint32, services protocol.Service, userAgent string, now int64) (*VersionMessage, error) {
	var ip [16]byte
	copy(ip[:], addrMe.IP.To16())
	recv := util.Net_addr{IP: ip, Port: uint16(addrMe.Port), Services: uint64(services)}

	return &VersionMessage{
		Version:     protocol.Version,
		Services:    services,
		Timestamp:   now,
		AddrRecv:    recv,
		Nonce:       nonce,
		UserAgent:   userAgent,
		StartHeight: startHeight,
		Relay:       relay,
	}, nil
}

// Command implements Message.
func (m *VersionMessage) Command() command.Type { return command.Version }

// EncodePayload implements Message.
func (m *VersionMessage) EncodePayload(w io.Writer) error {
	return encodeWith(w, func(bw *binio.BinWriter) {
		bw.WriteU32LE(m.Version)
		bw.WriteU64LE(uint64(m.Services))
		bw.WriteI64LE(m.Timestamp)
		writeNetAddr(bw, m.AddrRecv)
		writeNetAddr(bw, m.AddrFrom)
		bw.WriteU64LE(m.Nonce)
		bw.WriteVarString(m.UserAgent)
		bw.WriteU32LE(m.StartHeight)
		bw.WriteBool(m.Relay)
	})
}

// DecodePayload implements Message.
func (m *VersionMessage) DecodePayload(r io.Reader) error {
	return decodeWith(r, func(br *binio.BinReader) {
		m.Version = br.ReadU32LE()
		m.Services = protocol.Service(br.ReadU64LE())
		m.Timestamp = br.ReadI64LE()
		m.AddrRecv = readNetAddr(br)
		m.AddrFrom = readNetAddr(br)
		m.Nonce = br.ReadU64LE()
		m.UserAgent = br.ReadVarString(256)
		m.StartHeight = br.ReadU32LE()
		m.Relay = br.ReadBool()
	})
}

func writeNetAddr(bw *binio.BinWriter, na util.Net_addr) {
	bw.WriteU32LE(na.Timestamp)
	bw.WriteU64LE(uint64(na.Services))
	bw.WriteBytes(na.IP[:])
	bw.WriteU16LE(na.Port)
}

func readNetAddr(br *binio.BinReader) util.Net_addr {
	var na util.Net_addr
	na.Timestamp = br.ReadU32LE()
	na.Services = br.ReadU64LE()
	br.ReadBytes(na.IP[:])
	na.Port = br.ReadU16LE()
	return na
}
