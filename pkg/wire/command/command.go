// Package command holds the 12-byte, NUL-padded command strings carried in
// every frame header.
package command

// Type is a wire command name. It is always <= 12 bytes of ASCII 32..126.
type Type string

// All commands this core speaks.
const (
	Version     Type = "version"
	VerAck      Type = "verack"
	Ping        Type = "ping"
	Pong        Type = "pong"
	GetAddr     Type = "getaddr"
	Addr        Type = "addr"
	Inv         Type = "inv"
	GetData     Type = "getdata"
	NotFound    Type = "notfound"
	GetBlocks   Type = "getblocks"
	GetHeaders  Type = "getheaders"
	Headers     Type = "headers"
	SendHeaders Type = "sendheaders"
	Block       Type = "block"
	Tx          Type = "tx"
	Reject      Type = "reject"
	MemPool     Type = "mempool"
	FeeFilter   Type = "feefilter"
	SendCmpct   Type = "sendcmpct"
	CmpctBlock  Type = "cmpctblock"
	GetBlockTxn Type = "getblocktxn"
	BlockTxn    Type = "blocktxn"
)

// maxLen is the frame header's command field width.
const maxLen = 12

// Bytes encodes t into the fixed-width, NUL-padded wire representation.
func (t Type) Bytes() [maxLen]byte {
	var out [maxLen]byte
	copy(out[:], t)
	return out
}

// FromBytes decodes a fixed-width command field, trimming trailing NULs.
// It returns an error if any non-NUL byte falls outside the printable
// ASCII range (32..126).
func FromBytes(b [maxLen]byte) (Type, error) {
	n := maxLen
	for i, c := range b {
		if c == 0 {
			n = i
			break
		}
		if c < 32 || c > 126 {
			return "", errBadCommandByte
		}
	}
	for _, c := range b[n:] {
		if c != 0 {
			return "", errBadCommandByte
		}
	}
	return Type(b[:n]), nil
}
