package framer

import (
	"github.com/makonode/p2p/pkg/wire/command"
	"github.com/makonode/p2p/pkg/wire/payload"
)

// DefaultCodecs is the command→payload.Message table for every message
// type this core speaks. PEER constructs its Framer with this table (or
// a test-scoped subset of it).
func DefaultCodecs() map[command.Type]Codec {
	return map[command.Type]Codec{
		command.Version:     func() payload.Message { return new(payload.VersionMessage) },
		command.VerAck:      func() payload.Message { return new(payload.VerAckMessage) },
		command.Ping:        func() payload.Message { return new(payload.PingMessage) },
		command.Pong:        func() payload.Message { return new(payload.PongMessage) },
		command.GetAddr:     func() payload.Message { return new(payload.GetAddrMessage) },
		command.Addr:        func() payload.Message { return new(payload.AddrMessage) },
		command.Inv:         func() payload.Message { return new(payload.InvMessage) },
		command.GetData:     func() payload.Message { return new(payload.GetDataMessage) },
		command.NotFound:    func() payload.Message { return new(payload.NotFoundMessage) },
		command.GetBlocks:   func() payload.Message { return new(payload.GetBlocksMessage) },
		command.GetHeaders:  func() payload.Message { return new(payload.GetHeadersMessage) },
		command.Headers:     func() payload.Message { return new(payload.HeadersMessage) },
		command.SendHeaders: func() payload.Message { return new(payload.SendHeadersMessage) },
		command.Block:       func() payload.Message { return new(payload.BlockMessage) },
		command.Tx:          func() payload.Message { return new(payload.TxMessage) },
		command.Reject:      func() payload.Message { return new(payload.RejectMessage) },
		command.MemPool:     func() payload.Message { return new(payload.MemPoolMessage) },
		command.FeeFilter:   func() payload.Message { return new(payload.FeeFilterMessage) },
		command.SendCmpct:   func() payload.Message { return new(payload.SendCmpctMessage) },
		command.CmpctBlock:  func() payload.Message { return new(payload.CmpctBlockMessage) },
		command.GetBlockTxn: func() payload.Message { return new(payload.GetBlockTxnMessage) },
		command.BlockTxn:    func() payload.Message { return new(payload.BlockTxnMessage) },
	}
}
