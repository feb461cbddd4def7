package payload

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makonode/p2p/pkg/wire/command"
	"github.com/makonode/p2p/pkg/wire/protocol"
	"github.com/makonode/p2p/pkg/wire/util"
)

func roundTrip(t *testing.T, m Message, fresh Message) {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, m.EncodePayload(buf))
	require.NoError(t, fresh.DecodePayload(bytes.NewReader(buf.Bytes())))
}

func TestVersionMessageRoundTrip(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8333}
	m, err := NewVersionMessage(addr, 42, true, 100, protocol.LocalServices, "/makonode:0.1.0/", 1690000000)
	require.NoError(t, err)

	dec := new(VersionMessage)
	roundTrip(t, m, dec)

	assert.Equal(t, m.Version, dec.Version)
	assert.Equal(t, m.Nonce, dec.Nonce)
	assert.Equal(t, m.UserAgent, dec.UserAgent)
	assert.Equal(t, m.StartHeight, dec.StartHeight)
	assert.Equal(t, m.Relay, dec.Relay)
}

func TestVerAckNoPayload(t *testing.T) {
	m, err := NewVerAckMessage()
	require.NoError(t, err)
	dec := new(VerAckMessage)
	roundTrip(t, m, dec)
}

func TestPingPongRoundTrip(t *testing.T) {
	ping, _ := NewPingMessage(1234567890)
	decPing := new(PingMessage)
	roundTrip(t, ping, decPing)
	assert.Equal(t, ping.Nonce, decPing.Nonce)

	pong, _ := NewPongMessage(ping.Nonce)
	decPong := new(PongMessage)
	roundTrip(t, pong, decPong)
	assert.Equal(t, pong.Nonce, decPong.Nonce)
}

func TestAddrMessageRoundTrip(t *testing.T) {
	m, err := NewAddrMessage()
	require.NoError(t, err)

	var ip [16]byte
	copy(ip[:], net.ParseIP("127.0.0.1").To16())
	na, err := util.NewNetAddr(1690000000, ip, 8333, uint64(protocol.LocalServices))
	require.NoError(t, err)
	require.NoError(t, m.AddNetAddr(na))

	dec := new(AddrMessage)
	roundTrip(t, m, dec)
	require.Len(t, dec.Addrs, 1)
	assert.Equal(t, na.IPPort(), dec.Addrs[0].IPPort())
}

func TestAddrMessageCapsLength(t *testing.T) {
	m, _ := NewAddrMessage()
	var ip [16]byte
	na, _ := util.NewNetAddr(0, ip, 1, 0)
	for i := 0; i < MaxAddrs; i++ {
		require.NoError(t, m.AddNetAddr(na))
	}
	assert.ErrorIs(t, m.AddNetAddr(na), ErrTooManyAddrs)
}

func TestInvMessageRoundTrip(t *testing.T) {
	m, err := NewInvMessage(InvTypeBlock)
	require.NoError(t, err)

	h, err := util.Uint256DecodeString("f037308fa0ab18155bccfc08485468c112409ea5064595699e98c545f245f32d")
	require.NoError(t, err)
	require.NoError(t, m.AddHash(h))

	dec := new(InvMessage)
	roundTrip(t, m, dec)
	require.Len(t, dec.Hashes, 1)
	assert.True(t, h.Equals(dec.Hashes[0]))
}

func TestInvMessageMaxHashes(t *testing.T) {
	m, _ := NewInvMessage(InvTypeTx)
	var h util.Uint256
	h[0] = 1
	for i := 0; i < maxHashes; i++ {
		require.NoError(t, m.AddHash(h))
	}
	assert.ErrorIs(t, m.AddHash(h), MaxHashError)
}

func TestGetHeadersRoundTrip(t *testing.T) {
	var start util.Uint256
	start[0] = 0xaa
	var stop util.Uint256
	stop[0] = 0xbb

	m, err := NewGetHeadersMessage([]util.Uint256{start}, stop)
	require.NoError(t, err)

	dec := new(GetHeadersMessage)
	roundTrip(t, m, dec)
	require.Len(t, dec.HashStart, 1)
	assert.True(t, start.Equals(dec.HashStart[0]))
	assert.True(t, stop.Equals(dec.HashStop))
}

func TestHeadersMessageRoundTripAndHash(t *testing.T) {
	m, err := NewHeadersMessage()
	require.NoError(t, err)

	h := &BlockHeader{Version: 1, Timestamp: 1231469665, Bits: 0x1d00ffff, Nonce: 2573394689}
	m.AddHeader(h)

	buf := new(bytes.Buffer)
	require.NoError(t, m.EncodePayload(buf))

	dec := new(HeadersMessage)
	require.NoError(t, dec.DecodePayload(bytes.NewReader(buf.Bytes())))
	require.Len(t, dec.Headers, 1)
	assert.True(t, h.Hash().Equals(dec.Headers[0].Hash()))
}

func TestHeadersMessageCapsLength(t *testing.T) {
	buf := new(bytes.Buffer)
	bw := wireVarUintBuf(MaxHeadersResult + 1)
	buf.Write(bw)

	dec := new(HeadersMessage)
	err := dec.DecodePayload(buf)
	assert.Error(t, err)
}

func TestBlockMessageRoundTrip(t *testing.T) {
	h := BlockHeader{Version: 1, Bits: 0x1d00ffff}
	m, err := NewBlockMessage(h)
	require.NoError(t, err)
	m.TxCount = 1
	m.TxBytes = []byte{0x01, 0x02, 0x03}

	dec := new(BlockMessage)
	roundTrip(t, m, dec)
	assert.Equal(t, m.TxCount, dec.TxCount)
	assert.Equal(t, m.TxBytes, dec.TxBytes)
	assert.True(t, m.Header.Hash().Equals(dec.Header.Hash()))
}

func TestTxMessageRoundTrip(t *testing.T) {
	m, err := NewTxMessage([]byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)

	dec := new(TxMessage)
	roundTrip(t, m, dec)
	assert.Equal(t, m.Raw, dec.Raw)
}

func TestRejectMessageRoundTrip(t *testing.T) {
	m, err := NewRejectMessage(command.GetHeaders, RejectInvalid, "bad locator")
	require.NoError(t, err)

	dec := new(RejectMessage)
	roundTrip(t, m, dec)
	assert.Equal(t, m.RejectedCommand, dec.RejectedCommand)
	assert.Equal(t, m.Code, dec.Code)
	assert.Equal(t, m.Reason, dec.Reason)
}

func TestSendCmpctRoundTrip(t *testing.T) {
	m, err := NewSendCmpctMessage(true, 1)
	require.NoError(t, err)
	dec := new(SendCmpctMessage)
	roundTrip(t, m, dec)
	assert.Equal(t, m.Announce, dec.Announce)
	assert.Equal(t, m.Version, dec.Version)
}

func TestCmpctBlockRoundTrip(t *testing.T) {
	h := BlockHeader{Version: 1}
	m, err := NewCmpctBlockMessage(h, 99)
	require.NoError(t, err)
	m.ShortIDs = []uint64{1, 2, 3}
	m.PrefilledTxs = []PrefilledTx{{Index: 0, Raw: []byte{1, 2}}}

	dec := new(CmpctBlockMessage)
	roundTrip(t, m, dec)
	assert.Equal(t, m.ShortIDs, dec.ShortIDs)
	assert.Equal(t, m.PrefilledTxs, dec.PrefilledTxs)
}

func TestGetBlockTxnAndBlockTxnRoundTrip(t *testing.T) {
	var bh util.Uint256
	bh[0] = 0x42

	req, err := NewGetBlockTxnMessage(bh, []uint64{0, 2})
	require.NoError(t, err)
	decReq := new(GetBlockTxnMessage)
	roundTrip(t, req, decReq)
	assert.Equal(t, req.Indexes, decReq.Indexes)
	assert.True(t, bh.Equals(decReq.BlockHash))

	resp, err := NewBlockTxnMessage(bh, [][]byte{{1, 2}, {3, 4}})
	require.NoError(t, err)
	decResp := new(BlockTxnMessage)
	roundTrip(t, resp, decResp)
	assert.Equal(t, resp.Txs, decResp.Txs)
}

func wireVarUintBuf(n int) []byte {
	// MaxHeadersResult+1 always needs the 0xfd 2-byte form here.
	return []byte{0xfd, byte(n), byte(n >> 8)}
}
