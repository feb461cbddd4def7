package peer_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makonode/p2p/pkg/framer"
	"github.com/makonode/p2p/pkg/peer"
	"github.com/makonode/p2p/pkg/wire/payload"
	"github.com/makonode/p2p/pkg/wire/protocol"
)

func testConfig() peer.LocalConfig {
	return peer.LocalConfig{
		Net:         protocol.MainNet,
		UserAgent:   "/makonode:test/",
		Services:    protocol.LocalServices,
		Nonce:       1200,
		ProtocolVer: protocol.Version,
		Relay:       false,
		Port:        20338,
		StartHeight: func() uint32 { return 10 },
	}
}

func TestConfigurations(t *testing.T) {
	_, conn := net.Pipe()
	defer conn.Close()

	config := testConfig()
	p := peer.NewPeer(conn, true, config)
	defer p.Disconnect()

	assert.True(t, p.Inbound())
	assert.False(t, p.IsVerackReceived())
	assert.Equal(t, config.Services, p.Services())
	assert.Equal(t, config.UserAgent, p.UserAgent())
	assert.Equal(t, config.Relay, p.CanRelay())
	assert.WithinDuration(t, time.Now(), p.CreatedAt(), 1*time.Second)
}

func TestPeerDisconnect(t *testing.T) {
	_, conn := net.Pipe()
	config := testConfig()
	p := peer.NewPeer(conn, true, config)

	p.Disconnect()

	verack, _ := payload.NewVerAckMessage()
	err := p.Write(verack)
	assert.Error(t, err)

	_, ok := <-p.Detector.Quitch
	assert.False(t, ok)
}

// TestHandshake exercises the full outbound/inbound version→verack flow
// over a real TCP loopback connection.
func TestHandshake(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	serverDone := make(chan struct{})
	var serverVerack bool

	go func() {
		defer close(serverDone)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		readmsg, err := readOne(conn)
		if err != nil {
			return
		}
		if _, ok := readmsg.(*payload.VersionMessage); !ok {
			return
		}
		addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 20338}
		v, _ := payload.NewVersionMessage(addr, 999, false, 5, protocol.LocalServices, "/makonode:server/", time.Now().Unix())
		_ = framer.WriteMessage(conn, protocol.MainNet, v)

		readmsg, err = readOne(conn)
		if err != nil {
			return
		}
		if _, ok := readmsg.(*payload.VerAckMessage); ok {
			serverVerack = true
		}
		ack, _ := payload.NewVerAckMessage()
		_ = framer.WriteMessage(conn, protocol.MainNet, ack)
	}()

	conn, err := net.DialTimeout("tcp", listener.Addr().String(), 2*time.Second)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.IsKnownNonce = func(uint64) bool { return false }
	p := peer.NewPeer(conn, false, cfg)
	require.NoError(t, p.Run())
	defer p.Disconnect()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.IsVerackReceived() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, p.IsVerackReceived())

	<-serverDone
	assert.True(t, serverVerack)
}

func readOne(conn net.Conn) (payload.Message, error) {
	fr := framer.New(protocol.MainNet, framer.DefaultCodecs())
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return nil, err
		}
		decoded, err := fr.Feed(buf[:n])
		if err != nil {
			return nil, err
		}
		if len(decoded) > 0 {
			return decoded[0].Body, nil
		}
	}
}
