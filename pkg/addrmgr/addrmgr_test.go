package addrmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makonode/p2p/pkg/wire/util"
)

func testAddr(b byte) util.Net_addr {
	var ip [16]byte
	ip[15] = b
	na, _ := util.NewNetAddr(0, ip, 8333, 0)
	return *na
}

func TestAddAddrsDeduplicates(t *testing.T) {
	a, err := New(nil, nil)
	require.NoError(t, err)

	addr := testAddr(1)
	a.AddAddrs([]util.Net_addr{addr, addr})
	assert.Len(t, a.Unconnected(), 1)
}

func TestConnectionCompleteMovesToGood(t *testing.T) {
	a, err := New(nil, nil)
	require.NoError(t, err)

	addr := testAddr(2)
	a.AddAddrs([]util.Net_addr{addr})
	a.ConnectionComplete(addr.IPPort(), false)

	assert.Len(t, a.Good(), 1)
	assert.Empty(t, a.Unconnected())
}

func TestFailedMovesNewToBad(t *testing.T) {
	a, err := New(nil, nil)
	require.NoError(t, err)

	addr := testAddr(3)
	a.AddAddrs([]util.Net_addr{addr})
	a.Failed(addr.IPPort())

	assert.Len(t, a.Bad(), 1)
	assert.Empty(t, a.Unconnected())
}

func TestBanAndIsBanned(t *testing.T) {
	a, err := New(nil, nil)
	require.NoError(t, err)

	addr := testAddr(4)
	assert.False(t, a.IsBanned(addr.IPPort()))

	a.Ban(addr.IPPort(), time.Now().Add(time.Hour))
	assert.True(t, a.IsBanned(addr.IPPort()))
}

func TestFetchMoreAddresses(t *testing.T) {
	a, err := New(nil, nil)
	require.NoError(t, err)
	assert.True(t, a.FetchMoreAddresses())
}
