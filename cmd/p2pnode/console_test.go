package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/makonode/p2p/pkg/addrmgr"
	"github.com/makonode/p2p/pkg/chain"
	"github.com/makonode/p2p/pkg/chaincfg"
	"github.com/makonode/p2p/pkg/mempool"
	"github.com/makonode/p2p/pkg/pool"
	"github.com/makonode/p2p/pkg/wire/protocol"
)

func testConsole(t *testing.T) (*console, *bytes.Buffer) {
	t.Helper()

	params, err := chaincfg.NetParams(protocol.RegTest)
	require.NoError(t, err)
	ch := chain.New(params)

	db, err := bolt.Open(filepath.Join(t.TempDir(), "addrmgr.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	log := zaptest.NewLogger(t)
	amgr, err := addrmgr.New(log, db)
	require.NoError(t, err)

	mp := mempool.New(mempool.DefaultConfig())
	p := pool.New(pool.Config{Params: params, Chain: ch, Log: log})
	require.NoError(t, p.Run())
	t.Cleanup(p.Stop)

	c := newConsole(p, ch, mp, amgr, zap.NewNop())
	buf := &bytes.Buffer{}
	c.shell.Writer = buf
	c.shell.ErrWriter = buf
	return c, buf
}

func TestCmdPeersReportsZeroWithNoConnections(t *testing.T) {
	c, buf := testConsole(t)
	require.NoError(t, c.shell.Run([]string{"p2pnode", "peers"}))
	out := buf.String()
	assert.Contains(t, out, "peers=0")
	assert.Contains(t, out, "inbound=0")
	assert.Contains(t, out, "outbound=0")
}

func TestCmdGetInfoReportsTipAndSyncMode(t *testing.T) {
	c, buf := testConsole(t)
	require.NoError(t, c.shell.Run([]string{"p2pnode", "getinfo"}))
	out := buf.String()
	assert.Contains(t, out, "sync_mode=")
	assert.Contains(t, out, "tip_height=0")
}

func TestCmdMempoolReportsSize(t *testing.T) {
	c, buf := testConsole(t)
	require.NoError(t, c.shell.Run([]string{"p2pnode", "mempool"}))
	assert.Contains(t, buf.String(), "mempool_size=0")
}

func TestCmdConnectRequiresAddr(t *testing.T) {
	c, _ := testConsole(t)
	err := c.shell.Run([]string{"p2pnode", "connect"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage: connect")
}

func TestCmdBanRequiresAddr(t *testing.T) {
	c, _ := testConsole(t)
	err := c.shell.Run([]string{"p2pnode", "ban"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage: ban")
}

func TestCmdBanRecordsBan(t *testing.T) {
	c, _ := testConsole(t)
	require.NoError(t, c.shell.Run([]string{"p2pnode", "ban", "1.2.3.4:8333"}))
	assert.True(t, c.addrmgr.IsBanned("1.2.3.4:8333"))
}

func TestCmdExitReturnsSentinel(t *testing.T) {
	c, _ := testConsole(t)
	err := c.cmdExit(nil)
	assert.ErrorIs(t, err, errExit)
}
