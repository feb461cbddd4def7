package mempool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makonode/p2p/internal/random"
	"github.com/makonode/p2p/pkg/wire/util"
)

func TestAddAcceptsEntryWithNoParents(t *testing.T) {
	p := New(DefaultConfig())
	h := random.Uint256()

	orphan, missing, err := p.Add(h, []byte{1, 2, 3}, nil)
	require.NoError(t, err)
	assert.False(t, orphan)
	assert.Empty(t, missing)
	assert.True(t, p.Has(h))
}

func TestAddRejectsDuplicate(t *testing.T) {
	p := New(DefaultConfig())
	h := random.Uint256()

	_, _, err := p.Add(h, []byte{1}, nil)
	require.NoError(t, err)

	_, _, err = p.Add(h, []byte{1}, nil)
	assert.ErrorIs(t, err, ErrAlreadyKnown)
}

func TestAddOrphansOnMissingParent(t *testing.T) {
	p := New(DefaultConfig())
	parent := random.Uint256()
	child := random.Uint256()

	orphan, missing, err := p.Add(child, []byte{9}, []util.Uint256{parent})
	require.NoError(t, err)
	assert.True(t, orphan)
	assert.Equal(t, []util.Uint256{parent}, missing)
	assert.True(t, p.HasOrphan(child))
	assert.False(t, p.Has(child))
}

func TestResolvingParentPromotesOrphan(t *testing.T) {
	p := New(DefaultConfig())
	parent := random.Uint256()
	child := random.Uint256()

	_, _, err := p.Add(child, []byte{9}, []util.Uint256{parent})
	require.NoError(t, err)

	_, _, err = p.Add(parent, []byte{1}, nil)
	require.NoError(t, err)

	assert.True(t, p.Has(child))
	assert.False(t, p.HasOrphan(child))
}

func TestRejectMovesToRejectCache(t *testing.T) {
	p := New(DefaultConfig())
	h := random.Uint256()

	_, _, err := p.Add(h, []byte{1}, nil)
	require.NoError(t, err)

	p.Reject(h)
	assert.False(t, p.Has(h))
	assert.True(t, p.HasReject(h))

	_, _, err = p.Add(h, []byte{1}, nil)
	assert.ErrorIs(t, err, ErrAlreadyRejected)
}

func TestAddRejectsOversizedTx(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTxBytes = 4
	p := New(cfg)

	_, _, err := p.Add(random.Uint256(), []byte{1, 2, 3, 4, 5}, nil)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestExpireOlderThanDropsStaleEntries(t *testing.T) {
	p := New(DefaultConfig())
	h := random.Uint256()
	_, _, err := p.Add(h, []byte{1}, nil)
	require.NoError(t, err)

	n := p.ExpireOlderThan(time.Now().Add(15 * 24 * time.Hour))
	assert.Equal(t, 1, n)
	assert.False(t, p.Has(h))
}
