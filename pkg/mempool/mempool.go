// Package mempool implements MEMPOOL, the collaborator POOL hands
// relayed transactions to. Real fee/policy admission logic is out of
// scope; this package limits itself to the bookkeeping POOL's wire
// protocol actually depends on: tracking which hashes are already
// known, already rejected, or waiting on unseen parents, and bounding
// memory via a capacity limit and an LRU-bounded reject cache. Built
// around a Config/New/Exists/AddTransaction/ErrMemPoolFull shape and an
// orphan/fee map idiom, adapted onto a raw-bytes-plus-Uint256-hash
// transaction model since no richer transaction type travelled into
// this module.
package mempool

import (
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/makonode/p2p/pkg/wire/util"
)

// Config bounds the pool's size: max count, max bytes, expiry,
// reject-cache size.
type Config struct {
	MaxEntries      int
	MaxBytes        uint64
	MaxTxBytes      uint64
	Expiry          time.Duration
	RejectCacheSize int
}

// DefaultConfig mirrors Bitcoin Core's defaults in spirit: fifty thousand
// entries, 300 MiB, two weeks of room before expiry.
func DefaultConfig() Config {
	return Config{
		MaxEntries:      50000,
		MaxBytes:        300 * 1024 * 1024,
		MaxTxBytes:      400000,
		Expiry:          14 * 24 * time.Hour,
		RejectCacheSize: 20000,
	}
}

// Entry is one accepted transaction.
type Entry struct {
	Hash  util.Uint256
	Raw   []byte
	Added time.Time
}

// orphanEntry is a transaction withheld pending unseen parents.
type orphanEntry struct {
	entry   Entry
	missing map[util.Uint256]struct{}
}

var (
	// ErrAlreadyKnown is returned by Add when the hash is already an
	// accepted entry.
	ErrAlreadyKnown = errors.New("mempool: transaction already known")
	// ErrAlreadyRejected is returned by Add when the hash was recently
	// rejected and should not be retried.
	ErrAlreadyRejected = errors.New("mempool: transaction was recently rejected")
	// ErrFull is returned when the pool is at MaxEntries/MaxBytes capacity.
	ErrFull = errors.New("mempool: pool is full")
	// ErrTooLarge is returned when a single transaction exceeds MaxTxBytes.
	ErrTooLarge = errors.New("mempool: transaction exceeds max size")
)

// Pool is MEMPOOL: the set of accepted and orphaned transactions POOL
// relays and answers inventory queries from.
type Pool struct {
	cfg Config

	mu         sync.RWMutex
	entries    map[util.Uint256]*Entry
	orphans    map[util.Uint256]*orphanEntry
	totalBytes uint64
	rejects    *lru.Cache
}

// New builds a Pool with the given Config.
func New(cfg Config) *Pool {
	cache, _ := lru.New(cfg.RejectCacheSize)
	return &Pool{
		cfg:     cfg,
		entries: make(map[util.Uint256]*Entry),
		orphans: make(map[util.Uint256]*orphanEntry),
		rejects: cache,
	}
}

// Has reports whether hash is a fully accepted entry.
func (p *Pool) Has(hash util.Uint256) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[hash]
	return ok
}

// HasReject reports whether hash was recently rejected.
func (p *Pool) HasReject(hash util.Uint256) bool {
	return p.rejects.Contains(hash)
}

// HasOrphan reports whether hash is held pending unseen parents.
func (p *Pool) HasOrphan(hash util.Uint256) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.orphans[hash]
	return ok
}

// Get returns the accepted entry for hash, if any.
func (p *Pool) Get(hash util.Uint256) (*Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[hash]
	return e, ok
}

// Add admits a transaction. parents lists the hashes this transaction
// spends from; any not yet known to the pool make this an orphan, and
// Add returns them so POOL can `getdata` them. Reject returns
// ErrFull/ErrTooLarge/ErrAlreadyKnown/ErrAlreadyRejected; the caller
// applies ban score for the verification error.
func (p *Pool) Add(hash util.Uint256, raw []byte, parents []util.Uint256) (orphan bool, missing []util.Uint256, err error) {
	if uint64(len(raw)) > p.cfg.MaxTxBytes {
		p.reject(hash)
		return false, nil, ErrTooLarge
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[hash]; ok {
		return false, nil, ErrAlreadyKnown
	}
	if p.rejects.Contains(hash) {
		return false, nil, ErrAlreadyRejected
	}

	var unseen []util.Uint256
	for _, parent := range parents {
		if _, ok := p.entries[parent]; !ok {
			unseen = append(unseen, parent)
		}
	}

	if len(unseen) > 0 {
		miss := make(map[util.Uint256]struct{}, len(unseen))
		for _, h := range unseen {
			miss[h] = struct{}{}
		}
		p.orphans[hash] = &orphanEntry{
			entry:   Entry{Hash: hash, Raw: raw, Added: time.Now()},
			missing: miss,
		}
		return true, unseen, nil
	}

	if len(p.entries) >= p.cfg.MaxEntries || p.totalBytes+uint64(len(raw)) > p.cfg.MaxBytes {
		p.evictOldestLocked()
		if len(p.entries) >= p.cfg.MaxEntries || p.totalBytes+uint64(len(raw)) > p.cfg.MaxBytes {
			return false, nil, ErrFull
		}
	}

	p.entries[hash] = &Entry{Hash: hash, Raw: raw, Added: time.Now()}
	p.totalBytes += uint64(len(raw))
	p.resolveOrphansLocked(hash)
	return false, nil, nil
}

// resolveOrphansLocked promotes any orphan whose only missing parent was
// newlyAccepted.
func (p *Pool) resolveOrphansLocked(newlyAccepted util.Uint256) {
	for h, o := range p.orphans {
		delete(o.missing, newlyAccepted)
		if len(o.missing) == 0 {
			delete(p.orphans, h)
			p.entries[h] = &o.entry
			p.totalBytes += uint64(len(o.entry.Raw))
		}
	}
}

func (p *Pool) evictOldestLocked() {
	var oldestHash util.Uint256
	var oldestTime time.Time
	first := true
	for h, e := range p.entries {
		if first || e.Added.Before(oldestTime) {
			oldestHash, oldestTime, first = h, e.Added, false
		}
	}
	if !first {
		p.totalBytes -= uint64(len(p.entries[oldestHash].Raw))
		delete(p.entries, oldestHash)
	}
}

func (p *Pool) reject(hash util.Uint256) {
	p.rejects.Add(hash, struct{}{})
}

// Reject moves hash into the reject cache, called by POOL when CHAIN or
// policy rejects a transaction it already held as an entry or orphan.
func (p *Pool) Reject(hash util.Uint256) {
	p.mu.Lock()
	if e, ok := p.entries[hash]; ok {
		p.totalBytes -= uint64(len(e.Raw))
		delete(p.entries, hash)
	}
	delete(p.orphans, hash)
	p.mu.Unlock()
	p.reject(hash)
}

// Len reports the number of fully accepted entries.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Hashes returns the hashes of all accepted entries, the iteration a
// mempool request streams to a requesting peer.
func (p *Pool) Hashes() []util.Uint256 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]util.Uint256, 0, len(p.entries))
	for h := range p.entries {
		out = append(out, h)
	}
	return out
}

// Entries returns a snapshot of every accepted entry, used by compact
// block reconstruction to match short IDs against known transactions.
func (p *Pool) Entries() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, *e)
	}
	return out
}

// ExpireOlderThan drops accepted entries older than cfg.Expiry, meant to
// be called periodically from POOL's tick handler.
func (p *Pool) ExpireOlderThan(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int
	for h, e := range p.entries {
		if now.Sub(e.Added) > p.cfg.Expiry {
			p.totalBytes -= uint64(len(e.Raw))
			delete(p.entries, h)
			n++
		}
	}
	return n
}
