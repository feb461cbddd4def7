// Package addrmgr implements ADDRMAN, the address-table collaborator
// POOL consults for outbound dial candidates and answers GetAddr
// requests from. Built around good/new/bad address buckets, extended
// with a bbolt-backed persistent store for good addresses and ban
// entries so the table survives a restart.
package addrmgr

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/makonode/p2p/pkg/peer"
	"github.com/makonode/p2p/pkg/wire/payload"
	"github.com/makonode/p2p/pkg/wire/util"
)

const (
	maxFailures     = 12
	maxAllowedAddrs = 2000

	goodBucket = "addrmgr-good"
	banBucket  = "addrmgr-ban"
)

type addrStats struct {
	tries       uint8
	failures    uint8
	permanent   bool
	lastTried   time.Time
	lastSuccess time.Time
}

// Addrmgr is ADDRMAN: it tracks known peer addresses in three buckets
// (good, new, bad) plus a persistent ban list.
type Addrmgr struct {
	log *zap.Logger
	db  *bolt.DB

	addrmtx   sync.RWMutex
	goodAddrs map[*util.Net_addr]addrStats
	newAddrs  map[*util.Net_addr]struct{}
	badAddrs  map[*util.Net_addr]addrStats
	knownList map[string]*util.Net_addr

	banmtx sync.RWMutex
	banned map[string]time.Time
}

// New builds an Addrmgr. db may be nil, in which case the table is
// in-memory only (tests, ephemeral nodes); when non-nil it is opened
// against goodBucket/banBucket for persistence across restarts.
func New(log *zap.Logger, db *bolt.DB) (*Addrmgr, error) {
	a := &Addrmgr{
		log:       log,
		db:        db,
		goodAddrs: make(map[*util.Net_addr]addrStats, 100),
		newAddrs:  make(map[*util.Net_addr]struct{}, 100),
		badAddrs:  make(map[*util.Net_addr]addrStats, 100),
		knownList: make(map[string]*util.Net_addr, 100),
		banned:    make(map[string]time.Time),
	}
	if db != nil {
		if err := a.loadPersisted(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Addrmgr) loadPersisted() error {
	return a.db.Update(func(tx *bolt.Tx) error {
		gb, err := tx.CreateBucketIfNotExists([]byte(goodBucket))
		if err != nil {
			return err
		}
		bb, err := tx.CreateBucketIfNotExists([]byte(banBucket))
		if err != nil {
			return err
		}

		var goodErr error
		gb.ForEach(func(k, v []byte) error {
			var na util.Net_addr
			if err := json.Unmarshal(v, &na); err != nil {
				goodErr = err
				return nil
			}
			n := na
			a.newAddrs[&n] = struct{}{}
			a.knownList[n.IPPort()] = &n
			return nil
		})

		bb.ForEach(func(k, v []byte) error {
			var until time.Time
			if err := until.UnmarshalBinary(v); err == nil {
				a.banned[string(k)] = until
			}
			return nil
		})
		return goodErr
	})
}

func (a *Addrmgr) persistGood(na *util.Net_addr) {
	if a.db == nil {
		return
	}
	data, err := json.Marshal(na)
	if err != nil {
		return
	}
	_ = a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(goodBucket)).Put([]byte(na.IPPort()), data)
	})
}

// Ban marks ipport banned until the given time, the consequence of a
// peer's ban score crossing the disconnect-and-ban threshold.
func (a *Addrmgr) Ban(ipport string, until time.Time) {
	a.banmtx.Lock()
	a.banned[ipport] = until
	a.banmtx.Unlock()

	if a.db == nil {
		return
	}
	data, err := until.MarshalBinary()
	if err != nil {
		return
	}
	_ = a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(banBucket)).Put([]byte(ipport), data)
	})
}

// IsBanned reports whether ipport is currently under a ban.
func (a *Addrmgr) IsBanned(ipport string) bool {
	a.banmtx.RLock()
	until, ok := a.banned[ipport]
	a.banmtx.RUnlock()
	return ok && time.Now().Before(until)
}

// AddAddrs merges newAddrs into the new-address bucket, skipping
// duplicates and banned entries.
func (a *Addrmgr) AddAddrs(newAddrs []util.Net_addr) {
	newAddrs = removeDuplicates(newAddrs)

	var nas []*util.Net_addr
	for i := range newAddrs {
		addr := &newAddrs[i]
		if a.IsBanned(addr.IPPort()) {
			continue
		}
		a.addrmtx.Lock()
		if _, ok := a.knownList[addr.IPPort()]; !ok {
			nas = append(nas, addr)
		}
		a.addrmtx.Unlock()
	}

	for _, addr := range nas {
		a.addrmtx.Lock()
		a.newAddrs[addr] = struct{}{}
		a.knownList[addr.IPPort()] = addr
		a.addrmtx.Unlock()
	}
}

// Good returns addresses successfully connected to within the last week.
func (a *Addrmgr) Good() []util.Net_addr {
	var goodAddrs []util.Net_addr
	oneWeekAgo := time.Now().Add(-7 * 24 * time.Hour)

	a.addrmtx.RLock()
	for addr, stat := range a.goodAddrs {
		if stat.lastSuccess.Before(oneWeekAgo) {
			continue
		}
		goodAddrs = append(goodAddrs, *addr)
	}
	a.addrmtx.RUnlock()
	return goodAddrs
}

// Unconnected returns addresses never yet dialed.
func (a *Addrmgr) Unconnected() []util.Net_addr {
	var out []util.Net_addr
	a.addrmtx.RLock()
	for addr := range a.newAddrs {
		out = append(out, *addr)
	}
	a.addrmtx.RUnlock()
	return out
}

// Bad returns addresses that repeatedly failed to connect.
func (a *Addrmgr) Bad() []util.Net_addr {
	var out []util.Net_addr
	a.addrmtx.RLock()
	for addr := range a.badAddrs {
		out = append(out, *addr)
	}
	a.addrmtx.RUnlock()
	return out
}

// FetchMoreAddresses reports whether the table is under-populated and
// POOL should send a GetAddr.
func (a *Addrmgr) FetchMoreAddresses() bool {
	a.addrmtx.RLock()
	n := len(a.knownList)
	a.addrmtx.RUnlock()
	return n < maxAllowedAddrs
}

// ConnectionComplete moves addressport into the good bucket once PEER
// finishes its handshake.
func (a *Addrmgr) ConnectionComplete(addressport string, inbound bool) {
	a.addrmtx.Lock()
	na, ok := a.knownList[addressport]
	if !ok {
		a.addrmtx.Unlock()
		if a.log != nil {
			a.log.Debug("connected to unknown address", zap.String("addr", addressport))
		}
		return
	}

	stats := a.goodAddrs[na]
	stats.lastSuccess = time.Now()
	stats.lastTried = time.Now()
	stats.permanent = inbound
	stats.tries++
	a.goodAddrs[na] = stats
	delete(a.newAddrs, na)
	delete(a.badAddrs, na)
	a.addrmtx.Unlock()

	a.persistGood(na)
}

// Failed tells the table a dial to addressport did not complete.
func (a *Addrmgr) Failed(addressport string) {
	a.addrmtx.Lock()
	defer a.addrmtx.Unlock()

	na, ok := a.knownList[addressport]
	if !ok {
		return
	}

	if stats, ok := a.badAddrs[na]; ok {
		stats.lastTried = time.Now()
		stats.failures++
		stats.tries++
		if float32(stats.failures)/float32(stats.tries) > 0.8 && stats.tries > 5 {
			delete(a.badAddrs, na)
			return
		}
		a.badAddrs[na] = stats
		return
	}

	if stats, ok := a.goodAddrs[na]; ok {
		stats.lastTried = time.Now()
		stats.failures++
		stats.tries++
		if float32(stats.failures)/float32(stats.tries) > 0.5 && stats.tries > 10 {
			delete(a.goodAddrs, na)
			a.badAddrs[na] = stats
			return
		}
		a.goodAddrs[na] = stats
		return
	}

	if _, ok := a.newAddrs[na]; ok {
		delete(a.newAddrs, na)
		a.badAddrs[na] = addrStats{}
	}
}

// OnAddr merges an incoming Addr message into the table.
func (a *Addrmgr) OnAddr(p *peer.Peer, msg *payload.AddrMessage) {
	a.AddAddrs(msg.Addrs)
}

// OnGetAddr answers a GetAddr with our best-known good addresses.
func (a *Addrmgr) OnGetAddr(p *peer.Peer, msg *payload.GetAddrMessage) {
	addrMsg, err := payload.NewAddrMessage()
	if err != nil {
		return
	}
	good := a.Good()
	for i := range good {
		if err := addrMsg.AddNetAddr(&good[i]); err != nil {
			break
		}
	}
	if err := p.Write(addrMsg); err != nil && a.log != nil {
		a.log.Debug("failed to send addr", zap.Error(err), zap.String("ip", fmt.Sprint(addrMsg)))
	}
}

func removeDuplicates(elements []util.Net_addr) []util.Net_addr {
	encountered := map[string]bool{}
	result := make([]util.Net_addr, 0, len(elements))
	for _, element := range elements {
		if encountered[element.IPPort()] {
			continue
		}
		encountered[element.IPPort()] = true
		result = append(result, element)
	}
	return result
}
