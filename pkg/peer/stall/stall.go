// Package stall implements the per-peer stall-timer: a request is
// tracked from the moment it is sent, and if no matching response
// arrives within responseTime the peer is considered stalled and
// Quitch is closed so PEER's stall watcher can tear the connection down.
package stall

import (
	"sync"
	"time"

	"github.com/makonode/p2p/pkg/wire/command"
)

// Detector tracks outstanding request deadlines, one per in-flight
// command, and signals Quitch once any of them expires.
type Detector struct {
	lock      sync.RWMutex
	responses map[command.Type]time.Time

	responseTime time.Duration
	ticker        *time.Ticker

	// Quitch is closed exactly once, the first time a tracked message
	// misses its deadline.
	Quitch chan struct{}
	once    sync.Once
	done    chan struct{}
}

// NewDetector builds a Detector that expires a tracked message after
// responseTime and checks for expirations every tickerInterval.
func NewDetector(responseTime, tickerInterval time.Duration) *Detector {
	d := &Detector{
		responses: make(map[command.Type]time.Time),
		responseTime: responseTime,
		ticker:    time.NewTicker(tickerInterval),
		Quitch:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

// AddMessage records that cmd was just sent and must be answered within
// responseTime.
func (d *Detector) AddMessage(cmd command.Type) {
	d.lock.Lock()
	d.responses[cmd] = time.Now()
	d.lock.Unlock()
}

// RemoveMessage clears the deadline for cmd, called once its matching
// response arrives.
func (d *Detector) RemoveMessage(cmd command.Type) {
	d.lock.Lock()
	delete(d.responses, cmd)
	d.lock.Unlock()
}

// GetMessages returns a snapshot of currently-outstanding deadlines.
func (d *Detector) GetMessages() map[command.Type]time.Time {
	d.lock.RLock()
	defer d.lock.RUnlock()
	out := make(map[command.Type]time.Time, len(d.responses))
	for k, v := range d.responses {
		out[k] = v
	}
	return out
}

// Stop releases the ticker, stops the detector's goroutine and closes
// Quitch so callers blocked on it (e.g. PEER's stall watcher) wake up. Safe
// to call more than once.
func (d *Detector) Stop() {
	d.ticker.Stop()
	select {
	case <-d.done:
	default:
		close(d.done)
	}
	d.once.Do(func() { close(d.Quitch) })
}

func (d *Detector) run() {
	for {
		select {
		case <-d.done:
			return
		case <-d.ticker.C:
			if d.expired() {
				d.once.Do(func() { close(d.Quitch) })
				return
			}
		}
	}
}

func (d *Detector) expired() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	now := time.Now()
	for _, sentAt := range d.responses {
		if now.Sub(sentAt) > d.responseTime {
			d.responses = make(map[command.Type]time.Time)
			return true
		}
	}
	return false
}
