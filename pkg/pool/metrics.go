// Metrics instrumentation for POOL, exported via prometheus/client_golang
// the way an rpc/services layer typically exposes counters/gauges.
package pool

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the gauges/counters POOL updates as it runs.
type Metrics struct {
	PeersConnected  prometheus.Gauge
	PeersOutbound   prometheus.Gauge
	HeadersAccepted prometheus.Counter
	BlocksAccepted  prometheus.Counter
	TxAccepted      prometheus.Counter
	BansIssued      prometheus.Counter
	DialFailures    prometheus.Counter
}

// NewMetrics registers POOL's instruments against reg. A nil reg is valid
// and yields detached (but still usable) instruments, handy for tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PeersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "p2p_peers_connected",
			Help: "Number of peers currently in CONNECTED state.",
		}),
		PeersOutbound: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "p2p_peers_outbound",
			Help: "Number of outbound peers currently connected.",
		}),
		HeadersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "p2p_headers_accepted_total",
			Help: "Total headers accepted into the local headers chain.",
		}),
		BlocksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "p2p_blocks_accepted_total",
			Help: "Total blocks handed to CHAIN successfully.",
		}),
		TxAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "p2p_tx_accepted_total",
			Help: "Total transactions admitted to MEMPOOL.",
		}),
		BansIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "p2p_bans_issued_total",
			Help: "Total peers closed and banned for reaching MaxBanScore.",
		}),
		DialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "p2p_dial_failures_total",
			Help: "Total outbound dial attempts that failed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PeersConnected, m.PeersOutbound, m.HeadersAccepted,
			m.BlocksAccepted, m.TxAccepted, m.BansIssued, m.DialFailures)
	}
	return m
}
