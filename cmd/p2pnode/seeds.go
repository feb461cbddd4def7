package main

import (
	"net"
	"strconv"

	"go.uber.org/zap"

	"github.com/makonode/p2p/pkg/pool"
)

// dialSeed resolves a DNS seed hostname and hands every returned address to
// POOL as an outbound dial candidate, the bootstrap path used before
// ADDRMGR has accumulated any addresses of its own.
func dialSeed(p *pool.Pool, host string, defaultPort uint16, log *zap.Logger) {
	ips, err := net.LookupHost(host)
	if err != nil {
		log.Warn("dns seed lookup failed", zap.String("seed", host), zap.Error(err))
		return
	}
	port := strconv.Itoa(int(defaultPort))
	for _, ip := range ips {
		addr := net.JoinHostPort(ip, port)
		if err := p.Connect(addr); err != nil {
			log.Debug("seed dial failed", zap.String("addr", addr), zap.Error(err))
		}
	}
}
