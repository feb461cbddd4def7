package util

import (
	"fmt"
	"net"
)

// Service is a duplicate-free alias kept local to util so this file has no
// import cycle back onto pkg/wire/protocol; callers convert protocol.Service
// values with uint64(...), since protocol.Service is a distinct named type.
type Service = uint64

// NetAddr is a single network address record as carried in `version` (no
// timestamp) and `addr` (with timestamp) messages. Named Net_addr to
// match the shape ADDRMAN already imports and iterates over.
type Net_addr struct {
	Timestamp uint32
	Services  Service
	IP        [16]byte
	Port      uint16
}

// NewNetAddr builds a Net_addr from a timestamp, a 16-byte IP (v4-mapped
// for IPv4 peers), a port and a service bitfield.
func NewNetAddr(timestamp uint32, ip [16]byte, port uint16, services Service) (*Net_addr, error) {
	return &Net_addr{
		Timestamp: timestamp,
		Services:  services,
		IP:        ip,
		Port:      port,
	}, nil
}

// IPPort returns "ip:port", used as the dedup/lookup key in pkg/addrmgr.
func (n Net_addr) IPPort() string {
	ip := net.IP(n.IP[:])
	return fmt.Sprintf("%s:%d", ip.String(), n.Port)
}

// String implements fmt.Stringer.
func (n Net_addr) String() string { return n.IPPort() }
