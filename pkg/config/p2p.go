package config

import "time"

// P2P holds the dial/listen/handshake knobs POOL is built from.
type P2P struct {
	// ListenAddr is the address POOL accepts inbound connections on, empty
	// to disable listening (outbound-only).
	ListenAddr string `yaml:"ListenAddr"`
	// MaxOutbound/MaxInbound bound concurrent peers in each direction.
	MaxOutbound int `yaml:"MaxOutbound"`
	MaxInbound  int `yaml:"MaxInbound"`
	// DialTimeout is decoded but not passed to POOL; outbound dials use a
	// fixed 5-second timeout.
	DialTimeout time.Duration `yaml:"DialTimeout"`
	// PingInterval/PingTimeout are decoded but not read by POOL or PEER:
	// the node answers pings and sends none of its own.
	PingInterval time.Duration `yaml:"PingInterval"`
	PingTimeout  time.Duration `yaml:"PingTimeout"`
	// UserAgent is decoded but not read: the "/name:version/" string
	// advertised in the version message is built from
	// protocol.UserAgentPrefix and the build version.
	UserAgent string `yaml:"UserAgent"`
	// Relay advertises the relay bit in the version message.
	Relay bool `yaml:"Relay"`
	// BIP37Enabled/BIP152Enabled gate bloom-filter and compact-block
	// support respectively.
	BIP37Enabled  bool `yaml:"BIP37Enabled"`
	BIP152Enabled bool `yaml:"BIP152Enabled"`
	// DNSSeeds, when non-empty, overrides the network's built-in seed
	// hostnames for initial address discovery.
	DNSSeeds []string `yaml:"DNSSeeds"`
}

// Validate returns an error if the P2P configuration is inconsistent.
func (p P2P) Validate() error {
	if p.MaxOutbound < 0 || p.MaxInbound < 0 {
		return errNegativePeerCount
	}
	return nil
}
