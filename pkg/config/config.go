// Package config loads the node's yaml configuration: which network to
// join, POOL's dial/listen tunables, logger settings and on-disk paths for
// the header/body stores. Grounded on the embedded-per-network-yaml and
// KnownFields-strict decode idiom, adapted onto this node's own P2P/Logger
// shape since the richer consensus/oracle/RPC sections have no equivalent
// here.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/makonode/p2p/pkg/wire/protocol"
)

var errNegativePeerCount = errors.New("config: MaxOutbound/MaxInbound must not be negative")

// Config is the top-level node configuration.
type Config struct {
	// Network selects which built-in profile (mainnet/testnet/regtest)
	// supplies chaincfg.Params; P2P below only overrides its dial/listen
	// knobs.
	Network string `yaml:"Network"`
	// DataDir holds the header/body store files and the address manager's
	// database.
	DataDir string `yaml:"DataDir"`
	// MetricsListenAddr, if set, serves Prometheus metrics over HTTP.
	MetricsListenAddr string `yaml:"MetricsListenAddr"`

	P2P    P2P    `yaml:"P2P"`
	Logger Logger `yaml:"Logger"`
}

// DefaultConfig returns the baseline tunables applied before a yaml file is
// decoded on top of them.
func DefaultConfig() Config {
	return Config{
		Network: "mainnet",
		DataDir: "./data",
		P2P: P2P{
			ListenAddr:   ":8333",
			MaxOutbound:  8,
			MaxInbound:   117,
			DialTimeout:  10 * time.Second,
			PingInterval: 2 * time.Minute,
			PingTimeout:  30 * time.Second,
			UserAgent:    "makonode",
			Relay:        true,
		},
	}
}

// Magic resolves Network to its wire protocol magic.
func (c Config) Magic() (protocol.Magic, error) {
	switch c.Network {
	case "", "mainnet":
		return protocol.MainNet, nil
	case "testnet":
		return protocol.TestNet, nil
	case "regtest":
		return protocol.RegTest, nil
	default:
		return 0, fmt.Errorf("config: unknown network %q", c.Network)
	}
}

// Validate reports whether the decoded configuration is internally
// consistent.
func (c Config) Validate() error {
	if _, err := c.Magic(); err != nil {
		return err
	}
	if err := c.P2P.Validate(); err != nil {
		return err
	}
	return c.Logger.Validate()
}

// Load reads configPath when one is given (a missing file is an error),
// otherwise uses the embedded default profile for netName
// (mainnet/testnet/regtest), decodes it on top of DefaultConfig, and
// validates the result.
func Load(configPath, netName string) (Config, error) {
	var (
		data []byte
		err  error
	)
	if configPath != "" {
		data, err = os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	} else {
		data, err = embeddedConfig(netName)
		if err != nil {
			return Config{}, err
		}
	}

	cfg := DefaultConfig()
	cfg.Network = netName
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func embeddedConfig(netName string) ([]byte, error) {
	switch netName {
	case "", "mainnet":
		return mainnetYAML, nil
	case "testnet":
		return testnetYAML, nil
	case "regtest":
		return regtestYAML, nil
	default:
		return nil, fmt.Errorf("config: no embedded profile for network %q", netName)
	}
}
