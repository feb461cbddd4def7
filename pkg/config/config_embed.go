package config

import _ "embed"

//go:embed mainnet.yml
var mainnetYAML []byte

//go:embed testnet.yml
var testnetYAML []byte

//go:embed regtest.yml
var regtestYAML []byte
