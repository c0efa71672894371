// Package config loads the node configuration from a TOML file with sane
// defaults for local development.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	// Home is the app home directory; ledger state lives under <home>/app.
	Home string `toml:"home"`

	ABCI    ABCIConfig    `toml:"abci"`
	Gateway GatewayConfig `toml:"gateway"`

	// Verbose enables debug-level logging.
	Verbose bool `toml:"verbose"`
}

type ABCIConfig struct {
	// ListenAddr is the address the consensus engine dials, e.g.
	// "tcp://127.0.0.1:26658" or "unix://lottery.sock".
	ListenAddr string `toml:"listen_addr"`

	// Transport is "socket" or "grpc".
	Transport string `toml:"transport"`
}

type GatewayConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

func Default() Config {
	return Config{
		Home: ".lotteryd",
		ABCI: ABCIConfig{
			ListenAddr: "tcp://127.0.0.1:26658",
			Transport:  "socket",
		},
		Gateway: GatewayConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:8080",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error: the
// defaults are returned as-is so the daemon runs without any config.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Home == "" {
		return fmt.Errorf("home must not be empty")
	}
	if c.ABCI.ListenAddr == "" {
		return fmt.Errorf("abci.listen_addr must not be empty")
	}
	switch c.ABCI.Transport {
	case "socket", "grpc":
	default:
		return fmt.Errorf("abci.transport must be socket or grpc, got %q", c.ABCI.Transport)
	}
	if c.Gateway.Enabled && c.Gateway.ListenAddr == "" {
		return fmt.Errorf("gateway.listen_addr must not be empty when the gateway is enabled")
	}
	return nil
}
