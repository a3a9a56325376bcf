// Package config provides configuration management for cswallet.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Home       string           `yaml:"home"`
	Network    NetworkConfig    `yaml:"network"`
	Indexer    IndexerConfig    `yaml:"indexer"`
	Platform   PlatformConfig   `yaml:"platform"`
	Fees       FeesConfig       `yaml:"fees"`
	ServiceFee ServiceFeeConfig `yaml:"service_fee"`
	Storage    StorageConfig    `yaml:"storage"`
	Wallet     WalletConfig     `yaml:"wallet"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// NetworkConfig selects the coin and its derivation paths.
type NetworkConfig struct {
	Chain   string `yaml:"chain"`
	Regtest bool   `yaml:"regtest"`
	// Paths overrides account paths by setting key (bip44, bip49, bip84).
	Paths map[string]string `yaml:"paths,omitempty"`
}

// IndexerConfig defines the node API client.
type IndexerConfig struct {
	URL               string  `yaml:"url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	Retries           int     `yaml:"retries"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
}

// PlatformConfig defines the fee, price and service fee API.
type PlatformConfig struct {
	URL      string `yaml:"url"`
	Currency string `yaml:"currency"`
}

// FeesConfig defines miner fee rates. With source "static" the rates are
// taken from Rates instead of the platform.
type FeesConfig struct {
	Source  string            `yaml:"source"`
	Default string            `yaml:"default"`
	Rates   map[string]uint64 `yaml:"rates,omitempty"`
}

// ServiceFeeConfig defines the service fee schedule. With source "static"
// the schedule and price below are used; "off" disables the fee.
type ServiceFeeConfig struct {
	Source      string `yaml:"source"`
	Address     string `yaml:"address,omitempty"`
	Rate        string `yaml:"rate,omitempty"`
	MinFee      string `yaml:"min_fee,omitempty"`
	MaxFee      string `yaml:"max_fee,omitempty"`
	FeeAddition uint64 `yaml:"fee_addition,omitempty"`
	Price       string `yaml:"price,omitempty"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
}

// WalletConfig defines wallet behavior.
type WalletConfig struct {
	AddressType string `yaml:"address_type,omitempty"`
	TxPerPage   int    `yaml:"tx_per_page"`
	MaxInputs   int    `yaml:"max_inputs"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file on top of Defaults.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, walleterr.WithDetails(walleterr.ErrConfigInvalid, map[string]string{
			"path":  path,
			"error": err.Error(),
		})
	}
	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// DefaultHome returns the default cswallet home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cswallet"
	}
	return filepath.Join(home, ".cswallet")
}

// ExpandPath replaces a leading "~/" with the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, p[2:]), nil
}

// ChainNetwork resolves the configured coin.
func (c *Config) ChainNetwork() (*btc.Network, error) {
	id, ok := chain.ParseChainID(c.Network.Chain)
	if !ok {
		return nil, walleterr.WithDetails(walleterr.ErrUnsupportedNetwork, map[string]string{"chain": c.Network.Chain})
	}
	return btc.LookupNetwork(id, c.Network.Regtest)
}

// AddressType returns the configured address type, or the network default.
func (c *Config) AddressType(net *btc.Network) (btc.AddressType, error) {
	if c.Wallet.AddressType == "" {
		return net.DefaultAddressType(), nil
	}
	t, err := btc.ParseAddressType(c.Wallet.AddressType)
	if err != nil {
		return btc.AddressUnknown, err
	}
	if !net.Supports(t) {
		return btc.AddressUnknown, walleterr.WithDetails(walleterr.ErrConfigInvalid, map[string]string{
			"address_type": t.String(),
			"network":      net.Name(),
		})
	}
	return t, nil
}

// WalletDir returns the directory holding one wallet's files.
func (c *Config) WalletDir() (string, error) {
	home, err := ExpandPath(c.Home)
	if err != nil {
		return "", err
	}
	name := c.Network.Chain
	if c.Network.Regtest {
		name += "-regtest"
	}
	return filepath.Join(home, "wallets", name), nil
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	invalid := func(field, value string) error {
		return walleterr.WithDetails(walleterr.ErrConfigInvalid, map[string]string{field: value})
	}

	net, err := c.ChainNetwork()
	if err != nil {
		return err
	}
	if _, err := c.AddressType(net); err != nil {
		return err
	}
	for key := range c.Network.Paths {
		switch key {
		case "bip44", "bip49", "bip84":
		default:
			return invalid("network.paths", key)
		}
	}
	for field, raw := range map[string]string{"indexer.url": c.Indexer.URL, "platform.url": c.Platform.URL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid(field, raw)
		}
	}
	switch c.Fees.Source {
	case "platform":
	case "static":
		if len(c.Fees.Rates) == 0 {
			return invalid("fees.rates", "empty")
		}
	default:
		return invalid("fees.source", c.Fees.Source)
	}
	switch c.ServiceFee.Source {
	case "platform", "off", "static":
	default:
		return invalid("service_fee.source", c.ServiceFee.Source)
	}
	switch c.Storage.Backend {
	case "file", "badger":
	default:
		return invalid("storage.backend", c.Storage.Backend)
	}
	if c.Wallet.TxPerPage <= 0 {
		return invalid("wallet.tx_per_page", fmt.Sprint(c.Wallet.TxPerPage))
	}
	if c.Wallet.MaxInputs <= 0 {
		return invalid("wallet.max_inputs", fmt.Sprint(c.Wallet.MaxInputs))
	}
	switch c.Output.DefaultFormat {
	case "auto", "text", "json":
	default:
		return invalid("output.default_format", c.Output.DefaultFormat)
	}
	return nil
}
