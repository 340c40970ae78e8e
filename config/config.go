// Package config loads the engine configuration from TOML.
package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// AdapterConfig declares one whitelisted adapter and its protocol fee.
type AdapterConfig struct {
	Name    string `toml:"Name"`
	Address string `toml:"Address"`
	FeeBps  uint64 `toml:"FeeBps"`
}

// QuotaConfig bounds per-buyer usage per epoch. Zero values disable a limit.
type QuotaConfig struct {
	MaxSettlementsPerEpoch uint32 `toml:"MaxSettlementsPerEpoch"`
	MaxBorrowWeiPerEpoch   string `toml:"MaxBorrowWeiPerEpoch"`
	EpochSeconds           uint32 `toml:"EpochSeconds"`
}

// Config is the engine configuration.
type Config struct {
	ChainID       uint64          `toml:"ChainID"`
	DataDir       string          `toml:"DataDir"`
	Engine        string          `toml:"Engine"`
	Governance    string          `toml:"Governance"`
	FeeCollector  string          `toml:"FeeCollector"`
	WrappedNative string          `toml:"WrappedNative"`
	Adapters      []AdapterConfig `toml:"Adapters"`
	Quota         QuotaConfig     `toml:"Quota"`
}

const maxFeeBps = 10_000

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./downpay-data"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks address shapes and fee bounds.
func (c *Config) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("config: ChainID must be set")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"Engine", c.Engine},
		{"Governance", c.Governance},
		{"FeeCollector", c.FeeCollector},
		{"WrappedNative", c.WrappedNative},
	} {
		if _, err := parseAddress(field.value); err != nil {
			return fmt.Errorf("config: %s: %w", field.name, err)
		}
	}
	seen := make(map[string]struct{}, len(c.Adapters))
	for i, a := range c.Adapters {
		addr, err := parseAddress(a.Address)
		if err != nil {
			return fmt.Errorf("config: Adapters[%d]: %w", i, err)
		}
		if _, dup := seen[addr.Hex()]; dup {
			return fmt.Errorf("config: Adapters[%d]: duplicate address %s", i, addr.Hex())
		}
		seen[addr.Hex()] = struct{}{}
		if a.FeeBps > maxFeeBps {
			return fmt.Errorf("config: Adapters[%d]: FeeBps %d exceeds %d", i, a.FeeBps, maxFeeBps)
		}
	}
	if c.Quota.MaxBorrowWeiPerEpoch != "" {
		if _, ok := new(big.Int).SetString(c.Quota.MaxBorrowWeiPerEpoch, 10); !ok {
			return fmt.Errorf("config: Quota.MaxBorrowWeiPerEpoch is not a decimal integer")
		}
	}
	return nil
}

// EngineAddress returns the parsed settlement address.
func (c *Config) EngineAddress() common.Address { return common.HexToAddress(c.Engine) }

// GovernanceAddress returns the parsed governance address.
func (c *Config) GovernanceAddress() common.Address { return common.HexToAddress(c.Governance) }

// FeeCollectorAddress returns the parsed collector address.
func (c *Config) FeeCollectorAddress() common.Address { return common.HexToAddress(c.FeeCollector) }

// WrappedNativeAddress returns the parsed wrapped-native token address.
func (c *Config) WrappedNativeAddress() common.Address { return common.HexToAddress(c.WrappedNative) }

// BorrowCap returns the parsed per-epoch borrow cap, nil when unset.
func (c *Config) BorrowCap() *big.Int {
	if c.Quota.MaxBorrowWeiPerEpoch == "" {
		return nil
	}
	limit, ok := new(big.Int).SetString(c.Quota.MaxBorrowWeiPerEpoch, 10)
	if !ok {
		return nil
	}
	return limit
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("address must not be zero")
	}
	return addr, nil
}
