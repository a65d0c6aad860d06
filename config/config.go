package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the marketd runtime settings.
type Config struct {
	RPCAddress        string   `toml:"RPCAddress"`
	DataDir           string   `toml:"DataDir"`
	Env               string   `toml:"Env"`
	AdminAddresses    []string `toml:"AdminAddresses"`
	FeeTreasury       string   `toml:"FeeTreasury"`
	RoyaltyFeePercent uint32   `toml:"RoyaltyFeePercent"`
	PauseMarket       bool     `toml:"PauseMarket"`
}

const defaultConfigBody = `RPCAddress = "127.0.0.1:8645"
DataDir = "./marketdata"
Env = "local"
AdminAddresses = []
FeeTreasury = ""
RoyaltyFeePercent = 0
PauseMarket = false
`

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(path, []byte(defaultConfigBody), 0o600); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if _, err := toml.Decode(defaultConfigBody, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot start with.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress required")
	}
	if c.RoyaltyFeePercent > 100 {
		return fmt.Errorf("config: RoyaltyFeePercent must not exceed 100 (got %d)", c.RoyaltyFeePercent)
	}
	for _, raw := range c.AdminAddresses {
		if err := checkAddress(raw); err != nil {
			return fmt.Errorf("config: admin address %q: %w", raw, err)
		}
	}
	if strings.TrimSpace(c.FeeTreasury) != "" {
		if err := checkAddress(c.FeeTreasury); err != nil {
			return fmt.Errorf("config: fee treasury %q: %w", c.FeeTreasury, err)
		}
	}
	return nil
}

func checkAddress(raw string) error {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if len(trimmed) != 40 {
		return fmt.Errorf("must be 20 bytes of hex")
	}
	for _, r := range trimmed {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return fmt.Errorf("invalid hex character %q", r)
		}
	}
	return nil
}
