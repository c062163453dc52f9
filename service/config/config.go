// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"time"

	"github.com/luxfi/geth/common"
)

const (
	defaultLogLevel = "info"
	defaultAPIPort  = uint16(8080)
	defaultStoreDir = "tallydb"
	defaultCooldown = time.Minute
)

// Config is the tallyd service configuration
type Config struct {
	LogLevel  string        `mapstructure:"log-level" json:"log-level"`
	APIPort   uint16        `mapstructure:"api-port" json:"api-port"`
	StoreDir  string        `mapstructure:"store-dir" json:"store-dir"`
	Owner     string        `mapstructure:"owner" json:"owner"`
	Instance  string        `mapstructure:"instance" json:"instance"`
	Providers []string      `mapstructure:"providers" json:"providers"`
	Cooldown  time.Duration `mapstructure:"cooldown" json:"cooldown"`
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Owner) {
		return fmt.Errorf("invalid owner address %q", c.Owner)
	}
	if !common.IsHexAddress(c.Instance) {
		return fmt.Errorf("invalid instance address %q", c.Instance)
	}
	for _, p := range c.Providers {
		if !common.IsHexAddress(p) {
			return fmt.Errorf("invalid provider address %q", p)
		}
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("cooldown must be positive, got %s", c.Cooldown)
	}
	return nil
}

// OwnerAddress returns the parsed owner identity
func (c *Config) OwnerAddress() common.Address {
	return common.HexToAddress(c.Owner)
}

// InstanceAddress returns the parsed protocol instance identity
func (c *Config) InstanceAddress() common.Address {
	return common.HexToAddress(c.Instance)
}

// ProviderAddresses returns the parsed provider allow-list
func (c *Config) ProviderAddresses() []common.Address {
	out := make([]common.Address, len(c.Providers))
	for i, p := range c.Providers {
		out[i] = common.HexToAddress(p)
	}
	return out
}
