// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const usageHeader = `Usage: tallyd [options]

Options may also be set in a JSON config file passed with --config-file, or
via environment variables named after the capitalized option with hyphens
replaced by underscores.

`

// DisplayUsageText prints the flag usage to stdout
func DisplayUsageText() {
	fmt.Print(usageHeader)
	BuildFlagSet().PrintDefaults()
}

// BuildFlagSet returns the command line flags understood by tallyd
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("tallyd", pflag.ContinueOnError)
	fs.String(ConfigFileKey, "", "Path to the JSON configuration file")
	fs.String(LogLevelKey, defaultLogLevel, "Log level")
	fs.Uint16(APIPortKey, defaultAPIPort, "Port for the HTTP API")
	fs.String(StoreDirKey, defaultStoreDir, "Directory for the persistent state store")
	fs.String(OwnerKey, "", "Hex address of the protocol owner")
	fs.String(InstanceKey, "", "Hex address identifying this protocol instance")
	fs.StringSlice(ProvidersKey, nil, "Hex addresses of authorized providers")
	fs.Duration(CooldownKey, defaultCooldown, "Minimum interval between submissions per provider")
	fs.BoolP(VersionKey, "", false, "Print the version and exit")
	fs.BoolP(HelpKey, "h", false, "Print usage and exit")
	return fs
}

// BuildViper returns the viper environment from the command line flags and,
// if provided, the configuration file. Flag values take precedence over the
// file, which takes precedence over the defaults.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	// Map flag names to env var names. Flags are capitalized, and hyphens
	// are replaced with underscores.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetTypeByDefaultValue(true)
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if v.IsSet(ConfigFileKey) {
		filename := v.GetString(ConfigFileKey)
		v.SetConfigFile(filename)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", filename, err)
		}
	}

	return v, nil
}

// NewConfig unmarshals and validates the configuration from the viper
// environment
func NewConfig(v *viper.Viper) (Config, error) {
	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
