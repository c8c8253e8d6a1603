package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// PoolsConfig holds configuration for the pools command.
type PoolsConfig struct {
	Chain       ChainConfig
	Registry    RegistryConfig
	Concurrency int
	Out         string
	Errors      string
	LogLevel    string
}

// LoadPools merges config file, environment variables, and flags into PoolsConfig.
func LoadPools(cfgFile string, flags *pflag.FlagSet) (PoolsConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("concurrency", 8)
		v.SetDefault("out", "")
		v.SetDefault("errors", "./data/pool_failures.jsonl")
	})
	if err != nil {
		return PoolsConfig{}, err
	}

	cfg := PoolsConfig{
		Chain:       chainConfig(v),
		Registry:    registryConfig(v),
		Concurrency: v.GetInt("concurrency"),
		Out:         v.GetString("out"),
		Errors:      v.GetString("errors"),
		LogLevel:    v.GetString("log-level"),
	}
	return cfg, nil
}
