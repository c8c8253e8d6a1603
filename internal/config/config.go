package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultFactory is the pool factory contract watched when none is configured.
const DefaultFactory = "CAYRXB3BP4VPUTH6NFAI543HOVOD6AVN4KKASSIR3GALG23EV5DQT5G5"

// Registry backends.
const (
	BackendMemory   = "memory"
	BackendJsonl    = "jsonl"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// ChainConfig configures the stellar-rpc client.
type ChainConfig struct {
	RPCURL            string
	NetworkPassphrase string
	BaseFee           uint32
	Timeout           time.Duration
}

// RegistryConfig selects where discovered pools are stored.
type RegistryConfig struct {
	Backend string
	Path    string
	PGDSN   string
}

// Validate checks that the selected backend has what it needs.
func (c RegistryConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendJsonl, BackendBolt:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("registry-path is required for %s registry", c.Backend)
		}
		return nil
	case BackendPostgres:
		if strings.TrimSpace(c.PGDSN) == "" {
			return fmt.Errorf("pg-dsn is required for postgres registry")
		}
		return nil
	default:
		return fmt.Errorf("unknown registry backend %q", c.Backend)
	}
}

// WatchConfig holds configuration for the watch command.
type WatchConfig struct {
	Chain             ChainConfig
	Registry          RegistryConfig
	Factories         []string
	FromLedger        uint32
	ToLedger          uint32
	Follow            bool
	PollInterval      time.Duration
	BatchSize         uint32
	PageLimit         uint
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	MetricsListen     string
	LogLevel          string
}

// Load merges config file, environment variables, and flags into WatchConfig.
func Load(cfgFile string, flags *pflag.FlagSet) (WatchConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("factory", []string{DefaultFactory})
		v.SetDefault("batch-size", uint32(2000))
		v.SetDefault("page-limit", uint(1000))
		v.SetDefault("follow", false)
		v.SetDefault("poll-interval", 5*time.Second)
		v.SetDefault("checkpoint", "./data/checkpoint.json")
		v.SetDefault("checkpoint-enabled", true)
		v.SetDefault("max-retries", 5)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
	})
	if err != nil {
		return WatchConfig{}, err
	}

	cfg := WatchConfig{
		Chain:             chainConfig(v),
		Registry:          registryConfig(v),
		Factories:         getStringSlice(v, "factory"),
		FromLedger:        v.GetUint32("from-ledger"),
		ToLedger:          v.GetUint32("to-ledger"),
		Follow:            v.GetBool("follow"),
		PollInterval:      v.GetDuration("poll-interval"),
		BatchSize:         v.GetUint32("batch-size"),
		PageLimit:         v.GetUint("page-limit"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		MetricsListen:     v.GetString("metrics-listen"),
		LogLevel:          v.GetString("log-level"),
	}
	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(v *viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("registry-backend", BackendJsonl)
	v.SetDefault("registry-path", "./data/pools.jsonl")
	v.SetDefault("base-fee", uint32(100))
	v.SetDefault("rpc-timeout", 30*time.Second)
	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func chainConfig(v *viper.Viper) ChainConfig {
	return ChainConfig{
		RPCURL:            v.GetString("rpc"),
		NetworkPassphrase: v.GetString("network-passphrase"),
		BaseFee:           v.GetUint32("base-fee"),
		Timeout:           v.GetDuration("rpc-timeout"),
	}
}

func registryConfig(v *viper.Viper) RegistryConfig {
	return RegistryConfig{
		Backend: strings.ToLower(strings.TrimSpace(v.GetString("registry-backend"))),
		Path:    v.GetString("registry-path"),
		PGDSN:   v.GetString("pg-dsn"),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
