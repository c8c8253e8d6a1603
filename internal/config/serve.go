package config

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ServeConfig holds configuration for the serve command.
type ServeConfig struct {
	Chain           ChainConfig
	Registry        RegistryConfig
	Padding         PaddingConfig
	Listen          string
	Concurrency     int
	ShutdownTimeout time.Duration
	LogLevel        string
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		setPaddingDefaults(v)
		v.SetDefault("listen", ":8080")
		v.SetDefault("concurrency", 8)
		v.SetDefault("shutdown-timeout", 10*time.Second)
	})
	if err != nil {
		return ServeConfig{}, err
	}

	padding, err := paddingConfig(v)
	if err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		Chain:           chainConfig(v),
		Registry:        registryConfig(v),
		Padding:         padding,
		Listen:          v.GetString("listen"),
		Concurrency:     v.GetInt("concurrency"),
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
		LogLevel:        v.GetString("log-level"),
	}
	return cfg, nil
}
