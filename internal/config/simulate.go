package config

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"poolScope/internal/txsim"
)

// PaddingConfig is the configurable margin added to simulated transactions.
type PaddingConfig struct {
	ReadBytes   uint32
	WriteBytes  uint32
	ResourceFee uint32
	Fee         uint32
}

// Padding converts the config into the pipeline's padding policy.
func (c PaddingConfig) Padding() txsim.Padding {
	return txsim.Padding{
		ReadBytes:   c.ReadBytes,
		WriteBytes:  c.WriteBytes,
		ResourceFee: c.ResourceFee,
		Fee:         c.Fee,
	}
}

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Chain    ChainConfig
	Padding  PaddingConfig
	Action   string
	Contract string
	From     string
	Amount   string
	Period   int32
	LogLevel string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, setPaddingDefaults)
	if err != nil {
		return SimulateConfig{}, err
	}

	padding, err := paddingConfig(v)
	if err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		Chain:    chainConfig(v),
		Padding:  padding,
		Action:   v.GetString("action"),
		Contract: v.GetString("contract"),
		From:     v.GetString("from"),
		Amount:   v.GetString("amount"),
		Period:   v.GetInt32("period"),
		LogLevel: v.GetString("log-level"),
	}
	return cfg, nil
}

// Request builds the simulation request described by the command flags.
// Amount and Period are only read for actions that take them.
func (c SimulateConfig) Request() (txsim.Request, error) {
	kind, err := txsim.ParseKind(c.Action)
	if err != nil {
		return txsim.Request{}, err
	}
	req := txsim.Request{
		Kind:     kind,
		Contract: strings.TrimSpace(c.Contract),
		From:     strings.TrimSpace(c.From),
	}
	switch kind {
	case txsim.KindDeposit, txsim.KindSubscribe:
		amount, ok := new(big.Int).SetString(strings.TrimSpace(c.Amount), 10)
		if !ok {
			return txsim.Request{}, fmt.Errorf("%w: amount %q is not an integer", txsim.ErrInvalidRequest, c.Amount)
		}
		req.Amount = amount
	case txsim.KindUpdateFeeRewards, txsim.KindWithdrawMatured, txsim.KindWithdraw:
		req.Period = c.Period
	}
	return req, nil
}

func setPaddingDefaults(v *viper.Viper) {
	def := txsim.DefaultPadding()
	v.SetDefault("pad-read-bytes", def.ReadBytes)
	v.SetDefault("pad-write-bytes", def.WriteBytes)
	v.SetDefault("pad-resource-fee", def.ResourceFee)
	v.SetDefault("pad-fee", def.Fee)
}

func paddingConfig(v *viper.Viper) (PaddingConfig, error) {
	var (
		cfg PaddingConfig
		err error
	)
	if cfg.ReadBytes, err = paddingValue(v, "pad-read-bytes"); err != nil {
		return PaddingConfig{}, err
	}
	if cfg.WriteBytes, err = paddingValue(v, "pad-write-bytes"); err != nil {
		return PaddingConfig{}, err
	}
	if cfg.ResourceFee, err = paddingValue(v, "pad-resource-fee"); err != nil {
		return PaddingConfig{}, err
	}
	if cfg.Fee, err = paddingValue(v, "pad-fee"); err != nil {
		return PaddingConfig{}, err
	}
	return cfg, nil
}

// paddingValue reads a margin that must fit in uint32. A negative margin
// would shrink the simulated budget, so it is rejected.
func paddingValue(v *viper.Viper, key string) (uint32, error) {
	raw := v.GetString(key)
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	if n < 0 || n > math.MaxUint32 {
		return 0, fmt.Errorf("%s must be between 0 and %d, got %d", key, uint32(math.MaxUint32), n)
	}
	return uint32(n), nil
}
