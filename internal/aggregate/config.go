package aggregate

import (
	"fmt"

	"github.com/stellar/go/xdr"

	"poolScope/internal/model"
	"poolScope/internal/scval"
)

// Instance storage keys of a pool contract.
var (
	KeyTokenID       = scval.EnumKey("TokenId")
	KeyGenesisPeriod = scval.EnumKey("GenesisPeriod")
	KeyPeriods       = scval.EnumKey("Periods")
	KeyOracle        = scval.EnumKey("Oracle")
	KeySymbol        = scval.EnumKey("Symbol")
	KeyExternal      = scval.EnumKey("External")
	KeyOracleAsset   = scval.EnumKey("OracleAsset")
	KeyVolatility    = scval.EnumKey("Volatility")
	KeyAdmin         = scval.EnumKey("Admin")
	KeyMultiplier    = scval.EnumKey("Multiplier")
)

// DecodePoolConfig reads the ten configuration fields from instance storage.
// Any missing or mistyped field fails the whole config.
func DecodePoolConfig(s scval.Snapshot) (model.PoolConfig, error) {
	var (
		cfg model.PoolConfig
		err error
	)
	if cfg.TokenID, err = scval.Lookup(s, KeyTokenID, scval.DecodeString); err != nil {
		return model.PoolConfig{}, err
	}
	if cfg.GenesisPeriod, err = scval.Lookup(s, KeyGenesisPeriod, scval.DecodeInt64); err != nil {
		return model.PoolConfig{}, err
	}
	if cfg.Periods, err = scval.Lookup(s, KeyPeriods, scval.DecodeInt64); err != nil {
		return model.PoolConfig{}, err
	}
	if cfg.Oracle, err = scval.Lookup(s, KeyOracle, scval.DecodeString); err != nil {
		return model.PoolConfig{}, err
	}
	if cfg.Symbol, err = scval.Lookup(s, KeySymbol, scval.DecodeString); err != nil {
		return model.PoolConfig{}, err
	}
	if cfg.External, err = scval.Lookup(s, KeyExternal, scval.DecodeBool); err != nil {
		return model.PoolConfig{}, err
	}
	if cfg.OracleAsset, err = scval.Lookup(s, KeyOracleAsset, decodeAssetID); err != nil {
		return model.PoolConfig{}, err
	}
	if cfg.Volatility, err = scval.Lookup(s, KeyVolatility, scval.DecodeBigInt); err != nil {
		return model.PoolConfig{}, err
	}
	if cfg.Admin, err = scval.Lookup(s, KeyAdmin, scval.DecodeString); err != nil {
		return model.PoolConfig{}, err
	}
	if cfg.Multiplier, err = scval.Lookup(s, KeyMultiplier, scval.DecodeInt64); err != nil {
		return model.PoolConfig{}, err
	}
	return cfg, nil
}

// decodeAssetID accepts a plain string-like value or a single-field asset
// variant such as Stellar(address) or Other(symbol).
func decodeAssetID(v xdr.ScVal) (string, error) {
	if out, err := scval.DecodeString(v); err == nil {
		return out, nil
	}
	if _, fields, ok := scval.MatchEnum(v); ok && len(fields) == 1 {
		return scval.DecodeString(fields[0])
	}
	return "", fmt.Errorf("%w: want asset id, got %s", scval.ErrDecodeMismatch, v.Type.String())
}
