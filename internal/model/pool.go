package model

import "math/big"

// PoolConfig is the decoded instance configuration of a pool contract.
type PoolConfig struct {
	TokenID       string
	GenesisPeriod int64
	Periods       int64
	Oracle        string
	Symbol        string
	External      bool
	OracleAsset   string
	Volatility    *big.Int
	Admin         string
	Multiplier    int64
}

// PeriodAggregate holds the per-period counters of a pool.
type PeriodAggregate struct {
	Period         int64
	TotalSupply    *big.Int
	TotalLiquidity *big.Int
	GlobalRefund   *big.Int
}

// NewPeriodAggregate returns zeroed counters for period.
func NewPeriodAggregate(period int64) PeriodAggregate {
	return PeriodAggregate{
		Period:         period,
		TotalSupply:    big.NewInt(0),
		TotalLiquidity: big.NewInt(0),
		GlobalRefund:   big.NewInt(0),
	}
}

// PoolSummary is the externally reported view of one pool.
type PoolSummary struct {
	Address       string `json:"address"`
	TokenID       string `json:"token_id"`
	GenesisPeriod int64  `json:"genesis_period"`
	Periods       int64  `json:"periods"`
	Oracle        string `json:"oracle"`
	Symbol        string `json:"symbol"`
	External      bool   `json:"external"`
	OracleAsset   string `json:"oracle_asset"`
	Volatility    string `json:"volatility"`
	Admin         string `json:"admin"`
	Multiplier    int64  `json:"multiplier"`
	Period        int64  `json:"period"`
	TotLiquidity  string `json:"tot_liquidity"`
	TotSupply     string `json:"tot_supply"`
	RefundGlobal  string `json:"refund_global"`
}

// NewPoolSummary combines config and counters for address.
func NewPoolSummary(address string, cfg PoolConfig, agg PeriodAggregate) PoolSummary {
	return PoolSummary{
		Address:       address,
		TokenID:       cfg.TokenID,
		GenesisPeriod: cfg.GenesisPeriod,
		Periods:       cfg.Periods,
		Oracle:        cfg.Oracle,
		Symbol:        cfg.Symbol,
		External:      cfg.External,
		OracleAsset:   cfg.OracleAsset,
		Volatility:    intString(cfg.Volatility),
		Admin:         cfg.Admin,
		Multiplier:    cfg.Multiplier,
		Period:        agg.Period,
		TotLiquidity:  intString(agg.TotalLiquidity),
		TotSupply:     intString(agg.TotalSupply),
		RefundGlobal:  intString(agg.GlobalRefund),
	}
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
