package aggregate

import (
	"fmt"
	"math"
	"math/big"

	"github.com/stellar/go/xdr"

	"poolScope/internal/model"
	"poolScope/internal/scval"
)

// Counter is one of the per-period aggregate counters of a pool.
type Counter string

const (
	CounterTotalSupply    Counter = "TotSupply"
	CounterTotalLiquidity Counter = "TotLiquidity"
	CounterGlobalRefund   Counter = "RefundGlobal"
)

var counters = []Counter{CounterTotalSupply, CounterTotalLiquidity, CounterGlobalRefund}

// CounterKey is a decoded persistent storage key of a period counter.
type CounterKey struct {
	Counter Counter
	Period  int64
}

// Key encodes the storage key of counter c for period.
func (c Counter) Key(period int64) (xdr.ScVal, error) {
	if period < math.MinInt32 || period > math.MaxInt32 {
		return xdr.ScVal{}, fmt.Errorf("period %d out of i32 range", period)
	}
	return scval.EnumKey(string(c), scval.I32(int32(period))), nil
}

// CounterKeys returns the storage keys of every counter for period.
func CounterKeys(period int64) ([]xdr.ScVal, error) {
	keys := make([]xdr.ScVal, 0, len(counters))
	for _, c := range counters {
		key, err := c.Key(period)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ParseCounterKey tries to read key as a counter key. It returns ok=false and
// a nil error when key has some other shape, and a non-nil error when key
// names a counter but its period field is malformed.
func ParseCounterKey(key xdr.ScVal) (CounterKey, bool, error) {
	name, fields, ok := scval.MatchEnum(key)
	if !ok {
		return CounterKey{}, false, nil
	}
	counter := Counter(name)
	if counter != CounterTotalSupply && counter != CounterTotalLiquidity && counter != CounterGlobalRefund {
		return CounterKey{}, false, nil
	}
	if len(fields) != 1 {
		return CounterKey{}, false, fmt.Errorf("%w: %s has %d fields", scval.ErrDecodeMismatch, name, len(fields))
	}
	period, err := scval.DecodeInt64(fields[0])
	if err != nil {
		return CounterKey{}, false, fmt.Errorf("%s period: %w", name, err)
	}
	return CounterKey{Counter: counter, Period: period}, true, nil
}

// Accumulator collects the counters of one period from a storage scan.
type Accumulator struct {
	agg model.PeriodAggregate
}

func NewAccumulator(period int64) *Accumulator {
	return &Accumulator{agg: model.NewPeriodAggregate(period)}
}

// Add records the value of a counter entry for the accumulator's period.
// Later entries for the same counter overwrite earlier ones.
func (a *Accumulator) Add(key CounterKey, val xdr.ScVal) (bool, error) {
	if key.Period != a.agg.Period {
		return false, nil
	}
	v, err := scval.DecodeI128(val)
	if err != nil {
		return false, fmt.Errorf("%s(%d): %w", key.Counter, key.Period, err)
	}
	switch key.Counter {
	case CounterTotalSupply:
		a.agg.TotalSupply = v
	case CounterTotalLiquidity:
		a.agg.TotalLiquidity = v
	case CounterGlobalRefund:
		a.agg.GlobalRefund = v
	default:
		return false, nil
	}
	return true, nil
}

// Result returns a copy of the collected counters.
func (a *Accumulator) Result() model.PeriodAggregate {
	return model.PeriodAggregate{
		Period:         a.agg.Period,
		TotalSupply:    new(big.Int).Set(a.agg.TotalSupply),
		TotalLiquidity: new(big.Int).Set(a.agg.TotalLiquidity),
		GlobalRefund:   new(big.Int).Set(a.agg.GlobalRefund),
	}
}
