package period

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrInvalidLength is returned when the period length is not positive.
var ErrInvalidLength = errors.New("period length must be positive")

// Index maps a ledger position to a 1-based period index.
//
// The result is ceil((current-genesis)/length). A zero result (no time elapsed
// since genesis) is reported as period 1.
func Index(current, genesis, length int64) (int64, error) {
	if length <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}

	diff := new(big.Int).Sub(big.NewInt(current), big.NewInt(genesis))
	div := ceilDiv(diff, big.NewInt(length))
	if div.Sign() == 0 {
		return 1, nil
	}
	if !div.IsInt64() {
		return 0, fmt.Errorf("period index overflows int64: %s", div.String())
	}
	return div.Int64(), nil
}

// Current computes the period for the latest ledger sequence.
func Current(ledgerSeq uint32, genesis, length int64) (int64, error) {
	return Index(int64(ledgerSeq), genesis, length)
}

// ceilDiv rounds toward positive infinity; d must be positive.
func ceilDiv(n, d *big.Int) *big.Int {
	q, m := new(big.Int).DivMod(n, d, new(big.Int))
	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
