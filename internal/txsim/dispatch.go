package txsim

import (
	"fmt"

	"github.com/stellar/go/xdr"

	"poolScope/internal/scval"
)

// Call is one contract invocation handed to the ledger simulator.
type Call struct {
	Signer   string
	Sequence int64
	Contract string
	Method   string
	Args     []xdr.ScVal
}

type argBuilder func(Request) ([]xdr.ScVal, error)

type action struct {
	method string
	args   argBuilder
}

// actions maps each request kind to its contract method and the arguments
// that follow the signer address.
var actions = map[Kind]action{
	KindDeposit:          {method: "deposit", args: amountArg},
	KindUpdateFeeRewards: {method: "update_fee_rewards", args: periodArg},
	KindWithdrawMatured:  {method: "withdraw_matured", args: periodArg},
	KindWithdraw:         {method: "withdraw", args: periodArg},
	KindSubscribe:        {method: "subscribe", args: amountArg},
	KindClaimReward:      {method: "claim_reward", args: noArgs},
}

func amountArg(req Request) ([]xdr.ScVal, error) {
	if req.Amount == nil {
		return nil, fmt.Errorf("%w: %s requires amount", ErrInvalidRequest, req.Kind)
	}
	v, err := scval.I128(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return []xdr.ScVal{v}, nil
}

func periodArg(req Request) ([]xdr.ScVal, error) {
	return []xdr.ScVal{scval.I32(req.Period)}, nil
}

func noArgs(Request) ([]xdr.ScVal, error) {
	return nil, nil
}

// BuildCall resolves req into a contract call for the given sequence.
func BuildCall(req Request, sequence int64) (Call, error) {
	a, ok := actions[req.Kind]
	if !ok {
		return Call{}, fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, req.Kind)
	}
	if _, err := scval.ParseContractID(req.Contract); err != nil {
		return Call{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	signer, err := scval.Address(req.From)
	if err != nil {
		return Call{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	extra, err := a.args(req)
	if err != nil {
		return Call{}, err
	}

	args := make([]xdr.ScVal, 0, len(extra)+1)
	args = append(args, signer)
	args = append(args, extra...)
	return Call{
		Signer:   req.From,
		Sequence: sequence,
		Contract: req.Contract,
		Method:   a.method,
		Args:     args,
	}, nil
}
