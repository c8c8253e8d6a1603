package txsim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Kind identifies one supported pool action.
type Kind string

const (
	KindDeposit          Kind = "Deposit"
	KindUpdateFeeRewards Kind = "UpdateFeeRewards"
	KindWithdrawMatured  Kind = "WithdrawMatured"
	KindWithdraw         Kind = "Withdraw"
	KindSubscribe        Kind = "Subscribe"
	KindClaimReward      Kind = "ClaimReward"
)

// Kinds lists every supported action in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindDeposit,
		KindUpdateFeeRewards,
		KindWithdrawMatured,
		KindWithdraw,
		KindSubscribe,
		KindClaimReward,
	}
}

// ParseKind matches s against the action names, ignoring case and separators.
func ParseKind(s string) (Kind, error) {
	norm := strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	for _, kind := range Kinds() {
		if strings.ToLower(string(kind)) == norm {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, s)
}

// Request is one logical user action against a pool contract.
type Request struct {
	Kind     Kind
	Contract string
	From     string
	Amount   *big.Int
	Period   int32
}

type requestBody struct {
	Contract string       `json:"contract"`
	From     string       `json:"from"`
	Amount   *json.Number `json:"amount,omitempty"`
	Period   *int32       `json:"period,omitempty"`
}

// UnmarshalJSON decodes the externally tagged form, for example
// {"Deposit":{"contract":"C...","from":"G...","amount":100}}.
func (r *Request) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("%w: expected exactly one action, got %d", ErrInvalidRequest, len(tagged))
	}

	for tag, raw := range tagged {
		kind, err := ParseKind(tag)
		if err != nil {
			return err
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		dec.DisallowUnknownFields()
		var body requestBody
		if err := dec.Decode(&body); err != nil {
			return fmt.Errorf("%w: %s body: %v", ErrInvalidRequest, kind, err)
		}

		out := Request{Kind: kind, Contract: body.Contract, From: body.From}
		if body.Amount != nil {
			amount, ok := new(big.Int).SetString(body.Amount.String(), 10)
			if !ok {
				return fmt.Errorf("%w: amount %q is not an integer", ErrInvalidRequest, body.Amount.String())
			}
			out.Amount = amount
		}
		if body.Period != nil {
			out.Period = *body.Period
		}
		if err := out.checkFields(body.Amount != nil, body.Period != nil); err != nil {
			return err
		}
		*r = out
	}
	return nil
}

// MarshalJSON encodes the externally tagged form.
func (r Request) MarshalJSON() ([]byte, error) {
	body := requestBody{Contract: r.Contract, From: r.From}
	switch r.Kind {
	case KindDeposit, KindSubscribe:
		amount := json.Number(amountString(r.Amount))
		body.Amount = &amount
	case KindUpdateFeeRewards, KindWithdrawMatured, KindWithdraw:
		period := r.Period
		body.Period = &period
	}
	return json.Marshal(map[string]requestBody{string(r.Kind): body})
}

func (r Request) checkFields(hasAmount, hasPeriod bool) error {
	switch r.Kind {
	case KindDeposit, KindSubscribe:
		if !hasAmount {
			return fmt.Errorf("%w: %s requires amount", ErrInvalidRequest, r.Kind)
		}
	case KindUpdateFeeRewards, KindWithdrawMatured, KindWithdraw:
		if !hasPeriod {
			return fmt.Errorf("%w: %s requires period", ErrInvalidRequest, r.Kind)
		}
	}
	return nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
