package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/stellar/go/xdr"

	"poolScope/internal/txsim"
)

type simulateParams struct {
	Transaction string `json:"transaction"`
}

type simulateHostResult struct {
	Auth []string `json:"auth"`
	XDR  string   `json:"xdr"`
}

type simulateResult struct {
	Error           string               `json:"error,omitempty"`
	TransactionData string               `json:"transactionData"`
	MinResourceFee  json.Number          `json:"minResourceFee"`
	Results         []simulateHostResult `json:"results"`
	RestorePreamble json.RawMessage      `json:"restorePreamble,omitempty"`
	LatestLedger    uint32               `json:"latestLedger"`
}

// SimulateCall simulates call and returns the assembled, unsigned transaction
// envelope in base64.
func (c *Client) SimulateCall(ctx context.Context, call txsim.Call) (string, error) {
	env, err := txsim.UnsignedEnvelope(call, c.baseFee)
	if err != nil {
		return "", err
	}
	encoded, err := xdr.MarshalBase64(env)
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}

	var result simulateResult
	if err := c.call(ctx, "simulateTransaction", simulateParams{Transaction: encoded}, &result); err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return "", fmt.Errorf("%w: %v", txsim.ErrSimulationFailed, rpcErr)
		}
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf("%w: %s", txsim.ErrSimulationFailed, result.Error)
	}
	if len(result.RestorePreamble) > 0 && string(result.RestorePreamble) != "null" {
		return "", fmt.Errorf("%w: archived entries must be restored first", txsim.ErrSimulationFailed)
	}
	return assembleTransaction(env, result)
}

// assembleTransaction attaches the simulated soroban data and authorization
// to env and raises its fee by the minimum resource fee.
func assembleTransaction(env xdr.TransactionEnvelope, result simulateResult) (string, error) {
	if env.V1 == nil || len(env.V1.Tx.Operations) != 1 {
		return "", fmt.Errorf("%w: expected one operation", txsim.ErrEnvelopeShape)
	}
	op := env.V1.Tx.Operations[0].Body.InvokeHostFunctionOp
	if op == nil {
		return "", fmt.Errorf("%w: operation is not invoke host function", txsim.ErrEnvelopeShape)
	}

	var data xdr.SorobanTransactionData
	if err := xdr.SafeUnmarshalBase64(result.TransactionData, &data); err != nil {
		return "", fmt.Errorf("%w: decode transaction data: %v", txsim.ErrSimulationFailed, err)
	}

	minFee, err := strconv.ParseInt(result.MinResourceFee.String(), 10, 64)
	if err != nil || minFee < 0 {
		return "", fmt.Errorf("%w: invalid min resource fee %q", txsim.ErrSimulationFailed, result.MinResourceFee.String())
	}
	fee := uint64(env.V1.Tx.Fee) + uint64(minFee)
	if fee > math.MaxUint32 {
		return "", fmt.Errorf("%w: fee %d overflows uint32", txsim.ErrSimulationFailed, fee)
	}

	if len(result.Results) > 0 {
		auth := make([]xdr.SorobanAuthorizationEntry, 0, len(result.Results[0].Auth))
		for _, raw := range result.Results[0].Auth {
			var entry xdr.SorobanAuthorizationEntry
			if err := xdr.SafeUnmarshalBase64(raw, &entry); err != nil {
				return "", fmt.Errorf("%w: decode auth entry: %v", txsim.ErrSimulationFailed, err)
			}
			auth = append(auth, entry)
		}
		op.Auth = auth
	}

	env.V1.Tx.Fee = xdr.Uint32(fee)
	env.V1.Tx.Ext = xdr.TransactionExt{V: 1, SorobanData: &data}

	out, err := xdr.MarshalBase64(env)
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}
	return out, nil
}
