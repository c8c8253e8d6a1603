package txsim

import (
	"fmt"
	"math"

	"github.com/stellar/go/xdr"
)

// Padding is the margin added to a simulated transaction's budget.
type Padding struct {
	ReadBytes   uint32
	WriteBytes  uint32
	ResourceFee uint32
	Fee         uint32
}

// DefaultPadding returns the standard margin of 200 read bytes, 100 write
// bytes, 100 resource fee and 100 fee.
func DefaultPadding() Padding {
	return Padding{ReadBytes: 200, WriteBytes: 100, ResourceFee: 100, Fee: 100}
}

// Patch decodes a simulated envelope, adds pad to its resource and fee budget
// and re-encodes it without signatures.
func Patch(envelope string, pad Padding) (string, error) {
	var env xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshalBase64(envelope, &env); err != nil {
		return "", fmt.Errorf("%w: decode envelope: %v", ErrEnvelopeShape, err)
	}
	if env.Type != xdr.EnvelopeTypeEnvelopeTypeTx || env.V1 == nil {
		return "", fmt.Errorf("%w: envelope type %s", ErrEnvelopeShape, env.Type.String())
	}

	tx := env.V1.Tx
	if len(tx.Operations) != 1 {
		return "", fmt.Errorf("%w: %d operations", ErrEnvelopeShape, len(tx.Operations))
	}
	if tx.Ext.V != 1 || tx.Ext.SorobanData == nil {
		return "", fmt.Errorf("%w: transaction ext v%d without soroban data", ErrEnvelopeShape, tx.Ext.V)
	}

	data := *tx.Ext.SorobanData
	readBytes, err := addUint32(uint32(data.Resources.ReadBytes), pad.ReadBytes)
	if err != nil {
		return "", fmt.Errorf("%w: read bytes: %v", ErrEnvelopeShape, err)
	}
	writeBytes, err := addUint32(uint32(data.Resources.WriteBytes), pad.WriteBytes)
	if err != nil {
		return "", fmt.Errorf("%w: write bytes: %v", ErrEnvelopeShape, err)
	}
	fee, err := addUint32(uint32(tx.Fee), pad.Fee)
	if err != nil {
		return "", fmt.Errorf("%w: fee: %v", ErrEnvelopeShape, err)
	}
	if int64(data.ResourceFee) > math.MaxInt64-int64(pad.ResourceFee) {
		return "", fmt.Errorf("%w: resource fee overflow", ErrEnvelopeShape)
	}

	data.Resources.ReadBytes = xdr.Uint32(readBytes)
	data.Resources.WriteBytes = xdr.Uint32(writeBytes)
	data.ResourceFee += xdr.Int64(pad.ResourceFee)
	tx.Ext.SorobanData = &data
	tx.Fee = xdr.Uint32(fee)

	out := xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTx,
		V1: &xdr.TransactionV1Envelope{
			Tx:         tx,
			Signatures: []xdr.DecoratedSignature{},
		},
	}
	encoded, err := xdr.MarshalBase64(out)
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	return encoded, nil
}

func addUint32(a, b uint32) (uint32, error) {
	if a > math.MaxUint32-b {
		return 0, fmt.Errorf("%d + %d overflows uint32", a, b)
	}
	return a + b, nil
}
