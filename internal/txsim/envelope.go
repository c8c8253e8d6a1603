package txsim

import (
	"fmt"

	"github.com/stellar/go/xdr"

	"poolScope/internal/scval"
)

// UnsignedEnvelope builds the single InvokeHostFunction transaction for call
// with the given inclusion fee and no soroban resources attached.
func UnsignedEnvelope(call Call, fee uint32) (xdr.TransactionEnvelope, error) {
	accountID, err := scval.ParseAccountID(call.Signer)
	if err != nil {
		return xdr.TransactionEnvelope{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	contractID, err := scval.ParseContractID(call.Contract)
	if err != nil {
		return xdr.TransactionEnvelope{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	args := make([]xdr.ScVal, len(call.Args))
	copy(args, call.Args)

	op := xdr.Operation{
		Body: xdr.OperationBody{
			Type: xdr.OperationTypeInvokeHostFunction,
			InvokeHostFunctionOp: &xdr.InvokeHostFunctionOp{
				HostFunction: xdr.HostFunction{
					Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
					InvokeContract: &xdr.InvokeContractArgs{
						ContractAddress: xdr.ScAddress{
							Type:       xdr.ScAddressTypeScAddressTypeContract,
							ContractId: &contractID,
						},
						FunctionName: xdr.ScSymbol(call.Method),
						Args:         args,
					},
				},
				Auth: []xdr.SorobanAuthorizationEntry{},
			},
		},
	}

	tx := xdr.Transaction{
		SourceAccount: xdr.MuxedAccount{
			Type:    xdr.CryptoKeyTypeKeyTypeEd25519,
			Ed25519: accountID.Ed25519,
		},
		Fee:        xdr.Uint32(fee),
		SeqNum:     xdr.SequenceNumber(call.Sequence),
		Cond:       xdr.Preconditions{Type: xdr.PreconditionTypePrecondNone},
		Memo:       xdr.Memo{Type: xdr.MemoTypeMemoNone},
		Operations: []xdr.Operation{op},
		Ext:        xdr.TransactionExt{V: 0},
	}

	return xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTx,
		V1: &xdr.TransactionV1Envelope{
			Tx:         tx,
			Signatures: []xdr.DecoratedSignature{},
		},
	}, nil
}
