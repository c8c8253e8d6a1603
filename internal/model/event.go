package model

import "github.com/stellar/go/xdr"

// ContractEvent is a contract event emitted during a ledger close.
type ContractEvent struct {
	ID         string
	Ledger     uint32
	ContractID string
	Topics     []xdr.ScVal
	Value      xdr.ScVal
}

// LedgerClose groups the events of one closed ledger.
type LedgerClose struct {
	Sequence uint32
	Events   []ContractEvent
}
