package chain

import (
	"context"
	"fmt"

	"github.com/stellar/go/xdr"

	"poolScope/internal/scval"
	"poolScope/internal/txsim"
)

// maxEntryKeys is the server limit on keys per getLedgerEntries request.
const maxEntryKeys = 200

type ledgerEntriesParams struct {
	Keys []string `json:"keys"`
}

type ledgerEntryInfo struct {
	Key                string `json:"key"`
	XDR                string `json:"xdr"`
	LastModifiedLedger uint32 `json:"lastModifiedLedgerSeq"`
}

type ledgerEntriesResult struct {
	Entries      []ledgerEntryInfo `json:"entries"`
	LatestLedger uint32            `json:"latestLedger"`
}

func (c *Client) ledgerEntries(ctx context.Context, keys []xdr.LedgerKey) ([]xdr.LedgerEntryData, error) {
	var out []xdr.LedgerEntryData
	for start := 0; start < len(keys); start += maxEntryKeys {
		end := start + maxEntryKeys
		if end > len(keys) {
			end = len(keys)
		}

		params := ledgerEntriesParams{Keys: make([]string, 0, end-start)}
		for _, key := range keys[start:end] {
			encoded, err := xdr.MarshalBase64(key)
			if err != nil {
				return nil, fmt.Errorf("encode ledger key: %w", err)
			}
			params.Keys = append(params.Keys, encoded)
		}

		var result ledgerEntriesResult
		if err := c.call(ctx, "getLedgerEntries", params, &result); err != nil {
			return nil, err
		}
		for _, entry := range result.Entries {
			var data xdr.LedgerEntryData
			if err := xdr.SafeUnmarshalBase64(entry.XDR, &data); err != nil {
				return nil, fmt.Errorf("decode ledger entry %s: %w", entry.Key, err)
			}
			out = append(out, data)
		}
	}
	return out, nil
}

func contractDataKey(contract string, key xdr.ScVal) (xdr.LedgerKey, error) {
	addr, err := scval.ParseAddress(contract)
	if err != nil {
		return xdr.LedgerKey{}, err
	}
	if addr.Type != xdr.ScAddressTypeScAddressTypeContract {
		return xdr.LedgerKey{}, fmt.Errorf("not a contract address: %s", contract)
	}
	return xdr.LedgerKey{
		Type: xdr.LedgerEntryTypeContractData,
		ContractData: &xdr.LedgerKeyContractData{
			Contract:   addr,
			Key:        key,
			Durability: xdr.ContractDataDurabilityPersistent,
		},
	}, nil
}

// InstanceStorage returns the instance storage map of a contract.
func (c *Client) InstanceStorage(ctx context.Context, contract string) (scval.Snapshot, error) {
	key, err := contractDataKey(contract, xdr.ScVal{Type: xdr.ScValTypeScvLedgerKeyContractInstance})
	if err != nil {
		return nil, err
	}
	entries, err := c.ledgerEntries(ctx, []xdr.LedgerKey{key})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: instance of %s", ErrNotFound, contract)
	}

	data := entries[0]
	if data.Type != xdr.LedgerEntryTypeContractData || data.ContractData == nil {
		return nil, fmt.Errorf("%w: %s instance is %s", ErrUnexpectedEntry, contract, data.Type.String())
	}
	val := data.ContractData.Val
	if val.Type != xdr.ScValTypeScvContractInstance || val.Instance == nil {
		return nil, fmt.Errorf("%w: %s instance value is %s", ErrUnexpectedEntry, contract, val.Type.String())
	}
	return scval.FromMap(val.Instance.Storage), nil
}

// PersistentEntries returns the persistent storage entries of a contract
// whose keys are in wanted. The RPC server cannot enumerate storage, so only
// requested keys are read; absent keys are left out of the result.
func (c *Client) PersistentEntries(ctx context.Context, contract string, wanted []xdr.ScVal) (scval.Snapshot, error) {
	if len(wanted) == 0 {
		return nil, nil
	}
	keys := make([]xdr.LedgerKey, 0, len(wanted))
	for _, p := range wanted {
		key, err := contractDataKey(contract, p)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	entries, err := c.ledgerEntries(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make(scval.Snapshot, 0, len(entries))
	for _, data := range entries {
		if data.Type != xdr.LedgerEntryTypeContractData || data.ContractData == nil {
			continue
		}
		out = append(out, scval.Entry{Key: data.ContractData.Key, Val: data.ContractData.Val})
	}
	return out, nil
}

// AccountSequence returns the current sequence number of an account.
func (c *Client) AccountSequence(ctx context.Context, account string) (int64, error) {
	accountID, err := scval.ParseAccountID(account)
	if err != nil {
		return 0, err
	}
	key := xdr.LedgerKey{
		Type:    xdr.LedgerEntryTypeAccount,
		Account: &xdr.LedgerKeyAccount{AccountId: accountID},
	}
	entries, err := c.ledgerEntries(ctx, []xdr.LedgerKey{key})
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("%s: %w: %w", account, txsim.ErrAccountNotFound, ErrNotFound)
	}
	data := entries[0]
	if data.Type != xdr.LedgerEntryTypeAccount || data.Account == nil {
		return 0, fmt.Errorf("%w: %s is %s", ErrUnexpectedEntry, account, data.Type.String())
	}
	return int64(data.Account.SeqNum), nil
}
