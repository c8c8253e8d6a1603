package chain

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolScope/internal/scval"
	"poolScope/internal/txsim"
)

type rpcHandler func(params json.RawMessage) (any, *jsonRPCError)

type fakeRPC struct {
	t        *testing.T
	handlers map[string]rpcHandler
	requests []jsonRPCRequest
	status   int
}

func newFakeRPC(t *testing.T) (*fakeRPC, *httptest.Server) {
	f := &fakeRPC{t: t, handlers: map[string]rpcHandler{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeRPC) serve(w http.ResponseWriter, r *http.Request) {
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	var req struct {
		ID     int64           `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
	f.requests = append(f.requests, jsonRPCRequest{ID: req.ID, Method: req.Method, Params: req.Params})

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	handler, ok := f.handlers[req.Method]
	if !ok {
		resp["error"] = jsonRPCError{Code: -32601, Message: "method not found"}
	} else if result, rpcErr := handler(req.Params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(resp))
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func testStrkey(t *testing.T, version strkey.VersionByte, seed string) string {
	t.Helper()
	sum := sha256.Sum256([]byte(seed))
	out, err := strkey.Encode(version, sum[:])
	require.NoError(t, err)
	return out
}

func b64(t *testing.T, v any) string {
	t.Helper()
	out, err := xdr.MarshalBase64(v)
	require.NoError(t, err)
	return out
}

func decodeKeys(t *testing.T, params json.RawMessage) []xdr.LedgerKey {
	var p ledgerEntriesParams
	require.NoError(t, json.Unmarshal(params, &p))
	keys := make([]xdr.LedgerKey, 0, len(p.Keys))
	for _, raw := range p.Keys {
		var key xdr.LedgerKey
		require.NoError(t, xdr.SafeUnmarshalBase64(raw, &key))
		keys = append(keys, key)
	}
	return keys
}

func entriesResult(t *testing.T, entries ...xdr.LedgerEntryData) ledgerEntriesResult {
	out := ledgerEntriesResult{LatestLedger: 100}
	for _, e := range entries {
		out.Entries = append(out.Entries, ledgerEntryInfo{Key: "k", XDR: b64(t, e), LastModifiedLedger: 90})
	}
	return out
}

func TestLatestLedger(t *testing.T) {
	fake, srv := newFakeRPC(t)
	fake.handlers["getLatestLedger"] = func(json.RawMessage) (any, *jsonRPCError) {
		return map[string]any{"id": "abc", "protocolVersion": 21, "sequence": 5150}, nil
	}

	seq, err := newTestClient(t, srv).LatestLedger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(5150), seq)
	require.Len(t, fake.requests, 1)
	assert.Nil(t, fake.requests[0].Params)
}

func TestNewClientChecksNetwork(t *testing.T) {
	fake, srv := newFakeRPC(t)
	fake.handlers["getNetwork"] = func(json.RawMessage) (any, *jsonRPCError) {
		return NetworkInfo{Passphrase: "Test SDF Network ; September 2015", ProtocolVersion: 21}, nil
	}

	_, err := NewClient(context.Background(), srv.URL, Options{NetworkPassphrase: "Public Global Stellar Network ; September 2015"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network mismatch")

	_, err = NewClient(context.Background(), srv.URL, Options{NetworkPassphrase: "Test SDF Network ; September 2015"})
	require.NoError(t, err)

	_, err = NewClient(context.Background(), "localhost:8000", Options{})
	require.Error(t, err)
}

func TestAccountSequence(t *testing.T) {
	fake, srv := newFakeRPC(t)
	alice := testStrkey(t, strkey.VersionByteAccountID, "alice")
	aliceID, err := scval.ParseAccountID(alice)
	require.NoError(t, err)

	fake.handlers["getLedgerEntries"] = func(params json.RawMessage) (any, *jsonRPCError) {
		keys := decodeKeys(t, params)
		require.Len(t, keys, 1)
		require.Equal(t, xdr.LedgerEntryTypeAccount, keys[0].Type)
		if *keys[0].Account.AccountId.Ed25519 == *aliceID.Ed25519 {
			return entriesResult(t, xdr.LedgerEntryData{
				Type:    xdr.LedgerEntryTypeAccount,
				Account: &xdr.AccountEntry{AccountId: aliceID, Balance: 1000, SeqNum: 41},
			}), nil
		}
		return entriesResult(t), nil
	}
	client := newTestClient(t, srv)

	seq, err := client.AccountSequence(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, int64(41), seq)

	_, err = client.AccountSequence(context.Background(), testStrkey(t, strkey.VersionByteAccountID, "bob"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, txsim.ErrAccountNotFound))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func instanceEntry(contract xdr.ScAddress, storage xdr.ScMap) xdr.LedgerEntryData {
	return xdr.LedgerEntryData{
		Type: xdr.LedgerEntryTypeContractData,
		ContractData: &xdr.ContractDataEntry{
			Contract:   contract,
			Key:        xdr.ScVal{Type: xdr.ScValTypeScvLedgerKeyContractInstance},
			Durability: xdr.ContractDataDurabilityPersistent,
			Val: xdr.ScVal{
				Type: xdr.ScValTypeScvContractInstance,
				Instance: &xdr.ScContractInstance{
					Executable: xdr.ContractExecutable{Type: xdr.ContractExecutableTypeContractExecutableStellarAsset},
					Storage:    &storage,
				},
			},
		},
	}
}

func TestInstanceStorage(t *testing.T) {
	fake, srv := newFakeRPC(t)
	pool := testStrkey(t, strkey.VersionByteContract, "pool")
	plain := testStrkey(t, strkey.VersionByteContract, "plain")
	poolAddr, err := scval.ParseAddress(pool)
	require.NoError(t, err)
	plainAddr, err := scval.ParseAddress(plain)
	require.NoError(t, err)

	fake.handlers["getLedgerEntries"] = func(params json.RawMessage) (any, *jsonRPCError) {
		keys := decodeKeys(t, params)
		require.Len(t, keys, 1)
		data := keys[0].ContractData
		require.NotNil(t, data)
		assert.Equal(t, xdr.ScValTypeScvLedgerKeyContractInstance, data.Key.Type)

		contract, err := scval.FormatAddress(data.Contract)
		require.NoError(t, err)
		switch contract {
		case pool:
			return entriesResult(t, instanceEntry(poolAddr, xdr.ScMap{
				{Key: scval.EnumKey("Periods"), Val: scval.I32(10)},
			})), nil
		case plain:
			entry := instanceEntry(plainAddr, nil)
			entry.ContractData.Val = scval.I32(1)
			return entriesResult(t, entry), nil
		}
		return entriesResult(t), nil
	}
	client := newTestClient(t, srv)

	snapshot, err := client.InstanceStorage(context.Background(), pool)
	require.NoError(t, err)
	periods, err := scval.Lookup(snapshot, scval.EnumKey("Periods"), scval.DecodeInt64)
	require.NoError(t, err)
	assert.Equal(t, int64(10), periods)

	_, err = client.InstanceStorage(context.Background(), plain)
	assert.True(t, errors.Is(err, ErrUnexpectedEntry), "got %v", err)

	_, err = client.InstanceStorage(context.Background(), testStrkey(t, strkey.VersionByteContract, "missing"))
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestPersistentEntriesReadsRequestedKeys(t *testing.T) {
	fake, srv := newFakeRPC(t)
	pool := testStrkey(t, strkey.VersionByteContract, "pool")
	poolAddr, err := scval.ParseAddress(pool)
	require.NoError(t, err)

	fake.handlers["getLedgerEntries"] = func(params json.RawMessage) (any, *jsonRPCError) {
		keys := decodeKeys(t, params)
		require.Len(t, keys, 3)
		for _, key := range keys {
			assert.Equal(t, xdr.ContractDataDurabilityPersistent, key.ContractData.Durability)
		}
		return entriesResult(t, xdr.LedgerEntryData{
			Type: xdr.LedgerEntryTypeContractData,
			ContractData: &xdr.ContractDataEntry{
				Contract:   poolAddr,
				Key:        keys[1].ContractData.Key,
				Durability: xdr.ContractDataDurabilityPersistent,
				Val:        scval.I128FromInt64(77),
			},
		}), nil
	}

	wanted := []xdr.ScVal{
		scval.EnumKey("TotSupply", scval.I32(2)),
		scval.EnumKey("TotLiquidity", scval.I32(2)),
		scval.EnumKey("RefundGlobal", scval.I32(2)),
	}
	snapshot, err := newTestClient(t, srv).PersistentEntries(context.Background(), pool, wanted)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.True(t, scval.Equal(wanted[1], snapshot[0].Key))

	got, err := scval.DecodeBigInt(snapshot[0].Val)
	require.NoError(t, err)
	assert.Equal(t, "77", got.String())
}

func TestSimulateCallAssemblesTransaction(t *testing.T) {
	fake, srv := newFakeRPC(t)
	signer := testStrkey(t, strkey.VersionByteAccountID, "alice")
	pool := testStrkey(t, strkey.VersionByteContract, "pool")

	sorobanData := xdr.SorobanTransactionData{
		Resources: xdr.SorobanResources{
			Instructions: 5000,
			ReadBytes:    1000,
			WriteBytes:   500,
		},
		ResourceFee: 300,
	}

	var simulated xdr.TransactionEnvelope
	fake.handlers["simulateTransaction"] = func(params json.RawMessage) (any, *jsonRPCError) {
		var p simulateParams
		require.NoError(t, json.Unmarshal(params, &p))
		require.NoError(t, xdr.SafeUnmarshalBase64(p.Transaction, &simulated))
		return map[string]any{
			"transactionData": b64(t, sorobanData),
			"minResourceFee":  "300",
			"results":         []map[string]any{{"auth": []string{}, "xdr": b64(t, scval.Bool(true))}},
			"latestLedger":    100,
		}, nil
	}

	call, err := txsim.BuildCall(txsim.Request{Kind: txsim.KindWithdraw, Contract: pool, From: signer, Period: 3}, 42)
	require.NoError(t, err)

	out, err := newTestClient(t, srv).SimulateCall(context.Background(), call)
	require.NoError(t, err)

	require.NotNil(t, simulated.V1)
	invoke := simulated.V1.Tx.Operations[0].Body.InvokeHostFunctionOp.HostFunction.InvokeContract
	assert.Equal(t, xdr.ScSymbol("withdraw"), invoke.FunctionName)
	assert.Len(t, invoke.Args, 2)
	assert.Equal(t, xdr.SequenceNumber(42), simulated.V1.Tx.SeqNum)

	var assembled xdr.TransactionEnvelope
	require.NoError(t, xdr.SafeUnmarshalBase64(out, &assembled))
	assert.Equal(t, xdr.Uint32(defaultBaseFee+300), assembled.V1.Tx.Fee)
	require.NotNil(t, assembled.V1.Tx.Ext.SorobanData)
	assert.Equal(t, xdr.Uint32(1000), assembled.V1.Tx.Ext.SorobanData.Resources.ReadBytes)

	patched, err := txsim.Patch(out, txsim.DefaultPadding())
	require.NoError(t, err)
	assert.NotEmpty(t, patched)
}

func TestSimulateCallFailures(t *testing.T) {
	signer := testStrkey(t, strkey.VersionByteAccountID, "alice")
	pool := testStrkey(t, strkey.VersionByteContract, "pool")
	call, err := txsim.BuildCall(txsim.Request{Kind: txsim.KindClaimReward, Contract: pool, From: signer}, 1)
	require.NoError(t, err)

	t.Run("host error", func(t *testing.T) {
		fake, srv := newFakeRPC(t)
		fake.handlers["simulateTransaction"] = func(json.RawMessage) (any, *jsonRPCError) {
			return map[string]any{"error": "HostError: Error(Contract, #4)", "latestLedger": 100}, nil
		}
		_, err := newTestClient(t, srv).SimulateCall(context.Background(), call)
		assert.True(t, errors.Is(err, txsim.ErrSimulationFailed), "got %v", err)
		assert.Contains(t, err.Error(), "Error(Contract, #4)")
	})

	t.Run("rpc error", func(t *testing.T) {
		fake, srv := newFakeRPC(t)
		fake.handlers["simulateTransaction"] = func(json.RawMessage) (any, *jsonRPCError) {
			return nil, &jsonRPCError{Code: -32602, Message: "invalid params"}
		}
		_, err := newTestClient(t, srv).SimulateCall(context.Background(), call)
		assert.True(t, errors.Is(err, txsim.ErrSimulationFailed), "got %v", err)
	})

	t.Run("server down", func(t *testing.T) {
		fake, srv := newFakeRPC(t)
		fake.status = http.StatusServiceUnavailable
		_, err := newTestClient(t, srv).SimulateCall(context.Background(), call)
		assert.True(t, errors.Is(err, ErrBackendUnavailable), "got %v", err)
		assert.False(t, errors.Is(err, txsim.ErrSimulationFailed))
	})
}

func TestRPCErrorIsNotUnavailable(t *testing.T) {
	_, srv := newFakeRPC(t)
	_, err := newTestClient(t, srv).LatestLedger(context.Background())
	require.Error(t, err)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32601, rpcErr.Code)
	assert.False(t, errors.Is(err, ErrBackendUnavailable))
}

func TestEvents(t *testing.T) {
	fake, srv := newFakeRPC(t)
	factory := testStrkey(t, strkey.VersionByteContract, "factory")
	pool := testStrkey(t, strkey.VersionByteContract, "pool")
	poolVal, err := scval.Address(pool)
	require.NoError(t, err)

	var got getEventsParams
	fake.handlers["getEvents"] = func(params json.RawMessage) (any, *jsonRPCError) {
		require.NoError(t, json.Unmarshal(params, &got))
		return map[string]any{
			"latestLedger": 120,
			"events": []map[string]any{
				{
					"type": "contract", "ledger": 101, "contractId": factory,
					"id": "0000000433791700992-0000000001", "pagingToken": "0000000433791700992-0000000001",
					"topic": []string{b64(t, scval.Symbol("deployed"))},
					"value": b64(t, poolVal),
				},
				{
					"type": "contract", "ledger": 102, "contractId": factory,
					"id": "0000000438086668288-0000000001", "pagingToken": "0000000438086668288-0000000001",
					"topic": []string{b64(t, scval.Symbol("other"))},
					"value": map[string]string{"xdr": b64(t, scval.I32(1))},
				},
			},
		}, nil
	}

	page, err := newTestClient(t, srv).Events(context.Background(), EventQuery{StartLedger: 100, ContractIDs: []string{factory}, Limit: 50})
	require.NoError(t, err)

	assert.Equal(t, uint32(100), got.StartLedger)
	require.Len(t, got.Filters, 1)
	assert.Equal(t, []string{factory}, got.Filters[0].ContractIDs)
	assert.Equal(t, uint(50), got.Pagination.Limit)

	require.Len(t, page.Events, 2)
	assert.Equal(t, uint32(101), page.Events[0].Ledger)
	assert.True(t, scval.Equal(scval.Symbol("deployed"), page.Events[0].Topics[0]))
	assert.True(t, scval.Equal(poolVal, page.Events[0].Value))
	assert.True(t, scval.Equal(scval.I32(1), page.Events[1].Value))
	assert.Equal(t, "0000000438086668288-0000000001", page.Cursor)
	assert.Equal(t, uint32(120), page.LatestLedger)
}

func TestContractFiltersChunk(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	filters := contractFilters(ids)
	require.Len(t, filters, 2)
	assert.Len(t, filters[0].ContractIDs, 5)
	assert.Equal(t, []string{"f", "g"}, filters[1].ContractIDs)
	assert.Len(t, contractFilters(nil), 1)
}
