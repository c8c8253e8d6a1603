// Package chain reads Soroban ledger state and simulates contract calls
// through a stellar-rpc endpoint.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

var (
	// ErrNotFound is returned when a requested ledger entry does not exist.
	ErrNotFound = errors.New("ledger entry not found")
	// ErrUnexpectedEntry is returned when an entry exists but has the wrong type.
	ErrUnexpectedEntry = errors.New("unexpected ledger entry")
	// ErrBackendUnavailable wraps transport failures talking to the RPC server.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// RPCError is an error object returned by the RPC server.
type RPCError struct {
	Method  string
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc %s: %s (code %d)", e.Method, e.Message, e.Code)
}

// Options tunes a Client.
type Options struct {
	// BaseFee is the inclusion fee set on simulated transactions, in stroops.
	BaseFee uint32
	// NetworkPassphrase, when set, is checked against the server on connect.
	NetworkPassphrase string
	Timeout           time.Duration
}

const (
	defaultBaseFee = 100
	defaultTimeout = 30 * time.Second
)

// Client is a JSON-RPC client for stellar-rpc.
type Client struct {
	url     string
	http    *http.Client
	nextID  atomic.Int64
	baseFee uint32
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonRPCError   `json:"error"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a client for rpcURL and, when a network passphrase is
// configured, verifies the server is on that network.
func NewClient(ctx context.Context, rpcURL string, opts Options) (*Client, error) {
	parsed, err := url.Parse(rpcURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid rpc url %q", rpcURL)
	}
	if opts.BaseFee == 0 {
		opts.BaseFee = defaultBaseFee
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = opts.Timeout

	c := &Client{
		url:     rpcURL,
		http:    httpClient,
		baseFee: opts.BaseFee,
	}

	if opts.NetworkPassphrase != "" {
		network, err := c.Network(ctx)
		if err != nil {
			return nil, fmt.Errorf("get network: %w", err)
		}
		if network.Passphrase != opts.NetworkPassphrase {
			return nil, fmt.Errorf("rpc network mismatch: got %q, want %q", network.Passphrase, opts.NetworkPassphrase)
		}
	}
	return c, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	if c.http != nil {
		c.http.CloseIdleConnections()
	}
}

// NetworkInfo describes the network an RPC server is attached to.
type NetworkInfo struct {
	Passphrase      string `json:"passphrase"`
	ProtocolVersion int    `json:"protocolVersion"`
}

// Network returns the server's network passphrase and protocol version.
func (c *Client) Network(ctx context.Context) (NetworkInfo, error) {
	var out NetworkInfo
	err := c.call(ctx, "getNetwork", nil, &out)
	return out, err
}

// LatestLedger returns the sequence of the most recent closed ledger.
func (c *Client) LatestLedger(ctx context.Context) (uint32, error) {
	var out struct {
		Sequence uint32 `json:"sequence"`
	}
	if err := c.call(ctx, "getLatestLedger", nil, &out); err != nil {
		return 0, err
	}
	return out.Sequence, nil
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: status %d: %s", ErrBackendUnavailable, method, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", ErrBackendUnavailable, method, err)
	}
	if rpcResp.Error != nil {
		return &RPCError{Method: method, Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	if out == nil {
		return nil
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return fmt.Errorf("%w: %s: empty result", ErrBackendUnavailable, method)
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
