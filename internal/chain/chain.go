// Package chain is a minimal Substrate JSON-RPC client: account balances,
// extrinsic submission and chain properties.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/unique-nft/marketgate/internal/pkg/apperrors"
	"github.com/unique-nft/marketgate/internal/ss58"
)

// Options describe one chain.
type Options struct {
	Name       string
	URL        string
	SS58Prefix uint16
	Decimals   int32
	Symbol     string
}

// Client talks to a single Substrate node.
type Client struct {
	opts      Options
	rpcClient *rpc.Client
}

// Dial connects to the node at opts.URL (ws, wss, http or https).
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%s: rpc url is empty", opts.Name)
	}
	rpcClient, err := rpc.DialContext(ctx, opts.URL)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrNetwork, fmt.Sprintf("dial %s node", opts.Name), err)
	}
	return NewClient(rpcClient, opts), nil
}

// NewClient wraps an already connected rpc client.
func NewClient(rpcClient *rpc.Client, opts Options) *Client {
	return &Client{opts: opts, rpcClient: rpcClient}
}

func (c *Client) Name() string       { return c.opts.Name }
func (c *Client) SS58Prefix() uint16 { return c.opts.SS58Prefix }
func (c *Client) Decimals() int32    { return c.opts.Decimals }
func (c *Client) Symbol() string     { return c.opts.Symbol }

// Close drops the underlying connection.
func (c *Client) Close() {
	c.rpcClient.Close()
}

// AccountBalance reads System.Account for address. The address may use any
// SS58 prefix. An account without storage has a zero balance.
func (c *Client) AccountBalance(ctx context.Context, address string) (Balance, error) {
	accountID, _, err := ss58.Decode(address)
	if err != nil {
		return Balance{}, apperrors.New(apperrors.ErrInvalidRequest, "invalid address", err)
	}
	key, err := AccountStorageKey(accountID)
	if err != nil {
		return Balance{}, apperrors.New(apperrors.ErrInvalidRequest, "invalid account id", err)
	}

	var res *string
	if err := c.rpcClient.CallContext(ctx, &res, "state_getStorage", key); err != nil {
		return Balance{}, c.wrap("state_getStorage", err)
	}
	if res == nil {
		return DecodeAccountInfo(nil)
	}
	raw, err := hexutil.Decode(*res)
	if err != nil {
		return Balance{}, apperrors.New(apperrors.ErrChain, "malformed storage value", err)
	}
	bal, err := DecodeAccountInfo(raw)
	if err != nil {
		return Balance{}, apperrors.New(apperrors.ErrChain, "malformed account info", err)
	}
	return bal, nil
}

// SubmitExtrinsic relays a signed extrinsic and returns its hash.
func (c *Client) SubmitExtrinsic(ctx context.Context, extrinsic string) (string, error) {
	extrinsic = strings.TrimSpace(extrinsic)
	if !strings.HasPrefix(extrinsic, "0x") {
		extrinsic = "0x" + extrinsic
	}
	if _, err := hexutil.Decode(extrinsic); err != nil {
		return "", apperrors.New(apperrors.ErrInvalidRequest, "extrinsic must be hex encoded", err)
	}

	var hash string
	if err := c.rpcClient.CallContext(ctx, &hash, "author_submitExtrinsic", extrinsic); err != nil {
		return "", c.wrap("author_submitExtrinsic", err)
	}
	return hash, nil
}

// Properties is the node's system_properties answer.
type Properties struct {
	SS58Format    *uint16
	TokenDecimals []int32
	TokenSymbol   []string
}

func (p *Properties) UnmarshalJSON(data []byte) error {
	var wire struct {
		SS58Format    *uint16         `json:"ss58Format"`
		TokenDecimals json.RawMessage `json:"tokenDecimals"`
		TokenSymbol   json.RawMessage `json:"tokenSymbol"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.SS58Format = wire.SS58Format

	// Relay chains answer with scalars, multi-asset chains with arrays.
	if len(wire.TokenDecimals) > 0 {
		var one int32
		if err := json.Unmarshal(wire.TokenDecimals, &one); err == nil {
			p.TokenDecimals = []int32{one}
		} else if err := json.Unmarshal(wire.TokenDecimals, &p.TokenDecimals); err != nil {
			return fmt.Errorf("tokenDecimals: %w", err)
		}
	}
	if len(wire.TokenSymbol) > 0 {
		var one string
		if err := json.Unmarshal(wire.TokenSymbol, &one); err == nil {
			p.TokenSymbol = []string{one}
		} else if err := json.Unmarshal(wire.TokenSymbol, &p.TokenSymbol); err != nil {
			return fmt.Errorf("tokenSymbol: %w", err)
		}
	}
	return nil
}

// Properties queries system_properties.
func (c *Client) Properties(ctx context.Context) (Properties, error) {
	var props Properties
	if err := c.rpcClient.CallContext(ctx, &props, "system_properties"); err != nil {
		return Properties{}, c.wrap("system_properties", err)
	}
	return props, nil
}

func (c *Client) wrap(method string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return apperrors.New(apperrors.ErrChain, fmt.Sprintf("%s %s failed (code %d)", c.opts.Name, method, rpcErr.ErrorCode()), err)
	}
	return apperrors.New(apperrors.ErrNetwork, fmt.Sprintf("%s %s failed", c.opts.Name, method), err)
}
