// Package evm implements the ledger gateway against EVM raffle and market
// contracts using go-ethereum. Reads go over JSON-RPC; settlement events are
// delivered over a WebSocket log subscription.
package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
)

// ClientConfig holds connection parameters for the ledger RPC endpoints.
type ClientConfig struct {
	RPCURL  string // HTTP JSON-RPC endpoint for reads and writes
	WSURL   string // WebSocket endpoint for log subscriptions; optional
	ChainID int64
}

// Client wraps the go-ethereum RPC clients and verifies the chain identity
// at connect time so a misconfigured endpoint fails fast.
type Client struct {
	rpc     *ethclient.Client
	ws      *ethclient.Client // nil when no WS endpoint is configured
	chainID int64
}

// New dials the configured endpoints and checks the reported chain ID.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial rpc %s: %w", cfg.RPCURL, err)
	}

	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("evm: chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Int64() != cfg.ChainID {
		rpc.Close()
		return nil, fmt.Errorf("evm: endpoint reports chain %d, config expects %d", chainID.Int64(), cfg.ChainID)
	}

	c := &Client{rpc: rpc, chainID: chainID.Int64()}

	if cfg.WSURL != "" {
		ws, err := ethclient.DialContext(ctx, cfg.WSURL)
		if err != nil {
			rpc.Close()
			return nil, fmt.Errorf("evm: dial ws %s: %w", cfg.WSURL, err)
		}
		c.ws = ws
	}

	return c, nil
}

// ChainID returns the verified chain ID.
func (c *Client) ChainID() int64 { return c.chainID }

// SupportsSubscriptions reports whether a WS endpoint is available.
func (c *Client) SupportsSubscriptions() bool { return c.ws != nil }

// Close releases both connections.
func (c *Client) Close() {
	c.rpc.Close()
	if c.ws != nil {
		c.ws.Close()
	}
}
