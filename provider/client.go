package provider

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/holograph-network/monitor/chain"
)

// Client is the live RPC handle for one Chain. For websocket-scheme chains
// it also owns a keepalive heartbeat that detects silent socket drops the
// JSON-RPC layer itself would otherwise miss.
type Client struct {
	Chain *chain.Chain

	mu  sync.RWMutex
	eth *ethclient.Client
	rpc *rpc.Client
	kp  *keepalive

	connectedAt time.Time
}

// Eth returns the current *ethclient.Client. Safe for concurrent use; the
// returned pointer may be replaced concurrently by a reconnect, so callers
// should not cache it across suspension points.
func (c *Client) Eth() *ethclient.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eth
}

// RPC returns the underlying *rpc.Client, used for raw subscription calls
// such as "newHeads".
func (c *Client) RPC() *rpc.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rpc
}

func dial(ctx context.Context, c *chain.Chain) (*rpc.Client, *ethclient.Client, error) {
	rc, err := rpc.DialContext(ctx, c.Endpoint)
	if err != nil {
		return nil, nil, err
	}
	return rc, ethclient.NewClient(rc), nil
}

// replace swaps in a freshly dialed client, closing the previous one. The
// caller holds responsibility for re-arming any subscriptions against the
// new client.
func (c *Client) replace(rc *rpc.Client, eth *ethclient.Client) {
	c.mu.Lock()
	old := c.rpc
	c.rpc = rc
	c.eth = eth
	c.connectedAt = time.Now()
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	log.Info("provider: client replaced", "chain", c.Chain.Name)
}

// Close tears down the client and its keepalive heartbeat, if any.
func (c *Client) Close() {
	if c.kp != nil {
		c.kp.stop()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc != nil {
		c.rpc.Close()
	}
}
