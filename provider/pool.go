// Package provider maintains exactly one live RPC client per configured
// chain, classified at configuration time as HTTP or websocket, with
// websocket keepalive/failover.
package provider

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/holograph-network/monitor/chain"
)

// ChainStatus is the externally observable health of one chain's client.
type ChainStatus struct {
	Connected       bool
	LatestSeenBlock uint64
	LastEventAt     time.Time
}

type entry struct {
	client *Client

	reconnectMu sync.Mutex
	lastAttempt time.Time

	resubscribe []func(*Client) // re-armed against a freshly dialed client

	statusMu sync.Mutex
	status   ChainStatus
}

// Pool owns every chain's live client and is safe for concurrent Get calls
// from any number of goroutines.
type Pool struct {
	registry *chain.Registry

	mu      sync.RWMutex
	entries map[string]*entry
}

// New dials every chain in reg and returns a ready Pool. Dial failures at
// startup are non-fatal per chain; the per-chain reconnect loop takes over.
func New(ctx context.Context, reg *chain.Registry) *Pool {
	p := &Pool{registry: reg, entries: make(map[string]*entry)}
	for _, c := range reg.All() {
		p.entries[c.Name] = &entry{client: &Client{Chain: c}}
		p.connect(ctx, c.Name)
	}
	return p
}

// Get returns a usable client for chain, or a *TransportUnavailable error if
// none could be established.
func (p *Pool) Get(chainName string) (*Client, error) {
	p.mu.RLock()
	e, ok := p.entries[chainName]
	p.mu.RUnlock()
	if !ok {
		return nil, &TransportUnavailable{Chain: chainName}
	}
	e.statusMu.Lock()
	connected := e.status.Connected
	e.statusMu.Unlock()
	if !connected {
		return nil, &TransportUnavailable{Chain: chainName}
	}
	return e.client, nil
}

// Status returns a snapshot of every chain's connectivity.
func (p *Pool) Status() map[string]ChainStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]ChainStatus, len(p.entries))
	for name, e := range p.entries {
		e.statusMu.Lock()
		out[name] = e.status
		e.statusMu.Unlock()
	}
	return out
}

// RecordSeenBlock updates the watermark used by Status(); the Block Ingestor
// calls this on every new header.
func (p *Pool) RecordSeenBlock(chainName string, block uint64) {
	p.mu.RLock()
	e, ok := p.entries[chainName]
	p.mu.RUnlock()
	if !ok {
		return
	}
	e.statusMu.Lock()
	e.status.LatestSeenBlock = block
	e.status.LastEventAt = time.Now()
	e.statusMu.Unlock()
}

// OnReconnect registers fn to be re-invoked with the freshly dialed client
// whenever chainName's client is replaced (e.g. to re-arm a "newHeads"
// subscription).
func (p *Pool) OnReconnect(chainName string, fn func(*Client)) {
	p.mu.RLock()
	e, ok := p.entries[chainName]
	p.mu.RUnlock()
	if !ok {
		return
	}
	e.resubscribe = append(e.resubscribe, fn)
}

func (p *Pool) connect(ctx context.Context, chainName string) {
	p.mu.RLock()
	e := p.entries[chainName]
	c, _ := p.registry.Get(chainName)
	p.mu.RUnlock()

	e.reconnectMu.Lock()
	defer e.reconnectMu.Unlock()

	if gap := time.Since(e.lastAttempt); gap < minReconnectGap && !e.lastAttempt.IsZero() {
		time.Sleep(minReconnectGap - gap)
	}
	e.lastAttempt = time.Now()

	rc, eth, err := dial(ctx, c)
	if err != nil {
		log.Warn("provider: dial failed", "chain", chainName, "err", err)
		e.statusMu.Lock()
		e.status.Connected = false
		e.statusMu.Unlock()
		go p.scheduleReconnect(ctx, chainName)
		return
	}
	e.client.replace(rc, eth)

	e.statusMu.Lock()
	e.status.Connected = true
	e.statusMu.Unlock()

	if c.Scheme().IsWebsocket() {
		kp, err := newKeepalive(c.Endpoint, func() { p.handleDrop(ctx, chainName) })
		if err != nil {
			log.Warn("provider: keepalive dial failed", "chain", chainName, "err", err)
		} else {
			e.client.mu.Lock()
			e.client.kp = kp
			e.client.mu.Unlock()
		}
	}

	for _, fn := range e.resubscribe {
		fn(e.client)
	}
	log.Info("provider: connected", "chain", chainName, "endpoint", c.Endpoint)
}

func (p *Pool) handleDrop(ctx context.Context, chainName string) {
	p.mu.RLock()
	e := p.entries[chainName]
	p.mu.RUnlock()

	e.statusMu.Lock()
	e.status.Connected = false
	e.statusMu.Unlock()

	log.Warn("provider: socket dropped, reconnecting", "chain", chainName)
	p.connect(ctx, chainName)
}

func (p *Pool) scheduleReconnect(ctx context.Context, chainName string) {
	time.Sleep(minReconnectGap)
	p.connect(ctx, chainName)
}

// Close tears down every client in the pool.
func (p *Pool) Close() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.entries {
		e.client.Close()
	}
}
