// Package chain describes the static, per-network configuration that every
// other component in the monitor reads but never mutates after startup.
package chain

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Scheme identifies the transport a Chain's endpoint uses.
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
	SchemeWS    Scheme = "ws"
	SchemeWSS   Scheme = "wss"
)

// IsWebsocket reports whether the scheme requires the keepalive/failover
// treatment described in provider.Pool.
func (s Scheme) IsWebsocket() bool { return s == SchemeWS || s == SchemeWSS }

// PeerAddresses holds the protocol contracts this chain exposes. Fields are
// common.Address byte arrays, independent of the hex case they were parsed
// from, so the Transaction Filter compares them byte-for-byte against
// decoded transaction fields.
type PeerAddresses struct {
	Bridge             common.Address
	Factory             common.Address
	Operator            common.Address
	LayerZeroReceiver    common.Address
}

// Chain is created once at configuration load and lives for the process
// lifetime. It is shared read-only by the Provider Pool and every downstream
// component; nothing may mutate a Chain after its Registry is built.
type Chain struct {
	Name        string
	ChainID     uint64
	HolographID uint32
	Endpoint    string
	scheme      Scheme
	Peers       PeerAddresses
}

// Scheme returns the transport scheme parsed from Endpoint.
func (c *Chain) Scheme() Scheme { return c.scheme }

// New validates and constructs a Chain. The endpoint's scheme must be one of
// http, https, ws, wss.
func New(name string, chainID uint64, holographID uint32, endpoint string, peers PeerAddresses) (*Chain, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("chain %s: invalid endpoint %q: %w", name, endpoint, err)
	}
	scheme := Scheme(strings.ToLower(u.Scheme))
	switch scheme {
	case SchemeHTTP, SchemeHTTPS, SchemeWS, SchemeWSS:
	default:
		return nil, fmt.Errorf("chain %s: unsupported endpoint scheme %q", name, u.Scheme)
	}
	return &Chain{
		Name:        name,
		ChainID:     chainID,
		HolographID: holographID,
		Endpoint:    endpoint,
		scheme:      scheme,
		Peers:       peers,
	}, nil
}

// String implements fmt.Stringer for logging.
func (c *Chain) String() string {
	return fmt.Sprintf("%s(chainId=%d,holographId=%d)", c.Name, c.ChainID, c.HolographID)
}
