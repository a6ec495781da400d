package provider

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"
)

// Keepalive tuning.
const (
	checkInterval    = 7500 * time.Millisecond
	expectedPongBack = 15 * time.Second
	minReconnectGap  = 5 * time.Second
)

// keepalive maintains a raw control-frame heartbeat over a websocket
// connection, independent of the JSON-RPC traffic multiplexed over the same
// transport. It exists because silent socket drops (middlebox timeouts,
// load-balancer idle kills) are not always surfaced as JSON-RPC errors.
//
// On pong timeout or socket error it calls onDrop, which the Pool wires to
// its reconnect logic.
type keepalive struct {
	conn   *websocket.Conn
	onDrop func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newKeepalive(endpoint string, onDrop func()) (*keepalive, error) {
	conn, _, err := websocket.DefaultDialer.Dial(toWSURL(endpoint), nil)
	if err != nil {
		return nil, err
	}
	k := &keepalive{conn: conn, onDrop: onDrop}
	conn.SetPongHandler(func(string) error {
		k.mu.Lock()
		defer k.mu.Unlock()
		if k.timer != nil {
			k.timer.Stop()
		}
		return nil
	})
	// The pong handler runs only while the connection is being read, so
	// drain incoming frames until the connection closes.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	go k.run()
	return k, nil
}

func (k *keepalive) run() {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for range ticker.C {
		k.mu.Lock()
		if k.stopped {
			k.mu.Unlock()
			return
		}
		if err := k.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(checkInterval)); err != nil {
			k.mu.Unlock()
			k.trigger()
			return
		}
		k.timer = time.AfterFunc(expectedPongBack, k.trigger)
		k.mu.Unlock()
	}
}

// trigger fires at most once: it tears down the connection and invokes
// onDrop so the owning Pool can reconnect.
func (k *keepalive) trigger() {
	k.mu.Lock()
	if k.stopped {
		k.mu.Unlock()
		return
	}
	k.stopped = true
	k.mu.Unlock()

	log.Warn("provider: keepalive deadline missed, dropping socket")
	k.conn.Close()
	if k.onDrop != nil {
		k.onDrop()
	}
}

func (k *keepalive) stop() {
	k.mu.Lock()
	if k.stopped {
		k.mu.Unlock()
		return
	}
	k.stopped = true
	if k.timer != nil {
		k.timer.Stop()
	}
	k.mu.Unlock()
	k.conn.Close()
}

// toWSURL is a no-op passthrough kept as a named seam: endpoints are already
// validated to be ws/wss by chain.New before a keepalive is ever constructed.
func toWSURL(endpoint string) string { return endpoint }
