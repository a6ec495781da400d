package lifecycle

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/holograph-network/monitor/provider"
)

// healthResponse is the response shape for GET /healthcheck:
// {status:"alive", providerStatus:{...}}.
type healthResponse struct {
	Status         string                            `json:"status"`
	ProviderStatus map[string]provider.ChainStatus    `json:"providerStatus"`
}

// Healthcheck serves the optional healthcheck endpoint: any path other than
// /healthcheck returns 200 with a placeholder body.
type Healthcheck struct {
	pool *provider.Pool
}

// NewHealthcheck constructs a Healthcheck backed by pool's status.
func NewHealthcheck(pool *provider.Pool) *Healthcheck {
	return &Healthcheck{pool: pool}
}

func (h *Healthcheck) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/healthcheck" {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
		return
	}
	resp := healthResponse{Status: "alive", ProviderStatus: h.pool.Status()}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("lifecycle: healthcheck encode failed", "err", err)
	}
}

// Serve starts an HTTP server exposing Healthcheck on port, returning once
// ctx is cancelled. It is intended to run as a Lifecycle.Go worker.
func Serve(ctx Done, port int, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: portAddr(port), Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Done is the minimal subset of context.Context that Serve needs, kept
// narrow so callers don't have to import "context" just to call it.
type Done interface {
	Done() <-chan struct{}
}

func portAddr(port int) string {
	if port <= 0 {
		port = 6000
	}
	return ":" + strconv.Itoa(port)
}
