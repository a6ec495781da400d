package lifecycle

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/holograph-network/monitor/chain"
	"github.com/holograph-network/monitor/provider"
)

func emptyPool(t *testing.T) *provider.Pool {
	t.Helper()
	reg, err := chain.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return provider.New(context.Background(), reg)
}

func TestHealthcheckServesStatusAlive(t *testing.T) {
	h := NewHealthcheck(emptyPool(t))
	req := httptest.NewRequest("GET", "/healthcheck", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "alive" {
		t.Errorf("status = %q, want alive", body.Status)
	}
}

func TestHealthcheckOtherPathsReturnOK(t *testing.T) {
	h := NewHealthcheck(emptyPool(t))
	req := httptest.NewRequest("GET", "/anything", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestPortAddrDefaultsTo6000(t *testing.T) {
	if got := portAddr(0); got != ":6000" {
		t.Errorf("portAddr(0) = %s, want :6000", got)
	}
	if got := portAddr(-1); got != ":6000" {
		t.Errorf("portAddr(-1) = %s, want :6000", got)
	}
	if got := portAddr(8080); got != ":8080" {
		t.Errorf("portAddr(8080) = %s, want :8080", got)
	}
}
