package chain

import "testing"

func mustChain(t *testing.T, name string) *Chain {
	t.Helper()
	c, err := New(name, 1, 1, "https://rpc.example.com", PeerAddresses{})
	if err != nil {
		t.Fatalf("New(%s): %v", name, err)
	}
	return c
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry([]*Chain{mustChain(t, "eth"), mustChain(t, "eth")})
	if err == nil {
		t.Fatalf("expected an error for duplicate chain names")
	}
}

func TestRegistryGetAndAllPreserveOrder(t *testing.T) {
	reg, err := NewRegistry([]*Chain{mustChain(t, "eth"), mustChain(t, "polygon"), mustChain(t, "avalanche")})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	c, ok := reg.Get("polygon")
	if !ok || c.Name != "polygon" {
		t.Fatalf("Get(polygon) = %+v, ok=%v", c, ok)
	}

	if _, ok := reg.Get("missing"); ok {
		t.Errorf("expected Get(missing) to report ok=false")
	}

	wantOrder := []string{"eth", "polygon", "avalanche"}
	names := reg.Names()
	if len(names) != len(wantOrder) {
		t.Fatalf("Names() = %v, want %v", names, wantOrder)
	}
	for i, name := range wantOrder {
		if names[i] != name {
			t.Errorf("Names()[%d] = %s, want %s", i, names[i], name)
		}
	}

	all := reg.All()
	if len(all) != len(wantOrder) {
		t.Fatalf("All() returned %d chains, want %d", len(all), len(wantOrder))
	}
}
