package upstream_test

import (
	"testing"

	"github.com/firasghr/tlsproxy/internal/upstream"
)

func TestNewPoolRejectsEmpty(t *testing.T) {
	if _, err := upstream.NewPool(nil); err == nil {
		t.Error("expected error for empty address list")
	}
}

func TestUpstreamSNIIsFirstHost(t *testing.T) {
	pool, err := upstream.NewPool([]string{"origin.internal:8443", "origin2.internal:8443"})
	if err != nil {
		t.Fatal(err)
	}
	if got := pool.UpstreamSNI(); got != "origin.internal" {
		t.Errorf("got SNI %q, want origin.internal", got)
	}
}

func TestNextRotatesRoundRobin(t *testing.T) {
	pool, err := upstream.NewPool([]string{"a:1", "b:1", "c:1"})
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]int{}
	for i := 0; i < 30; i++ {
		peer, ok := pool.Next()
		if !ok {
			t.Fatal("expected a healthy peer")
		}
		seen[peer.Addr]++
	}
	for _, addr := range []string{"a:1", "b:1", "c:1"} {
		if seen[addr] == 0 {
			t.Errorf("peer %q was never selected across 30 calls", addr)
		}
	}
}

func TestNextSkipsUnhealthyPeers(t *testing.T) {
	pool, err := upstream.NewPool([]string{"a:1", "b:1"})
	if err != nil {
		t.Fatal(err)
	}
	peers := pool.Peers()
	peers[0].SetHealthy(false)

	for i := 0; i < 10; i++ {
		peer, ok := pool.Next()
		if !ok {
			t.Fatal("expected a healthy peer")
		}
		if peer.Addr != "b:1" {
			t.Errorf("got peer %q, want only the healthy peer b:1", peer.Addr)
		}
	}
}

func TestNextReturnsFalseWhenAllUnhealthy(t *testing.T) {
	pool, err := upstream.NewPool([]string{"a:1", "b:1"})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range pool.Peers() {
		p.SetHealthy(false)
	}
	if _, ok := pool.Next(); ok {
		t.Error("expected no healthy peer to be available")
	}
}
