package upstream_test

import (
	"net"
	"testing"
	"time"

	"github.com/firasghr/tlsproxy/internal/upstream"
)

func TestHealthCheckerMarksReachablePeerHealthy(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	pool, err := upstream.NewPool([]string{ln.Addr().String()})
	if err != nil {
		t.Fatal(err)
	}

	hc := upstream.NewHealthChecker(pool)
	hc.Start()
	defer hc.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pool.Peers()[0].Healthy() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected peer to be marked healthy after a successful probe")
}

func TestHealthCheckerMarksUnreachablePeerDown(t *testing.T) {
	// A listener that is bound and then closed gives a port that refuses
	// connections, so the first probe must flip the peer unhealthy.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	pool, err := upstream.NewPool([]string{addr})
	if err != nil {
		t.Fatal(err)
	}

	hc := upstream.NewHealthChecker(pool)
	hc.Start()
	defer hc.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !pool.Peers()[0].Healthy() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected peer to be marked down after a failed probe")
}

func TestHealthCheckerStopIsIdempotent(t *testing.T) {
	pool, err := upstream.NewPool([]string{"127.0.0.1:1"})
	if err != nil {
		t.Fatal(err)
	}
	hc := upstream.NewHealthChecker(pool)
	hc.Start()
	hc.Stop()
	hc.Stop()
}
