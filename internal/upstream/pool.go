// Package upstream provides the round-robin peer pool, the periodic TCP
// health probe, and the TLS transport used to forward proxied requests to
// the configured backend origins. A peer taken down by the health checker
// is skipped without disturbing the round-robin order of the remaining
// peers.
package upstream

import (
	"fmt"
	"net"
	"strings"
	"sync/atomic"
)

// ringSize is the number of selection slots the rotation walks. The ring
// is populated by repeating the peer list until it is exactly ringSize
// entries long. When the peer count does not divide ringSize, the first
// ringSize%len(peers) peers hold one slot more than the others.
const ringSize = 256

// Peer is one configured backend origin.
type Peer struct {
	// Addr is the "host:port" string from the configuration file.
	Addr string
	// Host is Addr's host portion, used for SNI/Host-header rewriting.
	Host string

	healthy atomic.Bool
}

// Pool holds the configured peers and rotates through the healthy ones in
// round-robin order.
//
// Thread-safety: ring is built once at construction and never mutated, so
// reads of it require no lock. Only the rotation cursor needs
// synchronization, and it is a single atomic counter; Next is called on
// every proxied request.
type Pool struct {
	peers  []*Peer
	ring   [ringSize]*Peer
	cursor uint64
}

// NewPool builds a Pool from an ordered, non-empty list of "host:port"
// upstream addresses. All peers start healthy; the
// health checker (see HealthChecker) is expected to mark them down after
// failed probes.
func NewPool(addrs []string) (*Pool, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("upstream: at least one address is required")
	}

	peers := make([]*Peer, 0, len(addrs))
	for _, addr := range addrs {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			// Tolerate a bare host with no port (SNI-only config); fall
			// back to the whole string as the host.
			host = strings.TrimSpace(addr)
		}
		p := &Peer{Addr: addr, Host: host}
		p.healthy.Store(true)
		peers = append(peers, p)
	}

	p := &Pool{peers: peers}
	for i := range p.ring {
		p.ring[i] = peers[i%len(peers)]
	}
	return p, nil
}

// UpstreamSNI returns the host portion of the first configured upstream,
// the server name used for every outbound TLS handshake and Host-header
// rewrite.
func (p *Pool) UpstreamSNI() string {
	return p.peers[0].Host
}

// Next selects the next healthy peer in round-robin order.
// It advances the shared cursor by one ring slot per attempt, so concurrent
// callers fan out across the ring rather than contending on a single peer;
// a slot holding an unhealthy peer costs one extra advance. If a full ring
// of attempts finds no healthy peer it returns (nil, false); the pipeline
// maps this to a 500.
func (p *Pool) Next() (*Peer, bool) {
	for attempt := 0; attempt < ringSize; attempt++ {
		idx := atomic.AddUint64(&p.cursor, 1) % ringSize
		peer := p.ring[idx]
		if peer.healthy.Load() {
			return peer, true
		}
	}
	return nil, false
}

// Peers returns every configured peer, for the health checker to iterate.
func (p *Pool) Peers() []*Peer {
	return p.peers
}

// SetHealthy updates a peer's liveness. Called by the health checker after
// each TCP probe; never blocks Next.
func (p *Peer) SetHealthy(healthy bool) {
	p.healthy.Store(healthy)
}

// Healthy reports the peer's last-known liveness.
func (p *Peer) Healthy() bool {
	return p.healthy.Load()
}
