package upstream

import (
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// Connection-pool sizing assumes every request funnels through the same
// small, configured set of backend peers rather than many independent
// targets, so per-host idle limits are kept generous.
const (
	maxIdleConns        = 200
	maxIdleConnsPerHost = 100
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
)

// NewTransport builds the http.RoundTripper the pipeline forwards proxied
// requests through. TLSClientConfig pins ServerName to sni and advertises
// h2 + http/1.1 over ALPN; http2.ConfigureTransport upgrades the connection
// to HTTP/2 transparently whenever the peer negotiates it.
func NewTransport(sni string) (http.RoundTripper, error) {
	t := &http.Transport{
		TLSClientConfig:     NewClientTLSConfig(sni),
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}
	if err := http2.ConfigureTransport(t); err != nil {
		return nil, err
	}
	return t, nil
}
