// Package pipeline implements the per-request state machine: the single
// component that orders local interception, the security predicate chain,
// upstream selection, header rewriting, response-header injection, and the
// terminal logging/metrics emission.
package pipeline

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/firasghr/tlsproxy/internal/logging"
	"github.com/firasghr/tlsproxy/internal/metrics"
	"github.com/firasghr/tlsproxy/internal/predicate"
	"github.com/firasghr/tlsproxy/internal/ratelimit"
	"github.com/firasghr/tlsproxy/internal/security"
	"github.com/firasghr/tlsproxy/internal/upstream"
)

// metricsPath is the local-interception target. Interception triggers only
// on GET; other methods fall through to the predicate chain.
const metricsPath = "/metrics"

// securityHeaders is the fixed header set injected on every proxied
// response.
var securityHeaders = [][2]string{
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload"},
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Content-Security-Policy", "default-src 'self'"},
}

// Pipeline drives one request through a fixed stage order as a single
// http.Handler: local interception, snapshot load, predicate chain,
// upstream selection, forwarding, response filtering, and terminal
// logging. A denial short-circuits; no later stage runs for that request.
type Pipeline struct {
	cell    *security.Cell
	limiter *ratelimit.Limiter
	metrics *metrics.Registry
	logger  *logging.Logger
	pool    *upstream.Pool

	transport http.RoundTripper

	// scheme is the URL scheme used to reach selected peers. Production
	// wiring always uses "https"; tests override it to exercise the
	// pipeline against a plain-HTTP httptest.Server without standing up a
	// TLS fixture.
	scheme string
}

// New builds a Pipeline. cell, limiter, metricsRegistry, logger, and pool
// must all be non-nil; transport is the http.RoundTripper used to forward
// requests to the peer SELECT-UPSTREAM chose (normally upstream.NewTransport's
// return value).
func New(cell *security.Cell, limiter *ratelimit.Limiter, metricsRegistry *metrics.Registry, logger *logging.Logger, pool *upstream.Pool, transport http.RoundTripper) *Pipeline {
	return &Pipeline{
		cell:      cell,
		limiter:   limiter,
		metrics:   metricsRegistry,
		logger:    logger,
		pool:      pool,
		transport: transport,
		scheme:    "https",
	}
}

// SetScheme overrides the upstream URL scheme; used only by tests.
func (p *Pipeline) SetScheme(scheme string) {
	p.scheme = scheme
}

// ServeHTTP implements http.Handler, driving one request through every
// stage in order. A panic anywhere in the stage chain is isolated to this
// request rather than crashing the server process.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sw := &statusWriter{ResponseWriter: w}

	// INGEST.
	start := time.Now()
	method := r.Method
	path := predicate.SanitizeUTF8([]byte(r.URL.Path))
	clientIP := clientAddress(r.RemoteAddr)
	denied := false

	defer func() {
		if rec := recover(); rec != nil {
			if sw.status == 0 {
				sw.WriteHeader(http.StatusInternalServerError)
			}
			p.logger.Errorf("pipeline: recovered panic for %s %s: %v", method, path, rec)
		}
		p.logTerminal(sw, start, method, path, clientIP, denied)
	}()

	// LOCAL-INTERCEPT.
	if method == http.MethodGet && path == metricsPath {
		p.serveMetrics(sw)
		return
	}

	// LOAD-SNAPSHOT. Held for the remainder of the request so predicates and
	// response-header injection observe one consistent configuration
	// version; a reload mid-request does not change what this request sees.
	snap := p.cell.Load()

	// PREDICATES, fixed order, first denial wins.
	if !p.limiter.Allow(clientIP, snap.RateLimitPerSecond(), start) {
		denied = true
		p.deny(sw, r, clientIP, http.StatusTooManyRequests, "rate_limited")
		return
	}
	if res := predicate.CheckPath(path, snap); res.Denied {
		denied = true
		p.deny(sw, r, clientIP, res.Status, res.Reason)
		return
	}
	if res := predicate.CheckUserAgent(predicate.SanitizeUTF8([]byte(r.Header.Get("User-Agent"))), snap); res.Denied {
		denied = true
		p.deny(sw, r, clientIP, res.Status, res.Reason)
		return
	}
	authValues, hasAuth := r.Header["Authorization"]
	auth := ""
	if hasAuth {
		auth = authValues[0]
	}
	if res := predicate.CheckBearerToken(auth, hasAuth, snap); res.Denied {
		denied = true
		p.deny(sw, r, clientIP, res.Status, res.Reason)
		return
	}

	// SELECT-UPSTREAM.
	peer, ok := p.pool.Next()
	if !ok {
		p.logger.Errorf("pipeline: no healthy upstream for %s %s", method, path)
		sw.WriteHeader(http.StatusInternalServerError)
		return
	}

	// REWRITE-UPSTREAM-REQUEST and upstream I/O.
	p.forward(sw, r, peer)
}

// deny implements the denial branch common to every predicate: respond
// with the denial status, emit a warn log naming the reason, and let
// ServeHTTP's deferred logTerminal record metrics.
func (p *Pipeline) deny(sw *statusWriter, r *http.Request, clientIP string, status int, reason string) {
	sw.WriteHeader(status)
	p.logger.Denied(logging.RequestEvent{
		ClientIP:   clientIP,
		Method:     r.Method,
		Path:       predicate.SanitizeUTF8([]byte(r.URL.Path)),
		StatusCode: status,
	}, reason)
}

// serveMetrics encodes the registry and writes it as the response,
// bypassing the predicate chain and upstream entirely.
func (p *Pipeline) serveMetrics(sw *statusWriter) {
	body, contentType, err := p.metrics.Encode()
	if err != nil {
		p.logger.Errorf("pipeline: metrics encode failed: %v", err)
		sw.WriteHeader(http.StatusInternalServerError)
		return
	}
	if contentType == "" {
		contentType = "text/plain"
	}
	sw.Header().Set("Content-Type", contentType)
	sw.Header().Set("Content-Length", strconv.Itoa(len(body)))
	sw.WriteHeader(http.StatusOK)
	_, _ = sw.Write(body)
}

// forward implements REWRITE-UPSTREAM-REQUEST, RECEIVE-RESPONSE, and the
// upstream I/O in between. The Host header is overwritten to the
// configured upstream SNI; every other header passes through unchanged.
func (p *Pipeline) forward(sw *statusWriter, r *http.Request, peer *upstream.Peer) {
	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, p.scheme+"://"+peer.Addr+r.URL.RequestURI(), r.Body)
	if err != nil {
		p.logger.Errorf("pipeline: build upstream request: %v", err)
		sw.WriteHeader(http.StatusInternalServerError)
		return
	}
	outReq.Header = r.Header.Clone()
	outReq.ContentLength = r.ContentLength
	outReq.Host = p.pool.UpstreamSNI()

	resp, err := p.transport.RoundTrip(outReq)
	if err != nil {
		p.logger.Errorf("pipeline: upstream request failed: %v", err)
		sw.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	// RECEIVE-RESPONSE: inject the fixed security header set before the
	// response head reaches the client.
	for k, vals := range resp.Header {
		for _, v := range vals {
			sw.Header().Add(k, v)
		}
	}
	for _, h := range securityHeaders {
		sw.Header().Set(h[0], h[1])
	}
	sw.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(sw, resp.Body)
}

// logTerminal is the LOG stage: record exactly one counter increment and
// one histogram observation with identical labels, then emit the terminal
// structured log record. It runs unconditionally via defer so every code
// path, including a client disconnect or a recovered panic, reaches it
// exactly once. Denied requests already emitted their warn-level record
// from deny, so logTerminal does not duplicate it with a second info-level
// "request" line.
func (p *Pipeline) logTerminal(sw *statusWriter, start time.Time, method, path, clientIP string, denied bool) {
	duration := time.Since(start)
	status := sw.status

	p.metrics.Record(status, method, path, duration.Seconds())
	if denied {
		return
	}
	p.logger.Request(logging.RequestEvent{
		ClientIP:   clientIP,
		Method:     method,
		Path:       path,
		LatencySec: duration.Seconds(),
		StatusCode: status,
	})
}

// clientAddress derives the rate-limit and logging identity from the
// transport-level remote socket address: the full "host:port" string
// verbatim, "unknown" if unavailable. Forwarded/X-Forwarded-For are
// deliberately not consulted.
func clientAddress(remoteAddr string) string {
	if remoteAddr == "" {
		return "unknown"
	}
	return remoteAddr
}

// statusWriter wraps http.ResponseWriter to capture the status code
// actually written, so the LOG stage can record it even when the handler
// never calls WriteHeader explicitly; status stays 0 if nothing was sent.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	if s.status != 0 {
		return
	}
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.WriteHeader(http.StatusOK)
	}
	return s.ResponseWriter.Write(b)
}

// Flush satisfies http.Flusher when the underlying ResponseWriter does, so
// streamed upstream bodies (e.g. SSE, chunked transfer) are forwarded
// without buffering an entire response in memory.
func (s *statusWriter) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
