// tlsproxy is a TLS-terminating reverse proxy with a sliding-window
// per-client rate limiter, a deterministic request-denial predicate chain,
// and hot-reloadable security configuration.
//
// Startup sequence:
//  1. Build the logger, then load and validate configuration from the path
//     given as the sole CLI argument (default "config.yaml").
//  2. Build the initial security Snapshot and publish it into the Hot-Swap
//     Cell.
//  3. Construct the rate limiter (with its stale-entry sweeper) and the
//     metrics registry.
//  4. Build the upstream pool and start its 1 Hz health check.
//  5. Build the outbound transport and assemble the request pipeline.
//  6. Start the Reload Supervisor, which applies a fresh Snapshot on SIGHUP.
//  7. Bind a TLS listener with ALPN advertising HTTP/2 and HTTP/1.1, and
//     serve until SIGINT or SIGTERM triggers a graceful shutdown.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/firasghr/tlsproxy/internal/config"
	"github.com/firasghr/tlsproxy/internal/logging"
	"github.com/firasghr/tlsproxy/internal/metrics"
	"github.com/firasghr/tlsproxy/internal/pipeline"
	"github.com/firasghr/tlsproxy/internal/ratelimit"
	"github.com/firasghr/tlsproxy/internal/reload"
	"github.com/firasghr/tlsproxy/internal/security"
	"github.com/firasghr/tlsproxy/internal/upstream"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// ── CLI ────────────────────────────────────────────────────────────────
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	// ── Logger ─────────────────────────────────────────────────────────────
	log := logging.Default()
	log.Info("tlsproxy starting up")

	// ── Configuration ──────────────────────────────────────────────────────
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Errorf("failed to load config from %q: %v", configPath, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Errorf("invalid config %q: %v", configPath, err)
		os.Exit(1)
	}
	log.Infof("configuration loaded from %q", configPath)

	// ── Security snapshot ──────────────────────────────────────────────────
	snap := security.New(cfg.RateLimitPerSecond, []byte(cfg.JWTSecret), security.Options{})
	cell := security.NewCell(snap)

	// ── Rate limiter and metrics ───────────────────────────────────────────
	limiter := ratelimit.New()
	sweeper := ratelimit.NewSweeper(limiter)
	sweeper.Start()
	registry := metrics.New()

	// ── Upstream pool and health checks ─────────────────────────────────────
	pool, err := upstream.NewPool(cfg.UpstreamIPs)
	if err != nil {
		log.Errorf("failed to build upstream pool: %v", err)
		os.Exit(1)
	}
	health := upstream.NewHealthChecker(pool)
	health.Start()
	log.Infof("upstream pool ready with %d peer(s); SNI=%s", len(cfg.UpstreamIPs), pool.UpstreamSNI())

	transport, err := upstream.NewTransport(pool.UpstreamSNI())
	if err != nil {
		log.Errorf("failed to build upstream transport: %v", err)
		os.Exit(1)
	}

	// ── Pipeline ───────────────────────────────────────────────────────────
	p := pipeline.New(cell, limiter, registry, log, pool, transport)

	// ── Reload supervisor ──────────────────────────────────────────────────
	sup := reload.New(configPath, cell, log)
	sup.Start()
	log.Info("reload supervisor listening for SIGHUP")

	// ── TLS listener ───────────────────────────────────────────────────────
	cert, err := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath)
	if err != nil {
		log.Errorf("failed to load TLS certificate: %v", err)
		os.Exit(1)
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
		NextProtos:       []string{"h2", "http/1.1"},
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.ListenPort)
	server := &http.Server{
		Addr:      addr,
		Handler:   p,
		TLSConfig: tlsConfig,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", addr)
		// Certificate and key are already embedded in TLSConfig; empty paths
		// tell ListenAndServeTLS to use it as-is.
		serverErrCh <- server.ListenAndServeTLS("", "")
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received signal %s; shutting down", sig)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			log.Errorf("listener error: %v", err)
		}
	}

	sup.Stop()
	health.Stop()
	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("shutdown error: %v", err)
	}

	log.Info("tlsproxy shut down cleanly")
}
