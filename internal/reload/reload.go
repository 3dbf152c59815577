// Package reload implements the reload supervisor: it watches the POSIX
// SIGHUP signal and, on receipt, re-reads the configuration file,
// validates it, and publishes a freshly built Snapshot through the Cell.
// Listeners, the load balancer, and the rate-limit store are untouched by
// a reload.
package reload

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/firasghr/tlsproxy/internal/config"
	"github.com/firasghr/tlsproxy/internal/logging"
	"github.com/firasghr/tlsproxy/internal/security"
)

// Supervisor watches for SIGHUP and reloads configuration into cell.
// configPath is the path originally supplied at startup; reload always
// re-reads from that same path.
type Supervisor struct {
	configPath string
	cell       *security.Cell
	logger     *logging.Logger

	sigCh  chan os.Signal
	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once
}

// New builds a Supervisor. Call Start to begin watching for SIGHUP.
func New(configPath string, cell *security.Cell, logger *logging.Logger) *Supervisor {
	return &Supervisor{
		configPath: configPath,
		cell:       cell,
		logger:     logger,
		sigCh:      make(chan os.Signal, 1),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start subscribes to SIGHUP and launches the background goroutine that
// calls Reload on every signal. Non-blocking.
func (s *Supervisor) Start() {
	signal.Notify(s.sigCh, syscall.SIGHUP)
	go func() {
		defer close(s.done)
		for {
			select {
			case <-s.stopCh:
				signal.Stop(s.sigCh)
				return
			case <-s.sigCh:
				s.Reload()
			}
		}
	}()
}

// Reload re-reads the config file, validates it, and publishes a new
// Snapshot. A failure at any step retains the current Snapshot and logs an
// error; reload failures are never fatal.
func (s *Supervisor) Reload() error {
	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		s.logger.Errorf("reload: load config %q: %v", s.configPath, err)
		return err
	}
	if err := cfg.Validate(); err != nil {
		s.logger.Errorf("reload: invalid config %q: %v", s.configPath, err)
		return err
	}

	snap := security.New(cfg.RateLimitPerSecond, []byte(cfg.JWTSecret), security.Options{})
	s.cell.Store(snap)
	s.logger.Infof("reload: applied new snapshot from %q (rate_limit_per_second=%d)", s.configPath, cfg.RateLimitPerSecond)
	return nil
}

// Stop signals the watch goroutine to exit and waits for it to finish.
// Idempotent.
func (s *Supervisor) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
	})
	<-s.done
}
