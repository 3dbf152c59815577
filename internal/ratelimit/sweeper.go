package ratelimit

import (
	"sync"
	"time"
)

// sweepInterval is how often the background sweep evicts stale client
// entries. Eviction is purely a memory bound; correctness never depends on
// it, so the cadence is deliberately coarse.
const sweepInterval = 30 * time.Second

// Sweeper periodically evicts stale entries from a Limiter so memory stays
// bounded by the set of clients active within the window: a single control
// goroutine plus an idempotent stop channel.
type Sweeper struct {
	limiter  *Limiter
	interval time.Duration

	stopCh chan struct{}
	once   sync.Once
	done   chan struct{}
}

// NewSweeper builds a Sweeper for limiter. Call Start to begin sweeping.
func NewSweeper(limiter *Limiter) *Sweeper {
	return &Sweeper{
		limiter:  limiter,
		interval: sweepInterval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop. Non-blocking; the loop runs
// until Stop is called.
func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.limiter.Evict(time.Now())
			}
		}
	}()
}

// Stop signals the sweep loop to exit and waits for it to finish. Idempotent.
func (s *Sweeper) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
	})
	<-s.done
}
