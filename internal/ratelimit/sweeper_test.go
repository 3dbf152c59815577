package ratelimit_test

import (
	"testing"

	"github.com/firasghr/tlsproxy/internal/ratelimit"
)

func TestSweeperStartStopIsIdempotent(t *testing.T) {
	l := ratelimit.New()
	s := ratelimit.NewSweeper(l)
	s.Start()
	s.Stop()
	s.Stop()
}
