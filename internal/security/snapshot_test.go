package security_test

import (
	"sync"
	"testing"

	"github.com/firasghr/tlsproxy/internal/security"
)

func TestNewSeedsDefaultBlocklists(t *testing.T) {
	snap := security.New(10, []byte("key"), security.Options{})

	foundUA := false
	for _, ua := range snap.BlockedUserAgentSubstrings() {
		if ua == "curl" {
			foundUA = true
		}
	}
	if !foundUA {
		t.Error("expected seeded blocked user agent \"curl\"")
	}

	foundPrefix := false
	for _, p := range snap.BlockedPathPrefixes() {
		if p == "/admin" {
			foundPrefix = true
		}
	}
	if !foundPrefix {
		t.Error("expected seeded blocked path prefix \"/admin\"")
	}
}

func TestNewExtendsBlocklists(t *testing.T) {
	snap := security.New(10, []byte("key"), security.Options{
		ExtraBlockedUserAgents:   []string{"EvilBot"},
		ExtraBlockedPathPrefixes: []string{"/Secret"},
	})

	uas := snap.BlockedUserAgentSubstrings()
	if uas[len(uas)-1] != "evilbot" {
		t.Errorf("expected extra user agent lowercased and appended, got %v", uas)
	}
	prefixes := snap.BlockedPathPrefixes()
	if prefixes[len(prefixes)-1] != "/secret" {
		t.Errorf("expected extra prefix lowercased and appended, got %v", prefixes)
	}
}

func TestCellLoadStore(t *testing.T) {
	s1 := security.New(10, []byte("k1"), security.Options{})
	cell := security.NewCell(s1)

	if cell.Load() != s1 {
		t.Fatal("expected Load to return the initial snapshot")
	}

	s2 := security.New(20, []byte("k2"), security.Options{})
	cell.Store(s2)

	if cell.Load() != s2 {
		t.Fatal("expected Load to return the newly published snapshot")
	}
}

func TestCellInFlightReaderUnaffectedByReload(t *testing.T) {
	s1 := security.New(10, []byte("k1"), security.Options{})
	cell := security.NewCell(s1)

	held := cell.Load()

	s2 := security.New(20, []byte("k2"), security.Options{})
	cell.Store(s2)

	if held.RateLimitPerSecond() != 10 {
		t.Errorf("expected in-flight reader to keep old snapshot, got rate %d", held.RateLimitPerSecond())
	}
	if cell.Load().RateLimitPerSecond() != 20 {
		t.Errorf("expected new reader to see new snapshot, got rate %d", cell.Load().RateLimitPerSecond())
	}
}

func TestCellConcurrentLoadAndStore(t *testing.T) {
	cell := security.NewCell(security.New(1, []byte("k"), security.Options{}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := uint32(0); i < 1000; i++ {
			cell.Store(security.New(i+1, []byte("k"), security.Options{}))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if cell.Load() == nil {
				t.Error("Load returned nil during concurrent Store")
			}
		}
	}()
	wg.Wait()
}
