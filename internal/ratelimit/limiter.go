// Package ratelimit implements a per-client sliding-window rate limiter:
// each client identity gets its own mutex-guarded timestamp window, and the
// outer map supports concurrent reads and writes without a global lock.
package ratelimit

import (
	"sync"
	"time"
)

// window is the rolling accounting interval.
const window = time.Second

// entry is one client's sliding window: an ordered sequence of monotonic
// instants, all within the last second of the last observation, mutated
// only under mu.
type entry struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// Limiter maps client identities to their sliding windows. The sync.Map
// gives lock-free reads for existing keys and fine-grained contention only
// on first-seen clients, while each entry's own mutex serializes the tiny
// trim-and-append critical section. No I/O ever happens under an entry
// lock.
type Limiter struct {
	entries sync.Map // string -> *entry
}

// New creates an empty Limiter.
func New() *Limiter {
	return &Limiter{}
}

// Allow reports whether clientID may make another request: a client is
// allowed iff the count of timestamps retained within the last second is
// strictly less than limit. On allow, now is appended; on denial, nothing
// is recorded. limit is read from the current Snapshot by the caller on
// every call, so a reload's new ceiling takes effect on the very next check
// for a client without the Limiter needing to know about reloads at all.
func (l *Limiter) Allow(clientID string, limit uint32, now time.Time) bool {
	e := l.getOrCreate(clientID)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.timestamps = trim(e.timestamps, now)
	if uint32(len(e.timestamps)) >= limit {
		return false
	}
	e.timestamps = append(e.timestamps, now)
	return true
}

// getOrCreate returns the entry for clientID, allocating one only on a
// miss. The fast path (existing key) performs a single sync.Map.Load with
// no allocation, so a client's steady-state requests never allocate here.
func (l *Limiter) getOrCreate(clientID string) *entry {
	if v, ok := l.entries.Load(clientID); ok {
		return v.(*entry)
	}
	e := &entry{}
	actual, _ := l.entries.LoadOrStore(clientID, e)
	return actual.(*entry)
}

// trim drops every timestamp t with now-t >= window, using time.Sub which
// never panics on clock skew (it saturates like any signed duration
// subtraction between two monotonic reads from the same clock source).
// Timestamps are appended in non-decreasing order, so the retained suffix
// is always a contiguous tail; trim finds it in a single forward scan.
func trim(timestamps []time.Time, now time.Time) []time.Time {
	cut := 0
	for cut < len(timestamps) && now.Sub(timestamps[cut]) >= window {
		cut++
	}
	if cut == 0 {
		return timestamps
	}
	remaining := len(timestamps) - cut
	copy(timestamps, timestamps[cut:])
	return timestamps[:remaining]
}

// Evict removes any client entry whose newest timestamp is older than the
// window, bounding memory by unique active clients.
// Eviction is opportunistic: it never alters the accept/deny
// decision for a live window because a trimmed, expired entry is
// behaviorally identical to a freshly created one.
func (l *Limiter) Evict(now time.Time) {
	l.entries.Range(func(key, value interface{}) bool {
		e := value.(*entry)
		e.mu.Lock()
		stale := len(e.timestamps) == 0 || now.Sub(e.timestamps[len(e.timestamps)-1]) >= window
		e.mu.Unlock()
		if stale {
			l.entries.Delete(key)
		}
		return true
	})
}
