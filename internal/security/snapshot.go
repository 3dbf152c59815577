// Package security holds the immutable Snapshot of runtime security
// parameters and the Cell that publishes it atomically. A Snapshot bundles
// everything the predicate chain needs so a single load at the top of the
// pipeline guarantees every predicate, and the response-header stage,
// observe the same configuration version for one request.
package security

import (
	"strings"
)

// defaultBlockedUserAgents and defaultBlockedPathPrefixes are the seed
// blocklists. Construction may extend, but never shrink, these.
var (
	defaultBlockedUserAgents = []string{"curl", "python-requests", "wget", "python-urllib"}

	defaultBlockedPathPrefixes = []string{"/.env", "/.git", "/admin", "/.aws", "/.ssh"}
)

// PathTraversalMarker is the literal substring that, found anywhere in a
// request path, denies the request regardless of blocklists.
const PathTraversalMarker = ".."

// Snapshot is an immutable bundle of security configuration. Once
// constructed it is never mutated; a reload builds a new Snapshot and
// publishes it via Cell.Store. Readers that loaded a Snapshot before a
// reload keep observing it until their request completes.
type Snapshot struct {
	rateLimitPerSecond uint32
	tokenKey           []byte
	blockedUserAgents  []string
	blockedPathPrefix  []string
}

// Options configures New beyond the seeded defaults.
type Options struct {
	// ExtraBlockedUserAgents is appended to the seeded user-agent blocklist.
	ExtraBlockedUserAgents []string
	// ExtraBlockedPathPrefixes is appended to the seeded path blocklist.
	ExtraBlockedPathPrefixes []string
}

// New builds a Snapshot from a rate limit ceiling and an HMAC-SHA-256
// token key, seeded with the default blocklists plus any caller
// extensions. Blocklist entries are stored lowercased since both
// predicates compare case-insensitively.
func New(rateLimitPerSecond uint32, tokenKey []byte, opts Options) *Snapshot {
	uas := make([]string, 0, len(defaultBlockedUserAgents)+len(opts.ExtraBlockedUserAgents))
	for _, ua := range defaultBlockedUserAgents {
		uas = append(uas, strings.ToLower(ua))
	}
	for _, ua := range opts.ExtraBlockedUserAgents {
		uas = append(uas, strings.ToLower(ua))
	}

	prefixes := make([]string, 0, len(defaultBlockedPathPrefixes)+len(opts.ExtraBlockedPathPrefixes))
	for _, p := range defaultBlockedPathPrefixes {
		prefixes = append(prefixes, strings.ToLower(p))
	}
	for _, p := range opts.ExtraBlockedPathPrefixes {
		prefixes = append(prefixes, strings.ToLower(p))
	}

	key := make([]byte, len(tokenKey))
	copy(key, tokenKey)

	return &Snapshot{
		rateLimitPerSecond: rateLimitPerSecond,
		tokenKey:           key,
		blockedUserAgents:  uas,
		blockedPathPrefix:  prefixes,
	}
}

// RateLimitPerSecond returns the per-client ceiling this Snapshot enforces.
func (s *Snapshot) RateLimitPerSecond() uint32 {
	return s.rateLimitPerSecond
}

// TokenKey returns the HMAC-SHA-256 secret bytes used to validate bearer
// tokens. Callers must not mutate the returned slice.
func (s *Snapshot) TokenKey() []byte {
	return s.tokenKey
}

// BlockedUserAgentSubstrings returns the lowercase substring blocklist.
func (s *Snapshot) BlockedUserAgentSubstrings() []string {
	return s.blockedUserAgents
}

// BlockedPathPrefixes returns the lowercase prefix blocklist.
func (s *Snapshot) BlockedPathPrefixes() []string {
	return s.blockedPathPrefix
}
