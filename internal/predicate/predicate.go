// Package predicate implements the three stateless request validators:
// path, user-agent, and bearer-token checks. Each reads only from a
// *security.Snapshot and returns either success or a denial status.
package predicate

import (
	"strings"

	"github.com/firasghr/tlsproxy/internal/security"
)

// Result is the outcome of evaluating one predicate.
type Result struct {
	// Denied is false for Ok.
	Denied bool
	// Status is the HTTP status to return on denial; meaningless when
	// Denied is false.
	Status int
	// Reason is a short machine-stable tag for logging, e.g. "path_blocked".
	Reason string
}

// ok is the shared zero-value success result.
var ok = Result{}

// CheckPath denies paths containing a traversal marker or starting with a
// blocked prefix. rawPath is the UTF-8 view of the request path as produced
// by the pipeline's INGEST stage (already empty if the original bytes were
// not valid UTF-8). No normalization happens before the check.
func CheckPath(rawPath string, snap *security.Snapshot) Result {
	if strings.Contains(rawPath, security.PathTraversalMarker) {
		return Result{Denied: true, Status: 403, Reason: "path_traversal"}
	}
	lower := strings.ToLower(rawPath)
	for _, prefix := range snap.BlockedPathPrefixes() {
		if strings.HasPrefix(lower, prefix) {
			return Result{Denied: true, Status: 403, Reason: "path_blocked"}
		}
	}
	return ok
}

// CheckUserAgent denies requests whose User-Agent is missing, empty, or
// contains a blocked substring. userAgent is the UTF-8 view of the header
// value (already empty if the header was absent or its bytes were not
// valid UTF-8); absence and an empty value both deny.
func CheckUserAgent(userAgent string, snap *security.Snapshot) Result {
	if userAgent == "" {
		return Result{Denied: true, Status: 403, Reason: "user_agent_missing"}
	}
	lower := strings.ToLower(userAgent)
	for _, blocked := range snap.BlockedUserAgentSubstrings() {
		if strings.Contains(lower, blocked) {
			return Result{Denied: true, Status: 403, Reason: "user_agent_blocked"}
		}
	}
	return ok
}
