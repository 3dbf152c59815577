package predicate

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/firasghr/tlsproxy/internal/security"
)

// bearerPrefix is the required literal prefix, capital B, single space,
// checked byte-for-byte rather than case-insensitively.
const bearerPrefix = "Bearer "

// CheckBearerToken validates the Authorization header as an HS256-signed
// token with an unexpired exp claim. authorization is the raw header
// value, or "" if the header was absent; hasHeader carries the exact
// presence the pipeline observed (present-but-empty and absent both deny).
func CheckBearerToken(authorization string, hasHeader bool, snap *security.Snapshot) Result {
	if !hasHeader || authorization == "" {
		return Result{Denied: true, Status: 401, Reason: "token_missing"}
	}
	if !strings.HasPrefix(authorization, bearerPrefix) {
		return Result{Denied: true, Status: 401, Reason: "token_malformed"}
	}
	raw := authorization[len(bearerPrefix):]

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return snap.TokenKey(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Result{Denied: true, Status: 401, Reason: "token_invalid"}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return Result{Denied: true, Status: 401, Reason: "token_missing_exp"}
	}
	if exp.Time.Before(time.Now()) {
		return Result{Denied: true, Status: 401, Reason: "token_expired"}
	}
	return ok
}
