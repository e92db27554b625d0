// Package authmw provides HTTP middleware guarding the triage API with a
// shared bearer token.
package authmw

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const prefix = "Bearer "

// Bearer returns middleware that rejects requests whose Authorization header
// does not carry the expected bearer token. An empty expected token disables
// the check entirely, for dev setups and health probes behind a trusted edge.
// Token comparison is constant time.
func Bearer(expected string) func(http.Handler) http.Handler {
	want := []byte(expected)
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="sehat"`)
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), want) != 1 {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
