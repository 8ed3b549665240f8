package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/znz-systems/mailsift/internal/auth"
)

const apiKeyHeader = "X-API-Key"

// RequireAPIKey rejects requests without a valid key in the X-API-Key header
// or an "Authorization: Bearer" header. A nil verifier lets every request
// through.
func RequireAPIKey(verifier *auth.KeyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(apiKeyHeader)
			if key == "" {
				key = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}

			if err := verifier.Verify(strings.TrimSpace(key)); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "invalid or missing api key",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
