package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type contextKey struct{}

var principalKey contextKey

// Principal returns the authenticated caller placed in ctx by RequirePrincipal.
func Principal(ctx context.Context) (common.Address, bool) {
	p, ok := ctx.Value(principalKey).(common.Address)
	return p, ok
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}

// RequirePrincipal rejects requests without a valid bearer token and stores
// the caller's address in the request context.
func RequirePrincipal(m *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				unauthorized(w)
				return
			}
			principal, err := m.Parse(token)
			if err != nil {
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
