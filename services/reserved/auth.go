package reserved

import (
	"context"
	"net/http"
	"strings"
)

type principalContextKey struct{}

// PrincipalFromContext extracts the authenticated principal from the request context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	principal, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || principal == nil {
		return nil, false
	}
	return principal, true
}

// Authenticator verifies bearer tokens before requests reach handlers.
type Authenticator struct {
	creds *Credentials
}

// NewAuthenticator constructs an authenticator over the credential set.
func NewAuthenticator(creds *Credentials) *Authenticator {
	return &Authenticator{creds: creds}
}

// Middleware enforces bearer authentication and stores the principal in the
// request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil || a.creds == nil {
			http.Error(w, "authentication unavailable", http.StatusInternalServerError)
			return
		}
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		principal, ok := a.creds.Lookup(token)
		if !ok {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
