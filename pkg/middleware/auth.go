package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/contextkeys"
	"github.com/syra-platform/authcore/pkg/guard"
)

// Auth authenticates every request through the auth guard and stores the
// resulting context for downstream handlers.
type Auth struct {
	guard    *guard.AuthGuard
	optional bool // if true, unauthenticated requests pass through without a context
}

// NewAuth creates the authentication middleware. With optional set, requests
// that fail authentication continue anonymously instead of being rejected;
// handlers behind an optional chain must treat a missing auth context as
// unauthenticated.
func NewAuth(g *guard.AuthGuard, optional bool) *Auth {
	return &Auth{guard: g, optional: optional}
}

// Handler wraps an HTTP handler with authentication.
func (m *Auth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, authErr := m.guard.Authenticate(r)
		if authErr != nil {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			WriteAuthError(w, authErr)
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), ac)
		ctx = contextkeys.WithUserID(ctx, ac.UserID)
		if ac.TenantID != "" {
			ctx = contextkeys.WithTenant(ctx, ac.TenantID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts the auth context from the request. Nil when the
// request was not authenticated.
func GetAuthContext(r *http.Request) *auth.Context {
	v := r.Context().Value(contextkeys.AuthKey)
	if v == nil {
		return nil
	}
	ac, ok := v.(*auth.Context)
	if !ok {
		return nil
	}
	return ac
}

// RequireRole creates middleware that admits only the listed roles.
// Denials are audited by the role guard.
func RequireRole(rg *guard.RoleGuard, allowed ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := GetAuthContext(r)
			if ac == nil {
				WriteAuthError(w, auth.Unauthorized(auth.ReasonNoToken, "Authentication required"))
				return
			}
			if _, authErr := rg.RequireRole(r.Context(), r, ac, allowed...); authErr != nil {
				WriteAuthError(w, authErr)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteAuthError renders a structured auth error. The reason code is stable
// and machine-readable; the message is for humans.
func WriteAuthError(w http.ResponseWriter, authErr *auth.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(authErr.Status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   string(authErr.Reason),
		"message": authErr.Message,
	})
}
