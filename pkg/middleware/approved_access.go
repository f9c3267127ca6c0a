package middleware

import (
	"net/http"

	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/contextkeys"
	"github.com/syra-platform/authcore/pkg/grants"
	"github.com/syra-platform/authcore/pkg/tenants"
)

// ApprovedAccess gates tenant-data routes behind the approved-access guard.
// Tenant users pass through with their own tenant; the platform owner must
// present a valid grant token, and the grant's tenant becomes the effective
// tenant for the request.
//
// REQUIRES: Auth must run before this middleware.
func ApprovedAccess(g *grants.Guard, platform tenants.Platform) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := GetAuthContext(r)
			if ac == nil {
				WriteAuthError(w, auth.Unauthorized(auth.ReasonNoToken, "Authentication required"))
				return
			}

			access, authErr := g.Require(r.Context(), r, ac, platform)
			if authErr != nil {
				WriteAuthError(w, authErr)
				return
			}

			ctx := contextkeys.WithTenant(r.Context(), access.TenantID)
			if access.Grant != nil {
				ctx = contextkeys.WithGrant(ctx, access.Grant)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetGrant extracts the approved-access grant from the request. Nil for
// tenant users, who never carry one.
func GetGrant(r *http.Request) *grants.Grant {
	v := r.Context().Value(contextkeys.GrantKey)
	if v == nil {
		return nil
	}
	grant, ok := v.(*grants.Grant)
	if !ok {
		return nil
	}
	return grant
}
