package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/syra-platform/authcore/pkg/audit"
	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/guard"
	"github.com/syra-platform/authcore/pkg/httputil"
	"github.com/syra-platform/authcore/pkg/middleware"
	"github.com/syra-platform/authcore/pkg/observability"
)

// AuditHandlers serves the approved-access audit trail. Tenant admins are
// pinned to their own tenant; the owner may filter by any tenant.
type AuditHandlers struct {
	trail *audit.StoreLogger
	roles *guard.RoleGuard
	log   *observability.Logger
}

// NewAuditHandlers creates the audit handler group.
func NewAuditHandlers(trail *audit.StoreLogger, roles *guard.RoleGuard, log *observability.Logger) *AuditHandlers {
	return &AuditHandlers{trail: trail, roles: roles, log: log}
}

// RegisterRoutes registers the audit trail route.
func (h *AuditHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit/access-trail", h.accessTrail).Methods("GET")
}

// accessTrail handles GET /audit/access-trail.
func (h *AuditHandlers) accessTrail(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuthContext(r)
	if ac == nil {
		middleware.WriteAuthError(w, auth.Unauthorized(auth.ReasonNoToken, "Authentication required"))
		return
	}

	q := audit.Query{
		TokenID:   httputil.ParseQueryString(r, "tokenId", ""),
		OwnerID:   httputil.ParseQueryString(r, "ownerId", ""),
		EventType: audit.EventType(httputil.ParseQueryString(r, "eventType", "")),
	}
	if limit, err := httputil.ParseQueryInt(r, "limit", 0); err == nil {
		q.Limit = int64(limit)
	}

	switch {
	case ac.IsOwner():
		q.TenantID = httputil.ParseQueryString(r, "tenantId", "")
	case ac.UserRole == auth.RoleAdmin, ac.UserRole == auth.RoleGroupAdmin, ac.UserRole == auth.RoleHospitalAdmin:
		// The query parameter is ignored on purpose; admins only ever see
		// their own tenant's trail.
		q.TenantID = ac.TenantID
	default:
		middleware.WriteAuthError(w, h.roles.Deny(r.Context(), r, ac,
			auth.Forbidden(auth.ReasonRoleDenied, "Insufficient permissions")))
		return
	}

	if q.EventType != "" && !q.EventType.Valid() {
		httputil.WriteBadRequest(w, "unknown event type")
		return
	}

	events, err := h.trail.Search(r.Context(), q)
	if err != nil {
		h.log.WithError(err).Error("audit search failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, events)
}
