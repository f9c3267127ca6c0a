package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/grants"
	"github.com/syra-platform/authcore/pkg/guard"
	"github.com/syra-platform/authcore/pkg/httputil"
	"github.com/syra-platform/authcore/pkg/middleware"
	"github.com/syra-platform/authcore/pkg/observability"
	"github.com/syra-platform/authcore/pkg/tenants"
)

// GrantHandlers exposes the approved-access workflow: the owner requests
// access to a tenant, tenant admins decide, and either side can revoke.
type GrantHandlers struct {
	workflow *grants.Workflow
	tenants  *tenants.Service
	roles    *guard.RoleGuard
	log      *observability.Logger
}

// NewGrantHandlers creates the grant handler group.
func NewGrantHandlers(workflow *grants.Workflow, tenantDir *tenants.Service,
	roles *guard.RoleGuard, log *observability.Logger) *GrantHandlers {
	return &GrantHandlers{workflow: workflow, tenants: tenantDir, roles: roles, log: log}
}

// RegisterRoutes registers the workflow routes. All of them require
// authentication; role restrictions are enforced per handler because the
// owner and tenant admins share some of the paths.
func (h *GrantHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/approved-access/request", h.create).Methods("POST")
	router.HandleFunc("/approved-access/mine", h.listMine).Methods("GET")
	router.HandleFunc("/approved-access/pending", h.listPending).Methods("GET")
	router.HandleFunc("/approved-access/{id}", h.get).Methods("GET")
	router.HandleFunc("/approved-access/{id}/approve", h.approve).Methods("POST")
	router.HandleFunc("/approved-access/{id}/reject", h.reject).Methods("POST")
	router.HandleFunc("/approved-access/{id}/revoke", h.revoke).Methods("POST")
}

type createGrantRequest struct {
	TenantID      string `json:"tenantId"`
	Reason        string `json:"reason"`
	DurationHours int    `json:"durationHours,omitempty"`
}

// create handles POST /access-requests. Owner only.
func (h *GrantHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := middleware.GetAuthContext(r)
	if ac == nil {
		middleware.WriteAuthError(w, auth.Unauthorized(auth.ReasonNoToken, "Authentication required"))
		return
	}
	if !ac.IsOwner() {
		middleware.WriteAuthError(w, h.roles.Deny(ctx, r, ac,
			auth.Forbidden(auth.ReasonRoleDenied, "Only the platform owner can request access")))
		return
	}

	var req createGrantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.TenantID == "" || req.Reason == "" {
		httputil.WriteBadRequest(w, "tenantId and reason are required")
		return
	}

	if _, err := h.tenants.Get(ctx, req.TenantID); err != nil {
		httputil.WriteNotFoundError(w, "tenant not found")
		return
	}

	grant, err := h.workflow.Request(ctx, ac.UserID, ac.UserEmail, req.TenantID, req.Reason, req.DurationHours)
	if err != nil {
		h.log.WithError(err).Error("access request failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, grant)
}

// listMine handles GET /access-requests/mine. Owner only.
func (h *GrantHandlers) listMine(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuthContext(r)
	if ac == nil {
		middleware.WriteAuthError(w, auth.Unauthorized(auth.ReasonNoToken, "Authentication required"))
		return
	}
	if !ac.IsOwner() {
		middleware.WriteAuthError(w, h.roles.Deny(r.Context(), r, ac,
			auth.Forbidden(auth.ReasonRoleDenied, "Insufficient permissions")))
		return
	}

	list, err := h.workflow.ListForOwner(r.Context(), ac.UserID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// listPending handles GET /access-requests/pending. Tenant admins see the
// queue for their own tenant.
func (h *GrantHandlers) listPending(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.requireTenantAdmin(w, r)
	if !ok {
		return
	}

	list, err := h.workflow.ListPendingForTenant(r.Context(), ac.TenantID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// get handles GET /access-requests/{id}. Visible to the requesting owner and
// to admins of the grant's tenant.
func (h *GrantHandlers) get(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuthContext(r)
	if ac == nil {
		middleware.WriteAuthError(w, auth.Unauthorized(auth.ReasonNoToken, "Authentication required"))
		return
	}

	grant, err := h.workflow.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if grant == nil || !h.canSee(ac, grant) {
		// One answer for both, so ids cannot be probed.
		httputil.WriteNotFoundError(w, "access request not found")
		return
	}
	httputil.WriteSuccess(w, grant)
}

type decisionRequest struct {
	Notes     string     `json:"notes,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// approve handles POST /access-requests/{id}/approve. Tenant admin of the
// grant's tenant only.
func (h *GrantHandlers) approve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac, grant, ok := h.loadForDecision(w, r)
	if !ok {
		return
	}

	var req decisionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	approved, err := h.workflow.Approve(ctx, grant.ID, ac.UserID, req.Notes, req.ExpiresAt)
	if err != nil {
		h.log.WithError(err).Error("approve failed")
		httputil.WriteInternalError(w, err)
		return
	}
	if approved == nil {
		httputil.WriteConflict(w, "request is no longer pending")
		return
	}
	httputil.WriteSuccess(w, approved)
}

// reject handles POST /access-requests/{id}/reject.
func (h *GrantHandlers) reject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac, grant, ok := h.loadForDecision(w, r)
	if !ok {
		return
	}

	var req decisionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	done, err := h.workflow.Reject(ctx, grant.ID, ac.UserID, req.Reason)
	if err != nil {
		h.log.WithError(err).Error("reject failed")
		httputil.WriteInternalError(w, err)
		return
	}
	if !done {
		httputil.WriteConflict(w, "request is no longer pending")
		return
	}
	httputil.WriteNoContent(w)
}

// revoke handles POST /access-requests/{id}/revoke. A tenant admin can pull
// an approval back at any time; the owner can walk away from their own grant.
func (h *GrantHandlers) revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := middleware.GetAuthContext(r)
	if ac == nil {
		middleware.WriteAuthError(w, auth.Unauthorized(auth.ReasonNoToken, "Authentication required"))
		return
	}

	grant, err := h.workflow.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if grant == nil || !h.canSee(ac, grant) {
		httputil.WriteNotFoundError(w, "access request not found")
		return
	}

	var req decisionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	done, err := h.workflow.Revoke(ctx, grant.ID, ac.UserID, req.Reason)
	if err != nil {
		h.log.WithError(err).Error("revoke failed")
		httputil.WriteInternalError(w, err)
		return
	}
	if !done {
		httputil.WriteConflict(w, "request cannot be revoked in its current state")
		return
	}
	httputil.WriteNoContent(w)
}

// loadForDecision resolves the grant and enforces the same-tenant admin
// restriction shared by approve and reject.
func (h *GrantHandlers) loadForDecision(w http.ResponseWriter, r *http.Request) (*auth.Context, *grants.Grant, bool) {
	ac, ok := h.requireTenantAdmin(w, r)
	if !ok {
		return nil, nil, false
	}

	grant, err := h.workflow.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteInternalError(w, err)
		return nil, nil, false
	}
	if grant == nil || grant.TenantID != ac.TenantID {
		httputil.WriteNotFoundError(w, "access request not found")
		return nil, nil, false
	}
	return ac, grant, true
}

func (h *GrantHandlers) requireTenantAdmin(w http.ResponseWriter, r *http.Request) (*auth.Context, bool) {
	ac := middleware.GetAuthContext(r)
	if ac == nil {
		middleware.WriteAuthError(w, auth.Unauthorized(auth.ReasonNoToken, "Authentication required"))
		return nil, false
	}
	switch ac.UserRole {
	case auth.RoleAdmin, auth.RoleGroupAdmin, auth.RoleHospitalAdmin:
		if ac.TenantID == "" {
			middleware.WriteAuthError(w, h.roles.Deny(r.Context(), r, ac,
				auth.Unauthorized(auth.ReasonSessionTenantMissing, "No tenant bound to session")))
			return nil, false
		}
		return ac, true
	default:
		middleware.WriteAuthError(w, h.roles.Deny(r.Context(), r, ac,
			auth.Forbidden(auth.ReasonRoleDenied, "Insufficient permissions")))
		return nil, false
	}
}

func (h *GrantHandlers) canSee(ac *auth.Context, grant *grants.Grant) bool {
	if ac.IsOwner() {
		return grant.OwnerID == ac.UserID
	}
	switch ac.UserRole {
	case auth.RoleAdmin, auth.RoleGroupAdmin, auth.RoleHospitalAdmin:
		return grant.TenantID == ac.TenantID
	}
	return false
}
