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
	"github.com/syra-platform/authcore/pkg/store"
	"github.com/syra-platform/authcore/pkg/tenants"
)

// DataHandlers serves tenant-partition records through the full
// authorization pipeline: role scope filters for tenant users, the
// approved-access guard for the owner, and the tenant's platform
// entitlement for everyone.
type DataHandlers struct {
	db      store.Store
	access  *grants.Guard
	roles   *guard.RoleGuard
	tenants *tenants.Service
	log     *observability.Logger
}

// NewDataHandlers creates the tenant-data handler group.
func NewDataHandlers(db store.Store, access *grants.Guard, roles *guard.RoleGuard,
	tenantDir *tenants.Service, log *observability.Logger) *DataHandlers {
	return &DataHandlers{db: db, access: access, roles: roles, tenants: tenantDir, log: log}
}

// RegisterRoutes registers the tenant-data routes.
func (h *DataHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/data/{platform}/records", h.listRecords).Methods("GET")
}

// Record is a generic tenant-partition row. The authorization core does not
// interpret the payload; it only enforces who may read which rows.
type Record struct {
	ID            string                 `json:"id" bson:"id"`
	Platform      tenants.Platform       `json:"platform" bson:"platform"`
	DepartmentKey string                 `json:"departmentKey,omitempty" bson:"departmentKey,omitempty"`
	EmployeeID    string                 `json:"employeeId,omitempty" bson:"employeeId,omitempty"`
	CreatedAt     time.Time              `json:"createdAt" bson:"createdAt"`
	Payload       map[string]interface{} `json:"payload,omitempty" bson:"payload,omitempty"`
}

// listRecords handles GET /data/{platform}/records.
func (h *DataHandlers) listRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := middleware.GetAuthContext(r)
	if ac == nil {
		middleware.WriteAuthError(w, auth.Unauthorized(auth.ReasonNoToken, "Authentication required"))
		return
	}

	platform := tenants.Platform(mux.Vars(r)["platform"])
	if !tenants.ValidPlatform(platform) {
		httputil.WriteBadRequest(w, "unknown platform")
		return
	}

	access, authErr := h.access.Require(ctx, r, ac, platform)
	if authErr != nil {
		middleware.WriteAuthError(w, authErr)
		return
	}
	if access.TenantID == "" {
		middleware.WriteAuthError(w, auth.Unauthorized(auth.ReasonSessionTenantMissing, "No tenant bound to session"))
		return
	}

	if tenant, err := h.tenants.Get(ctx, access.TenantID); err == nil && !tenant.HasEntitlement(platform) {
		middleware.WriteAuthError(w, h.roles.Deny(ctx, r, ac,
			auth.Forbidden(auth.ReasonScopeDenied, "Tenant is not entitled to this platform")))
		return
	}

	// An explicit department parameter outside the caller's scope is a
	// bypass attempt, not a bad request.
	if dept := httputil.ParseQueryString(r, "departmentKey", ""); dept != "" &&
		ac.UserRole == auth.RoleSupervisor && dept != ac.DepartmentKey {
		middleware.WriteAuthError(w, h.roles.RecordScopeViolation(ctx, r, ac, "department "+dept))
		return
	}

	filter := guard.BuildScopeFilter(ac, "departmentKey", "employeeId")
	filter["platform"] = string(platform)

	tdb, err := h.db.Tenant(access.TenantID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	limit, _ := httputil.ParseQueryInt(r, "limit", 100)
	var records []*Record
	err = tdb.Collection(store.CollectionRecords).Find(ctx, filter,
		&store.FindOptions{Sort: store.M{"createdAt": -1}, Limit: int64(limit)}, &records)
	if err != nil {
		h.log.WithError(err).Error("record query failed")
		httputil.WriteInternalError(w, err)
		return
	}
	if records == nil {
		records = []*Record{}
	}
	httputil.WriteSuccess(w, records)
}
