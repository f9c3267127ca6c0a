package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/syra-platform/authcore/pkg/httputil"
	"github.com/syra-platform/authcore/pkg/observability"
	"github.com/syra-platform/authcore/pkg/store"
	"github.com/syra-platform/authcore/pkg/tenants"
)

// OwnerHandlers is the owner console: an aggregated tenant view with counts
// only, plus block and unblock controls. Routes must be mounted behind the
// owner role restriction; the handlers assume it.
type OwnerHandlers struct {
	tenants *tenants.Service
	log     *observability.Logger
}

// NewOwnerHandlers creates the owner console handler group.
func NewOwnerHandlers(tenantDir *tenants.Service, log *observability.Logger) *OwnerHandlers {
	return &OwnerHandlers{tenants: tenantDir, log: log}
}

// RegisterRoutes registers the owner console routes.
func (h *OwnerHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/owner/tenants", h.overview).Methods("GET")
	router.HandleFunc("/owner/tenants", h.create).Methods("POST")
	router.HandleFunc("/owner/tenants/{id}", h.get).Methods("GET")
	router.HandleFunc("/owner/tenants/{id}/block", h.block).Methods("POST")
	router.HandleFunc("/owner/tenants/{id}/unblock", h.unblock).Methods("POST")
}

// overview handles GET /owner/tenants. Aggregated counts only; no tenant
// row data crosses this endpoint.
func (h *OwnerHandlers) overview(w http.ResponseWriter, r *http.Request) {
	rows, err := h.tenants.Overview(r.Context())
	if err != nil {
		h.log.WithError(err).Error("tenant overview failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, rows)
}

// create handles POST /owner/tenants.
func (h *OwnerHandlers) create(w http.ResponseWriter, r *http.Request) {
	var tenant tenants.Tenant
	if !httputil.ParseJSONOrError(w, r, &tenant) {
		return
	}

	if err := h.tenants.Create(r.Context(), &tenant); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	httputil.WriteCreated(w, tenant)
}

// get handles GET /owner/tenants/{id}.
func (h *OwnerHandlers) get(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.tenants.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, "tenant not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, tenant)
}

type blockRequest struct {
	Reason string `json:"reason"`
}

// block handles POST /owner/tenants/{id}/block. Takes effect on the next
// request from any user of the tenant; no session teardown is needed.
func (h *OwnerHandlers) block(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Reason == "" {
		httputil.WriteBadRequest(w, "reason is required")
		return
	}

	err := h.tenants.Block(r.Context(), mux.Vars(r)["id"], req.Reason)
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, "tenant not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// unblock handles POST /owner/tenants/{id}/unblock.
func (h *OwnerHandlers) unblock(w http.ResponseWriter, r *http.Request) {
	err := h.tenants.Unblock(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, "tenant not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
