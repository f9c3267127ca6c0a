package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/guard"
	"github.com/syra-platform/authcore/pkg/httputil"
	"github.com/syra-platform/authcore/pkg/identity"
	"github.com/syra-platform/authcore/pkg/middleware"
	"github.com/syra-platform/authcore/pkg/observability"
	"github.com/syra-platform/authcore/pkg/session"
	"github.com/syra-platform/authcore/pkg/tenants"
)

// AccountLimiter throttles login attempts per account. Both the in-process
// and the Redis-backed limiter satisfy it.
type AccountLimiter interface {
	AllowAccount(ctx context.Context, email string) bool
}

// CookieConfig describes the login cookie the handlers set and clear.
type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
	MaxAge time.Duration
}

// AuthHandlers handles login, logout, session introspection and tenant
// switching.
type AuthHandlers struct {
	identity *identity.Loader
	sessions *session.Store
	codec    *auth.Codec
	verifier auth.PasswordVerifier
	tenants  *tenants.Service
	roles    *guard.RoleGuard
	accounts AccountLimiter
	metrics  *observability.Metrics
	log      *observability.Logger
	cookie   CookieConfig
}

// NewAuthHandlers creates the auth handler group. accounts and metrics may
// be nil.
func NewAuthHandlers(loader *identity.Loader, sessions *session.Store, codec *auth.Codec,
	verifier auth.PasswordVerifier, tenantDir *tenants.Service, roles *guard.RoleGuard,
	accounts AccountLimiter, metrics *observability.Metrics, log *observability.Logger,
	cookie CookieConfig) *AuthHandlers {
	if cookie.Name == "" {
		cookie.Name = session.DefaultCookieName
	}
	return &AuthHandlers{
		identity: loader,
		sessions: sessions,
		codec:    codec,
		verifier: verifier,
		tenants:  tenantDir,
		roles:    roles,
		accounts: accounts,
		metrics:  metrics,
		log:      log,
		cookie:   cookie,
	}
}

// RegisterPublicRoutes registers the routes that run without authentication.
// limit, when non-nil, wraps the login route with the per-IP rate limiter.
func (h *AuthHandlers) RegisterPublicRoutes(router *mux.Router, limit func(http.Handler) http.Handler) {
	var login http.Handler = http.HandlerFunc(h.login)
	if limit != nil {
		login = limit(login)
	}
	router.Handle("/auth/login", login).Methods("POST")
	router.HandleFunc("/auth/logout", h.logout).Methods("POST")
}

// RegisterProtectedRoutes registers the routes that require the auth
// middleware.
func (h *AuthHandlers) RegisterProtectedRoutes(router *mux.Router) {
	router.HandleFunc("/auth/me", h.me).Methods("GET")
	router.HandleFunc("/auth/switch-tenant", h.switchTenant).Methods("POST")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenantId,omitempty"`
}

type loginResponse struct {
	User      *auth.User `json:"user"`
	TenantID  string     `json:"tenantId,omitempty"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// login handles POST /auth/login. Any prior session for the user is evicted;
// there is only ever one active session per account.
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "email and password are required")
		return
	}

	if h.accounts != nil && !h.accounts.AllowAccount(ctx, req.Email) {
		httputil.WriteTooManyRequests(w, "Too many login attempts. Try again later.")
		return
	}

	user, err := h.identity.FindByEmail(ctx, req.Email, req.TenantID)
	if err != nil {
		h.log.WithError(err).Error("login: identity lookup failed")
		httputil.WriteServiceUnavailable(w, "Unable to process login right now")
		return
	}
	// A missing user and a wrong password get the same answer.
	if user == nil {
		httputil.WriteUnauthorized(w, "Invalid email or password")
		return
	}
	if err := h.verifier.Verify(user.PasswordHash, req.Password); err != nil {
		httputil.WriteUnauthorized(w, "Invalid email or password")
		return
	}

	tenantID := user.TenantID
	if tenantID != "" && !user.Role.IsPlatform() && h.tenants != nil {
		blocked, berr := h.tenants.IsBlocked(ctx, tenantID)
		if berr != nil {
			h.log.WithError(berr).WithField("tenantId", tenantID).Warn("login: tenant directory unavailable")
		} else if blocked {
			middleware.WriteAuthError(w, auth.Forbidden(auth.ReasonTenantBlocked, "This organization's access is suspended"))
			return
		}
	}

	sess, err := h.sessions.Create(ctx, user, tenantID, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		h.log.WithError(err).Error("login: session create failed")
		httputil.WriteServiceUnavailable(w, "Unable to process login right now")
		return
	}
	if h.metrics != nil {
		h.metrics.SessionsCreated.Inc()
	}

	token, err := h.codec.Sign(auth.TokenPayload{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: sess.SessionID,
	})
	if err != nil {
		h.log.WithError(err).Error("login: token signing failed")
		httputil.WriteInternalError(w, err)
		return
	}

	h.setCookie(w, token, h.cookie.MaxAge)
	httputil.WriteSuccess(w, loginResponse{
		User:      user.Redacted(),
		TenantID:  tenantID,
		ExpiresAt: sess.ExpiresAt,
	})
}

// logout handles POST /auth/logout. Idempotent: a missing or stale token
// still clears the cookie.
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.cookie.Name); err == nil && cookie.Value != "" {
		if payload, verr := h.codec.Verify(cookie.Value); verr == nil && payload.SessionID != "" {
			if derr := h.sessions.Delete(r.Context(), payload.SessionID); derr != nil {
				h.log.WithError(derr).Warn("logout: session delete failed")
			}
		}
	}
	h.setCookie(w, "", -time.Second)
	httputil.WriteNoContent(w)
}

// me handles GET /auth/me.
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuthContext(r)
	if ac == nil {
		middleware.WriteAuthError(w, auth.Unauthorized(auth.ReasonNoToken, "Authentication required"))
		return
	}
	httputil.WriteSuccess(w, ac)
}

type switchTenantRequest struct {
	TenantID string `json:"tenantId"`
}

// switchTenant handles POST /auth/switch-tenant. Owner only: tenant users
// are permanently bound to their own tenant.
func (h *AuthHandlers) switchTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := middleware.GetAuthContext(r)
	if ac == nil {
		middleware.WriteAuthError(w, auth.Unauthorized(auth.ReasonNoToken, "Authentication required"))
		return
	}
	if !ac.IsOwner() {
		middleware.WriteAuthError(w, h.roles.Deny(ctx, r, ac,
			auth.Forbidden(auth.ReasonRoleDenied, "Only the platform owner can switch tenants")))
		return
	}

	var req switchTenantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.TenantID == "" {
		httputil.WriteBadRequest(w, "tenantId is required")
		return
	}

	tenant, err := h.tenants.Get(ctx, req.TenantID)
	if err != nil {
		httputil.WriteNotFoundError(w, "tenant not found")
		return
	}
	if !tenant.IsActive(time.Now()) {
		httputil.WriteConflict(w, "tenant is not active")
		return
	}

	if err := h.sessions.SwitchTenant(ctx, ac.SessionID, req.TenantID); err != nil {
		h.log.WithError(err).Error("switch tenant failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"tenantId": req.TenantID})
}

func (h *AuthHandlers) setCookie(w http.ResponseWriter, value string, maxAge time.Duration) {
	cookie := &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookie.Domain,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		cookie.MaxAge = int(maxAge.Seconds())
	} else if maxAge < 0 {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}
