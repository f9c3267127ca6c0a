package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/syra-platform/authcore/pkg/audit"
	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/grants"
	"github.com/syra-platform/authcore/pkg/guard"
	"github.com/syra-platform/authcore/pkg/httputil"
	"github.com/syra-platform/authcore/pkg/identity"
	"github.com/syra-platform/authcore/pkg/middleware"
	"github.com/syra-platform/authcore/pkg/observability"
	"github.com/syra-platform/authcore/pkg/session"
	"github.com/syra-platform/authcore/pkg/store"
	"github.com/syra-platform/authcore/pkg/tenants"
)

// Options carries the wired components the server mounts. LoginLimiter and
// Metrics may be nil; CORSOrigins empty disables the CORS layer.
type Options struct {
	Store    store.Store
	Codec    *auth.Codec
	Verifier auth.PasswordVerifier
	Sessions *session.Store
	Identity *identity.Loader
	Tenants  *tenants.Service
	Workflow *grants.Workflow
	Trail    *audit.StoreLogger
	Sink     *audit.Sink

	AuthGuard   *guard.AuthGuard
	RoleGuard   *guard.RoleGuard
	AccessGuard *grants.Guard

	LoginLimiter   func(http.Handler) http.Handler
	AccountLimiter AccountLimiter

	Log     *observability.Logger
	Metrics *observability.Metrics
	Cookie  CookieConfig

	CORSOrigins []string
}

// Server is the HTTP surface. It implements http.Handler.
type Server struct {
	router *mux.Router
	opts   Options
}

// NewServer builds the router: public login routes, then everything else
// behind the auth middleware, with the owner console further restricted by
// role.
func NewServer(opts Options) *Server {
	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	o := s.opts

	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.RecoveryMiddleware(o.Log))
	s.router.Use(httputil.LoggingMiddleware(o.Log))
	if len(o.CORSOrigins) > 0 {
		s.router.Use(httputil.CORSMiddleware(o.CORSOrigins))
	}

	s.router.HandleFunc("/health", s.health).Methods("GET")

	authHandlers := NewAuthHandlers(o.Identity, o.Sessions, o.Codec, o.Verifier,
		o.Tenants, o.RoleGuard, o.AccountLimiter, o.Metrics, o.Log, o.Cookie)

	// Login and logout run without authentication. The per-IP limiter wraps
	// login only.
	authHandlers.RegisterPublicRoutes(s.router, o.LoginLimiter)

	protected := s.router.PathPrefix("").Subrouter()
	protected.Use(middleware.NewAuth(o.AuthGuard, false).Handler)
	authHandlers.RegisterProtectedRoutes(protected)

	NewGrantHandlers(o.Workflow, o.Tenants, o.RoleGuard, o.Log).RegisterRoutes(protected)
	NewAuditHandlers(o.Trail, o.RoleGuard, o.Log).RegisterRoutes(protected)
	NewDataHandlers(o.Store, o.AccessGuard, o.RoleGuard, o.Tenants, o.Log).RegisterRoutes(protected)

	owner := protected.PathPrefix("/owner").Subrouter()
	owner.Use(middleware.RequireRole(o.RoleGuard, auth.RoleOwner))
	NewOwnerHandlers(o.Tenants, o.Log).RegisterRoutes(owner)
}

// health handles GET /health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Store.Ping(r.Context()); err != nil {
		httputil.WriteServiceUnavailable(w, "store unreachable")
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router for additional mounting.
func (s *Server) Router() *mux.Router {
	return s.router
}
