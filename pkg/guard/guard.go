// Package guard composes the token codec, session store, session resolver
// and identity loader into the authenticate and authorize entry points every
// protected operation calls first.
package guard

import (
	"context"
	"errors"
	"net/http"

	"github.com/syra-platform/authcore/pkg/audit"
	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/identity"
	"github.com/syra-platform/authcore/pkg/observability"
	"github.com/syra-platform/authcore/pkg/session"
	"github.com/syra-platform/authcore/pkg/tenants"
)

// AuthGuard authenticates inbound requests. It is safe to call once per
// request; it performs no side-effecting work beyond audit emission.
type AuthGuard struct {
	resolver  *session.Resolver
	sessions  *session.Store
	identity  *identity.Loader
	tenantDir *tenants.Service
	sink      *audit.Sink
	log       *observability.Logger
	metrics   *observability.Metrics
}

// NewAuthGuard wires the guard. tenantDir and metrics may be nil; without a
// tenant directory the blocked-tenant gate is skipped.
func NewAuthGuard(resolver *session.Resolver, sessions *session.Store, loader *identity.Loader,
	tenantDir *tenants.Service, sink *audit.Sink, log *observability.Logger, metrics *observability.Metrics) *AuthGuard {
	return &AuthGuard{
		resolver:  resolver,
		sessions:  sessions,
		identity:  loader,
		tenantDir: tenantDir,
		sink:      sink,
		log:       log,
		metrics:   metrics,
	}
}

// Authenticate resolves the request to a fully-populated auth context or a
// structured 401/403.
//
// The primary session check fails closed: a session row that exists but does
// not match rejects the request. A store that cannot be read at all fails
// open, trusting the signed token, so a transient outage does not log every
// user out.
func (g *AuthGuard) Authenticate(r *http.Request) (*auth.Context, *auth.Error) {
	ctx := r.Context()

	token := g.resolver.TokenFromRequest(r)
	if token == "" {
		return nil, g.fail(ctx, r, nil, auth.Unauthorized(auth.ReasonNoToken, "Authentication required"))
	}

	data, err := g.resolver.Resolve(ctx, token)
	if errors.Is(err, auth.ErrInvalidToken) {
		return nil, g.fail(ctx, r, nil, auth.Unauthorized(auth.ReasonInvalidToken, "Invalid or expired token"))
	}
	if err != nil {
		g.log.WithError(err).Warn("session lookup unavailable, proceeding on token")
	}
	payload := data.Payload

	if payload.SessionID != "" {
		res, verr := g.sessions.Validate(ctx, payload.UserID, payload.SessionID)
		if verr != nil {
			g.log.WithError(verr).Warn("session validation unavailable, proceeding on token")
		} else if !res.Valid {
			message := res.Message
			if message == "" {
				message = "Session is no longer valid"
			}
			return nil, g.fail(ctx, r, &payload, auth.Unauthorized(auth.ReasonSessionInvalid, message))
		}
	}

	tenantID := data.TenantID

	user, err := g.identity.FindByID(ctx, payload.UserID, tenantID)
	if err != nil {
		g.log.WithError(err).Warn("identity lookup unavailable")
	}
	if user == nil {
		return nil, g.fail(ctx, r, &payload, auth.Unauthorized(auth.ReasonUserNotFound, "User not found or inactive"))
	}

	if tenantID == "" {
		tenantID = user.TenantID
	}
	if tenantID == "" && !user.Role.IsPlatform() {
		return nil, g.fail(ctx, r, &payload, auth.Unauthorized(auth.ReasonSessionTenantMissing, "No tenant bound to session"))
	}

	if authErr := g.checkTenantBlocked(ctx, r, &payload, user.Role, tenantID); authErr != nil {
		return nil, authErr
	}

	if g.metrics != nil {
		g.metrics.AuthDecisionsTotal.WithLabelValues("success").Inc()
	}
	return identity.Enrich(user, tenantID, payload.SessionID), nil
}

// checkTenantBlocked refuses tenants the directory marks blocked or lapsed.
// The check is best effort: a directory read failure is logged and waved
// through rather than taking every tenant down with the store.
func (g *AuthGuard) checkTenantBlocked(ctx context.Context, r *http.Request, payload *auth.TokenPayload, role auth.Role, tenantID string) *auth.Error {
	if g.tenantDir == nil || tenantID == "" || role.IsPlatform() {
		return nil
	}
	blocked, err := g.tenantDir.IsBlocked(ctx, tenantID)
	if err != nil {
		g.log.WithError(err).WithField("tenantId", tenantID).Warn("tenant directory unavailable")
		return nil
	}
	if !blocked {
		return nil
	}
	return g.fail(ctx, r, payload, auth.Forbidden(auth.ReasonTenantBlocked, "This organization's access is suspended"))
}

// fail counts the denial and, when the request carried a verifiable token,
// writes exactly one audit event for it.
func (g *AuthGuard) fail(ctx context.Context, r *http.Request, payload *auth.TokenPayload, authErr *auth.Error) *auth.Error {
	if g.metrics != nil {
		g.metrics.AuthDecisionsTotal.WithLabelValues(string(authErr.Reason)).Inc()
	}
	if payload != nil {
		g.sink.RecordRequest(ctx, r, &audit.Event{
			EventType: audit.EventAccessDenied,
			ActorID:   payload.UserID,
			ActorRole: string(payload.Role),
			Reason:    string(authErr.Reason),
			Message:   authErr.Message,
		})
	}
	return authErr
}

// ResolveContext is the advisory variant of Authenticate used by handlers
// that personalize but do not protect. It returns nil for unauthenticated
// requests and never writes audit events.
//
// x-user-* headers are only a cache of verified claims: they are consulted
// solely when the store cannot enrich the context, and only when their user
// id agrees with the token, which stays authoritative.
func (g *AuthGuard) ResolveContext(r *http.Request) *auth.Context {
	ctx := r.Context()
	token := g.resolver.TokenFromRequest(r)
	if token == "" {
		return nil
	}
	data, err := g.resolver.Resolve(ctx, token)
	if data == nil {
		return nil
	}
	payload := data.Payload

	minimal := &auth.Context{
		UserID:    payload.UserID,
		UserRole:  payload.Role,
		UserEmail: payload.Email,
		SessionID: payload.SessionID,
		TenantID:  data.TenantID,
	}
	if err != nil {
		return g.fromHeaders(r, minimal)
	}

	user, uerr := g.identity.FindByID(ctx, payload.UserID, data.TenantID)
	if uerr != nil {
		return g.fromHeaders(r, minimal)
	}
	if user == nil {
		return nil
	}
	tenantID := data.TenantID
	if tenantID == "" {
		tenantID = user.TenantID
	}
	return identity.Enrich(user, tenantID, payload.SessionID)
}

func (g *AuthGuard) fromHeaders(r *http.Request, minimal *auth.Context) *auth.Context {
	if r.Header.Get("X-User-Id") != minimal.UserID {
		return minimal
	}
	minimal.EmployeeID = r.Header.Get("X-Employee-Id")
	minimal.DepartmentKey = r.Header.Get("X-Department-Key")
	minimal.Department = r.Header.Get("X-Department")
	if minimal.TenantID == "" {
		minimal.TenantID = r.Header.Get("X-Tenant-Id")
	}
	return minimal
}
