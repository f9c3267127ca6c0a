package grants

import (
	"context"
	"net/http"
	"time"

	"github.com/syra-platform/authcore/pkg/audit"
	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/observability"
	"github.com/syra-platform/authcore/pkg/tenants"
)

const (
	// AccessCookieName carries the grant usage token for browser clients.
	AccessCookieName = "approved-access-token"
	// AccessHeaderName carries it for API clients.
	AccessHeaderName = "X-Approved-Access-Token"
)

// Access is what the guard hands to a tenant-data operation: the tenant the
// caller may read and the platforms covered. For the platform owner these
// come from the grant, never from the owner's own tenant-less session.
type Access struct {
	TenantID         string
	AllowedPlatforms map[tenants.Platform]bool
	Grant            *Grant
}

// Guard gates tenant-data operations behind a valid grant for the platform
// owner role. Every other role passes straight through with its own tenant.
type Guard struct {
	workflow *Workflow
	sink     *audit.Sink
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewGuard builds a guard. metrics may be nil.
func NewGuard(workflow *Workflow, sink *audit.Sink, metrics *observability.Metrics) *Guard {
	return &Guard{workflow: workflow, sink: sink, metrics: metrics, now: time.Now}
}

// TokenFromRequest extracts the grant usage token from the access cookie or
// header. Empty means none was sent.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get(AccessHeaderName)
}

// Require enforces approved access for ac against the given platform.
//
// Non-owner callers pass through with their session tenant; tenant isolation
// for them is already settled by authentication. For the owner, absence of a
// usage token, an unknown or lapsed grant, a grant belonging to a different
// owner, or a grant not covering platform all deny with 403. On success usage
// is recorded unconditionally and the grant's tenant binding is returned.
func (g *Guard) Require(ctx context.Context, r *http.Request, ac *auth.Context, platform tenants.Platform) (*Access, *auth.Error) {
	if !ac.IsOwner() {
		return &Access{TenantID: ac.TenantID}, nil
	}

	token := TokenFromRequest(r)
	if token == "" {
		return nil, g.deny(ctx, r, ac, nil, auth.ReasonGrantMissing,
			"Approved access required. Request access from the tenant administrator first.")
	}

	grant, err := g.workflow.GetByAccessToken(ctx, token)
	if err != nil {
		// Store outage: the elevation path fails closed, unlike primary auth.
		return nil, g.deny(ctx, r, ac, nil, auth.ReasonGrantInvalid,
			"Approved access could not be verified. Try again.")
	}
	if grant == nil {
		return nil, g.deny(ctx, r, ac, nil, auth.ReasonGrantInvalid,
			"Access token is invalid or expired. Request new access.")
	}
	if grant.OwnerID != ac.UserID {
		return nil, g.deny(ctx, r, ac, grant, auth.ReasonGrantOwnerMismatch,
			"Access token belongs to a different account.")
	}
	if !grant.IsValid(g.now().UTC()) {
		return nil, g.deny(ctx, r, ac, grant, auth.ReasonGrantInvalid, statusMessage(grant))
	}
	if platform != "" && !grant.AllowsPlatform(platform) {
		return nil, g.deny(ctx, r, ac, grant, auth.ReasonGrantPlatformDenied,
			"Approved access does not cover this platform.")
	}

	if _, err := g.workflow.RecordUsage(ctx, token, audit.ClientIP(r), r.UserAgent()); err != nil {
		// The usage counter must not be skippable.
		return nil, g.deny(ctx, r, ac, grant, auth.ReasonGrantInvalid,
			"Approved access could not be recorded. Try again.")
	}

	return &Access{
		TenantID:         grant.TenantID,
		AllowedPlatforms: grant.AllowedPlatforms,
		Grant:            grant,
	}, nil
}

// statusMessage discriminates why a located grant is unusable so the owner
// knows whether to wait, re-request, or escalate.
func statusMessage(grant *Grant) string {
	switch grant.Status {
	case StatusPending:
		return "Access request is still pending approval by the tenant administrator."
	case StatusRejected:
		return "Access request was rejected. Request new access."
	case StatusRevoked:
		return "Approved access was revoked. Request new access."
	default:
		return "Approved access has expired. Request new access."
	}
}

func (g *Guard) deny(ctx context.Context, r *http.Request, ac *auth.Context, grant *Grant, reason auth.Reason, message string) *auth.Error {
	if g.metrics != nil {
		g.metrics.GrantDenialsTotal.WithLabelValues(string(reason)).Inc()
	}
	event := &audit.Event{
		EventType: audit.EventAccessDenied,
		ActorID:   ac.UserID,
		ActorRole: string(ac.UserRole),
		Reason:    string(reason),
		Message:   message,
	}
	if grant != nil {
		event.TokenID = grant.ID
		event.OwnerID = grant.OwnerID
		event.TenantID = grant.TenantID
	}
	g.sink.RecordRequest(ctx, r, event)
	return auth.Forbidden(reason, message)
}
