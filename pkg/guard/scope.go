package guard

import (
	"context"
	"net/http"

	"github.com/syra-platform/authcore/pkg/audit"
	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/observability"
	"github.com/syra-platform/authcore/pkg/store"
)

// NoAccessSentinel is a value no real record carries. Filters built around it
// match zero rows, which is how the weakest roles fail closed when their
// identity attributes are incomplete.
const NoAccessSentinel = "__NO_ACCESS__"

// RoleGuard enforces role membership after authentication.
type RoleGuard struct {
	sink    *audit.Sink
	metrics *observability.Metrics
}

// NewRoleGuard builds a role guard. metrics may be nil.
func NewRoleGuard(sink *audit.Sink, metrics *observability.Metrics) *RoleGuard {
	return &RoleGuard{sink: sink, metrics: metrics}
}

// RequireRole passes the context through when its role is in allowed,
// otherwise denies with 403 and audits the denial.
func (g *RoleGuard) RequireRole(ctx context.Context, r *http.Request, ac *auth.Context, allowed ...auth.Role) (*auth.Context, *auth.Error) {
	for _, role := range allowed {
		if ac.UserRole == role {
			return ac, nil
		}
	}
	if g.metrics != nil {
		g.metrics.RoleDenialsTotal.WithLabelValues(string(ac.UserRole)).Inc()
	}
	authErr := auth.Forbidden(auth.ReasonRoleDenied, "Insufficient permissions")
	g.sink.RecordRequest(ctx, r, &audit.Event{
		EventType: audit.EventAccessDenied,
		ActorID:   ac.UserID,
		ActorRole: string(ac.UserRole),
		TenantID:  ac.TenantID,
		Reason:    string(authErr.Reason),
		Message:   authErr.Message,
	})
	return nil, authErr
}

// Deny audits an authorization failure a handler detected itself, like a
// missing entitlement or a tenant-less session, and returns authErr so the
// caller can write it in one step. ac may be nil when the request carried no
// resolvable identity.
func (g *RoleGuard) Deny(ctx context.Context, r *http.Request, ac *auth.Context, authErr *auth.Error) *auth.Error {
	if g.metrics != nil && authErr.Reason == auth.ReasonRoleDenied && ac != nil {
		g.metrics.RoleDenialsTotal.WithLabelValues(string(ac.UserRole)).Inc()
	}
	event := &audit.Event{
		EventType: audit.EventAccessDenied,
		Reason:    string(authErr.Reason),
		Message:   authErr.Message,
	}
	if ac != nil {
		event.ActorID = ac.UserID
		event.ActorRole = string(ac.UserRole)
		event.TenantID = ac.TenantID
	}
	g.sink.RecordRequest(ctx, r, event)
	return authErr
}

// BuildScopeFilter returns the row-visibility predicate for ac within its
// tenant. Admin-shaped roles see everything, supervisors see their own
// department, and everyone else is narrowed to their own records. Roles whose
// narrowing attribute is missing get a filter matching zero rows, never an
// unfiltered query.
func BuildScopeFilter(ac *auth.Context, departmentField, employeeField string) store.M {
	switch ac.UserRole {
	case auth.RoleAdmin, auth.RoleGroupAdmin, auth.RoleHospitalAdmin, auth.RoleOwner:
		return store.M{}
	case auth.RoleSupervisor:
		if ac.DepartmentKey == "" {
			return store.M{departmentField: NoAccessSentinel}
		}
		return store.M{departmentField: ac.DepartmentKey}
	default:
		return BuildSelfFilter(ac, employeeField)
	}
}

// BuildSelfFilter narrows a query to the caller's own records by employee
// identity. A caller with no resolvable employee id matches zero rows.
func BuildSelfFilter(ac *auth.Context, employeeField string) store.M {
	if ac.EmployeeID == "" {
		return store.M{employeeField: NoAccessSentinel}
	}
	return store.M{employeeField: ac.EmployeeID}
}

// RecordScopeViolation audits an attempt to read rows outside the caller's
// scope. Callers invoke it when a handler detects a filter bypass attempt,
// like an explicit query parameter for another department.
func (g *RoleGuard) RecordScopeViolation(ctx context.Context, r *http.Request, ac *auth.Context, detail string) *auth.Error {
	if g.metrics != nil {
		g.metrics.ScopeFiltersTotal.WithLabelValues("violation").Inc()
	}
	authErr := auth.Forbidden(auth.ReasonScopeDenied, "Insufficient permissions")
	g.sink.RecordRequest(ctx, r, &audit.Event{
		EventType: audit.EventScopeViolation,
		ActorID:   ac.UserID,
		ActorRole: string(ac.UserRole),
		TenantID:  ac.TenantID,
		Reason:    string(authErr.Reason),
		Message:   detail,
	})
	return authErr
}
