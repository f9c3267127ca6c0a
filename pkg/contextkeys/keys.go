// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/syra-platform/authcore/pkg/contextkeys"
//   ctx = context.WithValue(ctx, contextkeys.AuthKey, authCtx)
//   authCtx := ctx.Value(contextkeys.AuthKey).(*auth.Context)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.Context
	// Set by: middleware.Auth (pkg/middleware/auth.go)
	// Required by: all protected endpoints, role and grant middleware
	// Type: *auth.Context
	AuthKey Key = "auth_context"

	// GrantKey contains *grants.Grant
	// Set by: middleware.ApprovedAccess (pkg/middleware/approved_access.go)
	// Required by: owner-facing tenant data endpoints
	// Type: *grants.Grant
	GrantKey Key = "approved_access_grant"

	// TenantKey contains the effective tenant id string for the request.
	// For tenant users it mirrors the session tenant; for the owner it is the
	// grant's tenant id.
	// Type: string
	TenantKey Key = "tenant_id"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestID middleware
	// Used by: logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Set by: middleware.Auth after authentication
	// Used by: logger, audit trail
	// Type: string
	UserIDKey Key = "user_id"

	// AuditSinkKey contains audit.Logger
	// Set by: audit middleware or server wiring
	// Used by: handlers that record audit events
	// Type: audit.Logger
	AuditSinkKey Key = "audit_sink"
)

// Helper functions for type-safe context operations

// WithAuth adds authentication context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithGrant adds an approved-access grant to the context
func WithGrant(ctx context.Context, grant interface{}) context.Context {
	return context.WithValue(ctx, GrantKey, grant)
}

// WithTenant adds the effective tenant id to the context
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantKey, tenantID)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithAuditSink adds the audit sink to the context
func WithAuditSink(ctx context.Context, sink interface{}) context.Context {
	return context.WithValue(ctx, AuditSinkKey, sink)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetTenant retrieves the effective tenant id from context
func GetTenant(ctx context.Context) string {
	if tenantID, ok := ctx.Value(TenantKey).(string); ok {
		return tenantID
	}
	return ""
}
