package auth

import "net/http"

// Reason is a machine-distinguishable failure code. The HTTP response body
// never exposes which part of the credential check failed; reasons exist for
// diagnostics and audit only.
type Reason string

const (
	ReasonNoToken              Reason = "no_token"
	ReasonInvalidToken         Reason = "invalid_token"
	ReasonSessionInvalid       Reason = "session_invalid"
	ReasonSessionTenantMissing Reason = "session_tenant_missing"
	ReasonUserNotFound         Reason = "user_not_found_or_inactive"
	ReasonTenantBlocked        Reason = "tenant_blocked"
	ReasonRoleDenied           Reason = "role_denied"
	ReasonScopeDenied          Reason = "scope_denied"
	ReasonGrantMissing         Reason = "grant_missing"
	ReasonGrantInvalid         Reason = "grant_invalid"
	ReasonGrantOwnerMismatch   Reason = "grant_owner_mismatch"
	ReasonGrantPlatformDenied  Reason = "grant_platform_denied"
)

// Error is the discriminated failure branch of authenticate/authorize calls.
// Callers branch on it instead of catching exceptions.
type Error struct {
	Status  int    `json:"-"`
	Reason  Reason `json:"-"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return string(e.Reason) + ": " + e.Message
}

// Unauthorized builds a 401 error with a generic user-facing message.
func Unauthorized(reason Reason, message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Reason: reason, Message: message}
}

// Forbidden builds a 403 error.
func Forbidden(reason Reason, message string) *Error {
	return &Error{Status: http.StatusForbidden, Reason: reason, Message: message}
}
