// Package api exposes the HTTP surface: login and session management,
// the approved-access workflow, the owner console, and the audit trail.
//
// Handlers are grouped per concern (AuthHandlers, GrantHandlers,
// OwnerHandlers, AuditHandlers) and registered on a gorilla/mux router by
// the Server. Authentication and role checks run as middleware; handlers
// read the auth context set by middleware.Auth and never re-authenticate.
package api
