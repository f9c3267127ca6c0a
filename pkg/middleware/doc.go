// Package middleware provides HTTP middleware for authentication,
// role checks, approved-access gating, and login rate limiting.
//
// # Middleware Ordering Requirements
//
// The guards have strict ordering dependencies. Incorrect order will cause
// role and grant checks to reject every request (auth context missing).
//
// REQUIRED ORDERING (outer to inner):
//  1. httputil.RequestIDMiddleware - stamps the request id used by audit events
//  2. Auth - authenticates the request and sets the auth context
//  3. RequireRole / ApprovedAccess - read the auth context set by Auth
//
// Example (correct):
//
//	router.Use(httputil.RequestIDMiddleware)
//	router.Use(authMW.Handler)
//	admin.Use(middleware.RequireRole(roleGuard, auth.RoleAdmin))
//
// Example (WRONG - RequireRole sees no auth context and 401s everything):
//
//	router.Use(middleware.RequireRole(roleGuard, auth.RoleAdmin))
//	router.Use(authMW.Handler)
//
// # Login Rate Limiting
//
// Login is limited twice: per client IP before the body is read, and per
// account after the email is known. Defaults: 20/min per IP (burst 10),
// 5/min per account (burst 3). The Redis-backed variant shares counters
// across instances and fails open when Redis is unreachable.
package middleware
