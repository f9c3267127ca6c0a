// Package session persists the single active session per user and resolves
// the tenant bound to a request's session.
//
// The user record's activeSessionId stamp is the arbiter for "single active
// session": creating a session rewrites the stamp, so concurrent logins
// deterministically leave exactly one winner and every token carrying a
// superseded session id fails validation afterwards.
package session
