// Package audit records security-relevant events: denied requests, scope
// violations, and every transition and use of an approved-access grant.
//
// Audit writes are best effort. A failing sink is reported to the local log
// and the metrics counter, never to the caller; an authorization decision is
// never blocked or reversed because its audit record could not be written.
package audit
