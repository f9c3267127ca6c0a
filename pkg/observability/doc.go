// Package observability provides structured logging, Prometheus metrics and
// health probes for the authorization core.
package observability
