package store

import (
	"context"
	"errors"
)

// Collection names used by the core. Sessions, grants and their audit trail
// live in the platform partition; users may live in any partition.
const (
	CollectionSessions  = "sessions"
	CollectionUsers     = "users"
	CollectionTenants   = "tenants"
	CollectionGrants    = "approved_access_tokens"
	CollectionGrantLogs = "approved_access_audit_logs"
	CollectionAuditLogs = "audit_logs"
	CollectionRecords   = "records"
)

var (
	// ErrNotFound is returned by FindOne when no document matches.
	ErrNotFound = errors.New("store: document not found")
	// ErrInvalidTenant is returned when a tenant key cannot be resolved to a
	// database handle.
	ErrInvalidTenant = errors.New("store: invalid tenant key")
)

// M is a filter or update document. Filters support equality matches plus the
// $ne, $in, $lt, $lte, $gt and $gte operators; updates support $set, $unset
// and $inc. This is deliberately the smallest subset the core needs.
type M = map[string]interface{}

// FindOptions controls sorting and limiting for Find.
type FindOptions struct {
	// Sort maps field name to 1 (ascending) or -1 (descending).
	Sort M
	// Limit of 0 means no limit.
	Limit int64
}

// Collection is the per-collection document interface.
type Collection interface {
	// FindOne decodes the first matching document into out, or ErrNotFound.
	FindOne(ctx context.Context, filter M, out interface{}) error

	// Find decodes all matching documents into out, which must be a pointer
	// to a slice.
	Find(ctx context.Context, filter M, opts *FindOptions, out interface{}) error

	// InsertOne inserts a single document.
	InsertOne(ctx context.Context, doc interface{}) error

	// UpdateOne applies update to the first matching document and reports how
	// many documents matched. A zero count with a nil error means the filter
	// matched nothing; callers use this for compare-and-set transitions.
	UpdateOne(ctx context.Context, filter M, update M) (int64, error)

	// UpdateMany applies update to every matching document.
	UpdateMany(ctx context.Context, filter M, update M) (int64, error)

	// DeleteOne removes the first matching document.
	DeleteOne(ctx context.Context, filter M) (int64, error)

	// DeleteMany removes every matching document.
	DeleteMany(ctx context.Context, filter M) (int64, error)

	// CountDocuments counts matching documents.
	CountDocuments(ctx context.Context, filter M) (int64, error)
}

// Database is a named-collection handle within one partition.
type Database interface {
	Collection(name string) Collection
}

// Store resolves partitions. Platform holds sessions, tenants, grants and
// platform-level users; Tenant(id) holds that tenant's users and domain data;
// Legacy is the pre-multi-tenant database kept for backward compatibility.
type Store interface {
	Platform() Database
	Tenant(tenantID string) (Database, error)
	Legacy() Database
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
