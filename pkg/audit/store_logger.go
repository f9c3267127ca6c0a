package audit

import (
	"context"
	"fmt"

	"github.com/syra-platform/authcore/pkg/store"
)

// StoreLogger persists audit events to the platform partition. Grant
// lifecycle events land in the grant audit trail collection; guard denials
// land in the general audit log.
type StoreLogger struct {
	db store.Store
}

// NewStoreLogger creates a store-backed audit logger.
func NewStoreLogger(db store.Store) *StoreLogger {
	return &StoreLogger{db: db}
}

func (l *StoreLogger) collectionFor(t EventType) store.Collection {
	name := store.CollectionAuditLogs
	if t.IsGrantEvent() {
		name = store.CollectionGrantLogs
	}
	return l.db.Platform().Collection(name)
}

func (l *StoreLogger) Log(ctx context.Context, event *Event) error {
	if !event.EventType.Valid() {
		return fmt.Errorf("audit: unknown event type %q", event.EventType)
	}
	if err := l.collectionFor(event.EventType).InsertOne(ctx, event); err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

func (l *StoreLogger) Close() error { return nil }

// Search returns recent events matching q, newest first. Grant events and
// guard denials are searched in their respective collections based on
// q.EventType; an empty EventType searches the grant trail, which is the
// surface the owner console reads.
func (l *StoreLogger) Search(ctx context.Context, q Query) ([]*Event, error) {
	filter := store.M{}
	if q.TenantID != "" {
		filter["tenantId"] = q.TenantID
	}
	if q.OwnerID != "" {
		filter["ownerId"] = q.OwnerID
	}
	if q.TokenID != "" {
		filter["tokenId"] = q.TokenID
	}
	coll := l.db.Platform().Collection(store.CollectionGrantLogs)
	if q.EventType != "" {
		filter["eventType"] = string(q.EventType)
		coll = l.collectionFor(q.EventType)
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []*Event
	err := coll.Find(ctx, filter, &store.FindOptions{
		Sort:  store.M{"timestamp": -1},
		Limit: limit,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("audit: search: %w", err)
	}
	return out, nil
}
