// Package grants implements the approved-access workflow: a state machine
// over cross-tenant access grants and the guard that enforces them.
//
// States move pending to approved or rejected, and approved to revoked.
// Expiry is derived from ExpiresAt at read time; the sweeper's expired writes
// are bookkeeping only. No transition ever returns to pending. All status
// transitions are compare-and-set updates conditioned on the current status,
// so concurrent transitions on the same grant resolve to exactly one winner.
package grants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/syra-platform/authcore/pkg/audit"
	"github.com/syra-platform/authcore/pkg/observability"
	"github.com/syra-platform/authcore/pkg/store"
)

// DefaultDurationHours is the grant lifetime when the request doesn't name one.
const DefaultDurationHours = 24

// Workflow persists grants and drives their state machine.
type Workflow struct {
	db      store.Store
	sink    *audit.Sink
	log     *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewWorkflow builds a workflow. metrics may be nil.
func NewWorkflow(db store.Store, sink *audit.Sink, log *observability.Logger, metrics *observability.Metrics) *Workflow {
	return &Workflow{db: db, sink: sink, log: log, metrics: metrics, now: time.Now}
}

func (w *Workflow) coll() store.Collection {
	return w.db.Platform().Collection(store.CollectionGrants)
}

func (w *Workflow) transition(name string) {
	if w.metrics != nil {
		w.metrics.GrantTransitionsTotal.WithLabelValues(name).Inc()
	}
}

// Request creates a pending grant for ownerID to view tenantID's data.
// durationHours of zero takes the default. New grants allow every platform
// and the read-only action set.
func (w *Workflow) Request(ctx context.Context, ownerID, ownerEmail, tenantID, reason string, durationHours int) (*Grant, error) {
	if ownerID == "" || tenantID == "" {
		return nil, errors.New("grants: ownerId and tenantId are required")
	}
	if durationHours <= 0 {
		durationHours = DefaultDurationHours
	}
	now := w.now().UTC()
	g := &Grant{
		ID:               uuid.New().String(),
		OwnerID:          ownerID,
		OwnerEmail:       ownerEmail,
		TenantID:         tenantID,
		Status:           StatusPending,
		Reason:           reason,
		RequestedAt:      now,
		DurationHours:    durationHours,
		AllowedPlatforms: allPlatforms(),
		AllowedActions:   DefaultActions,
		UpdatedAt:        now,
	}
	if err := w.coll().InsertOne(ctx, g); err != nil {
		return nil, fmt.Errorf("grants: insert request: %w", err)
	}
	w.transition("request_created")
	w.sink.Record(ctx, &audit.Event{
		EventType: audit.EventRequestCreated,
		TokenID:   g.ID,
		OwnerID:   ownerID,
		ActorID:   ownerID,
		TenantID:  tenantID,
		Message:   reason,
	})
	return g, nil
}

// Approve moves a pending grant to approved, minting its usage token and
// fixing its expiry. Approving a grant in any other state returns (nil, nil)
// and mutates nothing. customExpiresAt, when non-nil, overrides the duration
// requested by the owner.
func (w *Workflow) Approve(ctx context.Context, requestID, approvedBy, notes string, customExpiresAt *time.Time) (*Grant, error) {
	current, err := w.Get(ctx, requestID)
	if err != nil || current == nil {
		return nil, err
	}

	now := w.now().UTC()
	expires := now.Add(time.Duration(current.DurationHours) * time.Hour)
	if customExpiresAt != nil {
		expires = customExpiresAt.UTC()
	}
	token := AccessTokenPrefix + uuid.New().String()

	matched, err := w.coll().UpdateOne(ctx,
		store.M{"id": requestID, "status": StatusPending},
		store.M{"$set": store.M{
			"status":        StatusApproved,
			"approvedAt":    now,
			"approvedBy":    approvedBy,
			"approvalNotes": notes,
			"expiresAt":     expires,
			"accessToken":   token,
			"updatedAt":     now,
		}})
	if err != nil {
		return nil, fmt.Errorf("grants: approve: %w", err)
	}
	if matched == 0 {
		// Not pending anymore; illegal transitions are silent no-ops.
		return nil, nil
	}
	w.transition("request_approved")
	w.sink.Record(ctx, &audit.Event{
		EventType: audit.EventRequestApproved,
		TokenID:   requestID,
		OwnerID:   current.OwnerID,
		ActorID:   approvedBy,
		TenantID:  current.TenantID,
		Message:   notes,
	})
	return w.Get(ctx, requestID)
}

// Reject moves a pending grant to rejected. Any other state is a silent
// no-op returning false.
func (w *Workflow) Reject(ctx context.Context, requestID, rejectedBy, reason string) (bool, error) {
	current, err := w.Get(ctx, requestID)
	if err != nil || current == nil {
		return false, err
	}
	now := w.now().UTC()
	matched, err := w.coll().UpdateOne(ctx,
		store.M{"id": requestID, "status": StatusPending},
		store.M{"$set": store.M{
			"status":        StatusRejected,
			"rejectedAt":    now,
			"rejectedBy":    rejectedBy,
			"rejectionNote": reason,
			"updatedAt":     now,
		}})
	if err != nil {
		return false, fmt.Errorf("grants: reject: %w", err)
	}
	if matched == 0 {
		return false, nil
	}
	w.transition("request_rejected")
	w.sink.Record(ctx, &audit.Event{
		EventType: audit.EventRequestRejected,
		TokenID:   requestID,
		OwnerID:   current.OwnerID,
		ActorID:   rejectedBy,
		TenantID:  current.TenantID,
		Message:   reason,
	})
	return true, nil
}

// Revoke kills a pending or approved grant. The usage token is cleared so
// the approved-iff-token invariant holds.
func (w *Workflow) Revoke(ctx context.Context, requestID, revokedBy, reason string) (bool, error) {
	current, err := w.Get(ctx, requestID)
	if err != nil || current == nil {
		return false, err
	}
	now := w.now().UTC()
	matched, err := w.coll().UpdateOne(ctx,
		store.M{"id": requestID, "status": store.M{"$in": []string{string(StatusPending), string(StatusApproved)}}},
		store.M{
			"$set": store.M{
				"status":    StatusRevoked,
				"revokedAt": now,
				"revokedBy": revokedBy,
				"updatedAt": now,
			},
			"$unset": store.M{"accessToken": ""},
		})
	if err != nil {
		return false, fmt.Errorf("grants: revoke: %w", err)
	}
	if matched == 0 {
		return false, nil
	}
	w.transition("access_revoked")
	w.sink.Record(ctx, &audit.Event{
		EventType: audit.EventAccessRevoked,
		TokenID:   requestID,
		OwnerID:   current.OwnerID,
		ActorID:   revokedBy,
		TenantID:  current.TenantID,
		Message:   reason,
	})
	return true, nil
}

// Get loads a grant by id. Unknown ids return (nil, nil).
func (w *Workflow) Get(ctx context.Context, id string) (*Grant, error) {
	var g Grant
	err := w.coll().FindOne(ctx, store.M{"id": id}, &g)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("grants: get: %w", err)
	}
	return &g, nil
}

// GetByAccessToken loads a grant by its usage token. Unknown tokens return
// (nil, nil).
func (w *Workflow) GetByAccessToken(ctx context.Context, accessToken string) (*Grant, error) {
	if accessToken == "" {
		return nil, nil
	}
	var g Grant
	err := w.coll().FindOne(ctx, store.M{"accessToken": accessToken}, &g)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("grants: get by token: %w", err)
	}
	return &g, nil
}

// GetActiveGrant returns the currently usable grant for (owner, tenant). If
// several approved grants overlap, the one expiring last wins: it is the most
// permissive grant still usable.
func (w *Workflow) GetActiveGrant(ctx context.Context, ownerID, tenantID string) (*Grant, error) {
	var list []*Grant
	err := w.coll().Find(ctx,
		store.M{"ownerId": ownerID, "tenantId": tenantID, "status": StatusApproved},
		&store.FindOptions{Sort: store.M{"expiresAt": -1}},
		&list)
	if err != nil {
		return nil, fmt.Errorf("grants: get active: %w", err)
	}
	now := w.now().UTC()
	for _, g := range list {
		if g.IsValid(now) {
			return g, nil
		}
	}
	return nil, nil
}

// RecordUsage increments the grant's usage counter and stamps lastUsedAt.
// The counter is the authoritative measure of how much a grant was exercised,
// so the increment happens on every successful use with no short-circuit.
// The first use additionally emits access_activated; the zero-counter guard
// in the filter keeps that emission exactly-once when uses race.
func (w *Workflow) RecordUsage(ctx context.Context, accessToken, ip, userAgent string) (*Grant, error) {
	g, err := w.GetByAccessToken(ctx, accessToken)
	if err != nil || g == nil {
		return nil, err
	}
	now := w.now().UTC()
	update := store.M{
		"$inc": store.M{"usageCount": 1},
		"$set": store.M{"lastUsedAt": now, "updatedAt": now},
	}
	// Claim the first use with a guarded update; losers fall through to a
	// plain increment.
	matched, err := w.coll().UpdateOne(ctx, store.M{"id": g.ID, "usageCount": 0}, update)
	if err != nil {
		return nil, fmt.Errorf("grants: record usage: %w", err)
	}
	first := matched > 0
	if !first {
		if _, err := w.coll().UpdateOne(ctx, store.M{"id": g.ID}, update); err != nil {
			return nil, fmt.Errorf("grants: record usage: %w", err)
		}
	}
	if w.metrics != nil {
		w.metrics.GrantUsageTotal.Inc()
	}
	if first {
		w.sink.Record(ctx, &audit.Event{
			EventType: audit.EventAccessActivated,
			TokenID:   g.ID,
			OwnerID:   g.OwnerID,
			ActorID:   g.OwnerID,
			TenantID:  g.TenantID,
			IPAddress: ip,
			UserAgent: userAgent,
		})
	}
	w.sink.Record(ctx, &audit.Event{
		EventType: audit.EventAccessUsed,
		TokenID:   g.ID,
		OwnerID:   g.OwnerID,
		ActorID:   g.OwnerID,
		TenantID:  g.TenantID,
		IPAddress: ip,
		UserAgent: userAgent,
	})
	g.UsageCount++
	g.LastUsedAt = &now
	return g, nil
}

// ListPendingForTenant returns the pending requests a tenant admin needs to
// act on, oldest first.
func (w *Workflow) ListPendingForTenant(ctx context.Context, tenantID string) ([]*Grant, error) {
	var list []*Grant
	err := w.coll().Find(ctx,
		store.M{"tenantId": tenantID, "status": StatusPending},
		&store.FindOptions{Sort: store.M{"requestedAt": 1}},
		&list)
	if err != nil {
		return nil, fmt.Errorf("grants: list pending: %w", err)
	}
	return list, nil
}

// ListForOwner returns every grant the owner has requested, newest first.
func (w *Workflow) ListForOwner(ctx context.Context, ownerID string) ([]*Grant, error) {
	var list []*Grant
	err := w.coll().Find(ctx,
		store.M{"ownerId": ownerID},
		&store.FindOptions{Sort: store.M{"requestedAt": -1}},
		&list)
	if err != nil {
		return nil, fmt.Errorf("grants: list for owner: %w", err)
	}
	return list, nil
}

// MarkExpired stamps expired on approved grants whose expiry has passed and
// emits access_expired for each. Validity never depends on this having run.
func (w *Workflow) MarkExpired(ctx context.Context) (int, error) {
	now := w.now().UTC()
	var stale []*Grant
	err := w.coll().Find(ctx,
		store.M{"status": StatusApproved, "expiresAt": store.M{"$lte": now}},
		nil, &stale)
	if err != nil {
		return 0, fmt.Errorf("grants: find stale: %w", err)
	}
	marked := 0
	for _, g := range stale {
		matched, err := w.coll().UpdateOne(ctx,
			store.M{"id": g.ID, "status": StatusApproved},
			store.M{
				"$set":   store.M{"status": StatusExpired, "updatedAt": now},
				"$unset": store.M{"accessToken": ""},
			})
		if err != nil {
			w.log.WithError(err).WithField("grantId", g.ID).Warn("failed to mark grant expired")
			continue
		}
		if matched == 0 {
			continue
		}
		marked++
		w.transition("access_expired")
		w.sink.Record(ctx, &audit.Event{
			EventType: audit.EventAccessExpired,
			TokenID:   g.ID,
			OwnerID:   g.OwnerID,
			TenantID:  g.TenantID,
		})
	}
	return marked, nil
}
