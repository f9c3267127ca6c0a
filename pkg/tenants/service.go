// Package tenants is the tenant directory: lifecycle status, product
// entitlements, and the aggregated view served to the platform owner.
package tenants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/syra-platform/authcore/pkg/observability"
	"github.com/syra-platform/authcore/pkg/store"
)

// ErrNotFound is returned when no tenant record exists for the given id.
var ErrNotFound = errors.New("tenants: tenant not found")

// Service manages tenant records in the platform partition.
type Service struct {
	db  store.Store
	log *observability.Logger
	now func() time.Time
}

// NewService creates a tenant directory service.
func NewService(db store.Store, log *observability.Logger) *Service {
	return &Service{db: db, log: log, now: time.Now}
}

func (s *Service) coll() store.Collection {
	return s.db.Platform().Collection(store.CollectionTenants)
}

// Create inserts a new tenant record. Status defaults to active.
func (s *Service) Create(ctx context.Context, t *Tenant) error {
	if t.TenantID == "" {
		return errors.New("tenants: tenantId is required")
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	for _, p := range t.Entitlements {
		if !ValidPlatform(p) {
			return fmt.Errorf("tenants: unknown platform %q", p)
		}
	}
	now := s.now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := s.coll().InsertOne(ctx, t); err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// Get retrieves a tenant by id.
func (s *Service) Get(ctx context.Context, tenantID string) (*Tenant, error) {
	var t Tenant
	err := s.coll().FindOne(ctx, store.M{"tenantId": tenantID}, &t)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

// List returns all tenant records ordered by creation time.
func (s *Service) List(ctx context.Context) ([]*Tenant, error) {
	var out []*Tenant
	err := s.coll().Find(ctx, store.M{}, &store.FindOptions{Sort: store.M{"createdAt": 1}}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return out, nil
}

// Block marks a tenant blocked. Blocked tenants fail authentication for every
// non-platform user until unblocked.
func (s *Service) Block(ctx context.Context, tenantID, reason string) error {
	now := s.now().UTC()
	matched, err := s.coll().UpdateOne(ctx,
		store.M{"tenantId": tenantID},
		store.M{"$set": store.M{
			"status":        StatusBlocked,
			"blockedAt":     now,
			"blockedReason": reason,
			"updatedAt":     now,
		}})
	if err != nil {
		return fmt.Errorf("failed to block tenant: %w", err)
	}
	if matched == 0 {
		return ErrNotFound
	}
	s.log.WithField("tenantId", tenantID).Info("tenant blocked")
	return nil
}

// Unblock restores a blocked tenant to active.
func (s *Service) Unblock(ctx context.Context, tenantID string) error {
	matched, err := s.coll().UpdateOne(ctx,
		store.M{"tenantId": tenantID},
		store.M{
			"$set":   store.M{"status": StatusActive, "updatedAt": s.now().UTC()},
			"$unset": store.M{"blockedAt": "", "blockedReason": ""},
		})
	if err != nil {
		return fmt.Errorf("failed to unblock tenant: %w", err)
	}
	if matched == 0 {
		return ErrNotFound
	}
	s.log.WithField("tenantId", tenantID).Info("tenant unblocked")
	return nil
}

// IsBlocked reports whether the tenant must be refused authentication. An
// unknown tenant id is not treated as blocked; legacy users carry tenant ids
// that predate the directory.
func (s *Service) IsBlocked(ctx context.Context, tenantID string) (bool, error) {
	t, err := s.Get(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return t.EffectiveStatus(s.now().UTC()) != StatusActive, nil
}

// Overview builds the aggregated per-tenant rows for the owner console:
// directory fields plus user and live-session counts. Count failures for a
// single tenant degrade that row to zeros rather than failing the whole view.
func (s *Service) Overview(ctx context.Context) ([]*Overview, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sessions := s.db.Platform().Collection(store.CollectionSessions)
	out := make([]*Overview, 0, len(list))
	for _, t := range list {
		row := &Overview{
			TenantID:           t.TenantID,
			Name:               t.Name,
			Status:             t.EffectiveStatus(now),
			Entitlements:       t.Entitlements,
			MaxUsers:           t.MaxUsers,
			SubscriptionEndsAt: t.SubscriptionEndsAt,
		}
		if tdb, terr := s.db.Tenant(t.TenantID); terr == nil {
			n, cerr := tdb.Collection(store.CollectionUsers).CountDocuments(ctx, store.M{"isActive": true})
			if cerr != nil {
				s.log.WithError(cerr).WithField("tenantId", t.TenantID).Warn("user count failed")
			} else {
				row.UserCount = n
			}
		}
		n, cerr := sessions.CountDocuments(ctx, store.M{"tenantId": t.TenantID})
		if cerr != nil {
			s.log.WithError(cerr).WithField("tenantId", t.TenantID).Warn("session count failed")
		} else {
			row.ActiveSessions = n
		}
		out = append(out, row)
	}
	return out, nil
}
