// Package identity locates user records across the platform, tenant and
// legacy partitions.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/store"
)

const (
	defaultCacheSize = 2048
	defaultCacheTTL  = 5 * time.Second
)

// Loader resolves users by id or email. Partitions are searched in a fixed
// priority order: platform, then the session's active tenant, then legacy.
// The first hit wins, so a user provisioned at platform level shadows any
// stale copy left behind in a tenant or legacy database.
//
// A small TTL'd LRU absorbs the double lookup most requests perform (context
// resolution plus guard enrichment). The TTL is short enough that deactivation
// still lands within a few seconds.
type Loader struct {
	db    store.Store
	cache *expirable.LRU[string, *auth.User]
}

// CacheOptions tunes the loader cache. Zero values take the defaults; a
// negative Size disables caching.
type CacheOptions struct {
	Size int
	TTL  time.Duration
}

// NewLoader builds a loader over db.
func NewLoader(db store.Store, opts CacheOptions) *Loader {
	l := &Loader{db: db}
	if opts.Size >= 0 {
		size := opts.Size
		if size == 0 {
			size = defaultCacheSize
		}
		ttl := opts.TTL
		if ttl <= 0 {
			ttl = defaultCacheTTL
		}
		l.cache = expirable.NewLRU[string, *auth.User](size, nil, ttl)
	}
	return l
}

// FindByID returns the active user with the given id, or nil when no
// partition holds an active record. A non-nil error means no partition could
// be read at all.
func (l *Loader) FindByID(ctx context.Context, userID, tenantHint string) (*auth.User, error) {
	if userID == "" {
		return nil, nil
	}
	key := "id\x00" + tenantHint + "\x00" + userID
	if l.cache != nil {
		if u, ok := l.cache.Get(key); ok {
			return u, nil
		}
	}
	u, err := l.find(ctx, store.M{"id": userID}, tenantHint)
	if err != nil {
		return nil, err
	}
	if l.cache != nil && u != nil {
		l.cache.Add(key, u)
	}
	return u, nil
}

// FindByEmail returns the active user with the given email address. Email
// matching is exact after lowercasing; login never caches, so a just-changed
// password or deactivation is always observed.
func (l *Loader) FindByEmail(ctx context.Context, email, tenantHint string) (*auth.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	return l.find(ctx, store.M{"email": email}, tenantHint)
}

// Invalidate drops any cached copies of the user. Called after mutations that
// must be visible immediately, like deactivation.
func (l *Loader) Invalidate(userID, tenantHint string) {
	if l.cache == nil {
		return
	}
	l.cache.Remove("id\x00" + tenantHint + "\x00" + userID)
	l.cache.Remove("id\x00\x00" + userID)
}

func (l *Loader) find(ctx context.Context, filter store.M, tenantHint string) (*auth.User, error) {
	var lastErr error
	misses := 0
	for _, db := range l.partitions(tenantHint) {
		var u auth.User
		err := db.Collection(store.CollectionUsers).FindOne(ctx, filter, &u)
		if err == nil {
			if !u.IsActive {
				// An inactive record still ends the search; reactivation
				// happens in place, not by shadowing in another partition.
				return nil, nil
			}
			return &u, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			misses++
			continue
		}
		lastErr = err
	}
	if misses == 0 && lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

func (l *Loader) partitions(tenantHint string) []store.Database {
	dbs := []store.Database{l.db.Platform()}
	if tenantHint != "" {
		if tdb, err := l.db.Tenant(tenantHint); err == nil {
			dbs = append(dbs, tdb)
		}
	}
	return append(dbs, l.db.Legacy())
}

// Enrich builds the authenticated request context from a located user and the
// session's tenant binding. TenantID comes from the session alone.
func Enrich(user *auth.User, tenantID, sessionID string) *auth.Context {
	return &auth.Context{
		UserID:        user.ID,
		UserRole:      user.Role,
		UserEmail:     user.Email,
		EmployeeID:    user.EffectiveEmployeeID(),
		DepartmentKey: user.DepartmentKey,
		Department:    user.Department,
		User:          user,
		TenantID:      tenantID,
		SessionID:     sessionID,
	}
}
