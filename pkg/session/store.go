package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/observability"
	"github.com/syra-platform/authcore/pkg/store"
)

const (
	// DefaultIdleTimeout is how long a session survives without activity.
	DefaultIdleTimeout = 30 * time.Minute
	// DefaultAbsoluteMaxAge caps a session's total lifetime regardless of
	// activity.
	DefaultAbsoluteMaxAge = 8 * time.Hour
)

// Options tunes session lifetimes. Zero values take the defaults.
type Options struct {
	IdleTimeout    time.Duration
	AbsoluteMaxAge time.Duration
}

// Store creates, validates and revokes sessions on top of the platform
// partition's sessions collection.
type Store struct {
	db  store.Store
	log *observability.Logger

	idleTimeout    time.Duration
	absoluteMaxAge time.Duration

	now func() time.Time
}

// NewStore builds a session store. log may be nil.
func NewStore(db store.Store, log *observability.Logger, opts Options) *Store {
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	s := &Store{
		db:             db,
		log:            log,
		idleTimeout:    opts.IdleTimeout,
		absoluteMaxAge: opts.AbsoluteMaxAge,
		now:            time.Now,
	}
	if s.idleTimeout <= 0 {
		s.idleTimeout = DefaultIdleTimeout
	}
	if s.absoluteMaxAge <= 0 {
		s.absoluteMaxAge = DefaultAbsoluteMaxAge
	}
	return s
}

// ValidationResult reports the outcome of a session check. Valid is false for
// any definitive rejection; Expired narrows the rejection to a lifetime
// overrun so callers can distinguish "timed out" from "logged in elsewhere".
type ValidationResult struct {
	Valid   bool
	Expired bool
	Message string
}

// Create opens a new session for user, evicting every session the user
// already holds and stamping the user record's activeSessionId with the new
// id. The stamp, not the session row, is what later validation trusts, so the
// last concurrent login wins.
func (s *Store) Create(ctx context.Context, user *auth.User, activeTenantID, userAgent, ip string) (*Session, error) {
	if user == nil || user.ID == "" {
		return nil, errors.New("session: user is required")
	}

	now := s.now().UTC()
	sess := &Session{
		SessionID:         uuid.New().String(),
		UserID:            user.ID,
		TenantID:          user.TenantID,
		ActiveTenantID:    activeTenantID,
		CreatedAt:         now,
		LastSeenAt:        now,
		IdleExpiresAt:     now.Add(s.idleTimeout),
		AbsoluteExpiresAt: now.Add(s.absoluteMaxAge),
		UserAgent:         userAgent,
		IP:                ip,
	}
	sess.ExpiresAt = earlier(sess.IdleExpiresAt, sess.AbsoluteExpiresAt)

	sessions := s.db.Platform().Collection(store.CollectionSessions)
	if _, err := sessions.DeleteMany(ctx, store.M{"userId": user.ID}); err != nil {
		return nil, fmt.Errorf("evict prior sessions: %w", err)
	}
	if err := sessions.InsertOne(ctx, sess); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	if err := s.stampActiveSession(ctx, user, sess.SessionID); err != nil {
		return nil, fmt.Errorf("stamp active session: %w", err)
	}
	return sess, nil
}

// Get loads a session by id. Returns store.ErrNotFound when no row exists.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	var sess Session
	err := s.db.Platform().Collection(store.CollectionSessions).
		FindOne(ctx, store.M{"sessionId": sessionID}, &sess)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Validate checks that sessionID is the live session for userID.
//
// A non-nil error means the store could not be consulted at all; callers
// treat that as an outage and keep previously authenticated requests alive
// rather than logging everyone out. A definitive rejection (missing row,
// expiry, superseded stamp) comes back as Valid=false with a nil error.
func (s *Store) Validate(ctx context.Context, userID, sessionID string) (ValidationResult, error) {
	if userID == "" || sessionID == "" {
		return ValidationResult{Message: "Session not found"}, nil
	}

	sessions := s.db.Platform().Collection(store.CollectionSessions)
	var sess Session
	err := sessions.FindOne(ctx, store.M{"sessionId": sessionID, "userId": userID}, &sess)
	if errors.Is(err, store.ErrNotFound) {
		return ValidationResult{Message: "Session not found"}, nil
	}
	if err != nil {
		return ValidationResult{}, fmt.Errorf("load session: %w", err)
	}

	now := s.now().UTC()
	if reason, expired := s.expiryOf(&sess, now); expired {
		if _, derr := sessions.DeleteOne(ctx, store.M{"sessionId": sessionID}); derr != nil {
			s.log.WithError(derr).Warn("failed to delete expired session")
		}
		return ValidationResult{Expired: true, Message: reason}, nil
	}

	user, err := s.findUser(ctx, userID, sess.EffectiveTenantID())
	if err != nil {
		return ValidationResult{}, fmt.Errorf("load session user: %w", err)
	}
	if user == nil || !user.IsActive {
		return ValidationResult{Message: "User not found"}, nil
	}
	if user.ActiveSessionID != sessionID {
		return ValidationResult{Message: "Session expired (logged in elsewhere)"}, nil
	}

	s.touch(ctx, &sess, now)
	return ValidationResult{Valid: true}, nil
}

// SwitchTenant repoints the session's active tenant. Role checks belong to
// the caller.
func (s *Store) SwitchTenant(ctx context.Context, sessionID, tenantID string) error {
	matched, err := s.db.Platform().Collection(store.CollectionSessions).UpdateOne(ctx,
		store.M{"sessionId": sessionID},
		store.M{"$set": store.M{"activeTenantId": tenantID, "lastSeenAt": s.now().UTC()}})
	if err != nil {
		return fmt.Errorf("switch tenant: %w", err)
	}
	if matched == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete removes a single session row. Missing rows are not an error so that
// logout stays idempotent.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.Platform().Collection(store.CollectionSessions).
		DeleteOne(ctx, store.M{"sessionId": sessionID})
	return err
}

// DeleteAllForUser revokes every session the user holds and clears the
// activeSessionId stamp wherever the user record lives.
func (s *Store) DeleteAllForUser(ctx context.Context, userID, tenantHint string) error {
	if _, err := s.db.Platform().Collection(store.CollectionSessions).
		DeleteMany(ctx, store.M{"userId": userID}); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	unset := store.M{"$unset": store.M{"activeSessionId": ""}}
	filter := store.M{"id": userID}
	for _, db := range s.userDatabases(tenantHint) {
		if _, err := db.Collection(store.CollectionUsers).UpdateOne(ctx, filter, unset); err != nil {
			s.log.WithError(err).WithField("userId", userID).Warn("failed to clear active session stamp")
		}
	}
	return nil
}

// DeleteExpired removes every session past its lifetime. Used by the
// bookkeeping sweeper; validation never depends on it having run.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	return s.db.Platform().Collection(store.CollectionSessions).
		DeleteMany(ctx, store.M{"expiresAt": store.M{"$lt": s.now().UTC()}})
}

func (s *Store) expiryOf(sess *Session, now time.Time) (string, bool) {
	if !sess.AbsoluteExpiresAt.IsZero() && now.After(sess.AbsoluteExpiresAt) {
		return "Session expired (maximum duration reached)", true
	}
	if !sess.IdleExpiresAt.IsZero() && now.After(sess.IdleExpiresAt) {
		return "Session expired (inactivity)", true
	}
	// Rows written before idle/absolute tracking only carry expiresAt.
	if sess.IdleExpiresAt.IsZero() && sess.AbsoluteExpiresAt.IsZero() &&
		!sess.ExpiresAt.IsZero() && now.After(sess.ExpiresAt) {
		return "Session expired", true
	}
	return "", false
}

// touch is best effort; a failed write never invalidates the request.
func (s *Store) touch(ctx context.Context, sess *Session, now time.Time) {
	idle := now.Add(s.idleTimeout)
	if !sess.AbsoluteExpiresAt.IsZero() && idle.After(sess.AbsoluteExpiresAt) {
		idle = sess.AbsoluteExpiresAt
	}
	expires := idle
	if !sess.AbsoluteExpiresAt.IsZero() {
		expires = earlier(idle, sess.AbsoluteExpiresAt)
	}
	_, err := s.db.Platform().Collection(store.CollectionSessions).UpdateOne(ctx,
		store.M{"sessionId": sess.SessionID},
		store.M{"$set": store.M{
			"lastSeenAt":    now,
			"idleExpiresAt": idle,
			"expiresAt":     expires,
		}})
	if err != nil {
		s.log.WithError(err).Warn("failed to touch session")
	}
}

func (s *Store) stampActiveSession(ctx context.Context, user *auth.User, sessionID string) error {
	update := store.M{"$set": store.M{"activeSessionId": sessionID}}
	filter := store.M{"id": user.ID}
	var lastErr error
	for _, db := range s.userDatabases(user.TenantID) {
		matched, err := db.Collection(store.CollectionUsers).UpdateOne(ctx, filter, update)
		if err != nil {
			lastErr = err
			continue
		}
		if matched > 0 {
			return nil
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("user %s not found in any partition", user.ID)
}

// findUser searches the partitions in priority order. A nil user with a nil
// error means every reachable partition gave an authoritative miss; an error
// is returned only when no partition could be read at all.
func (s *Store) findUser(ctx context.Context, userID, tenantHint string) (*auth.User, error) {
	var lastErr error
	misses := 0
	for _, db := range s.userDatabases(tenantHint) {
		var u auth.User
		err := db.Collection(store.CollectionUsers).FindOne(ctx, store.M{"id": userID}, &u)
		if err == nil {
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

func (s *Store) userDatabases(tenantHint string) []store.Database {
	dbs := []store.Database{s.db.Platform()}
	if tenantHint != "" {
		if tdb, err := s.db.Tenant(tenantHint); err == nil {
			dbs = append(dbs, tdb)
		}
	}
	return append(dbs, s.db.Legacy())
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
