package session

import "time"

// Session is the persisted server-side session record. One row exists per
// active user at any time.
//
// TenantID holds the tenant the session was created under. ActiveTenantID is
// the tenant currently selected for the session; owners may repoint it with a
// tenant switch while everyone else keeps it equal to TenantID.
type Session struct {
	SessionID      string `json:"sessionId" bson:"sessionId"`
	UserID         string `json:"userId" bson:"userId"`
	TenantID       string `json:"tenantId,omitempty" bson:"tenantId,omitempty"`
	ActiveTenantID string `json:"activeTenantId,omitempty" bson:"activeTenantId,omitempty"`

	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt" bson:"lastSeenAt"`

	// IdleExpiresAt advances on every validated request; AbsoluteExpiresAt
	// is fixed at creation. ExpiresAt mirrors the earlier of the two so
	// older rows that only carry expiresAt keep working.
	IdleExpiresAt     time.Time `json:"idleExpiresAt,omitempty" bson:"idleExpiresAt,omitempty"`
	AbsoluteExpiresAt time.Time `json:"absoluteExpiresAt,omitempty" bson:"absoluteExpiresAt,omitempty"`
	ExpiresAt         time.Time `json:"expiresAt" bson:"expiresAt"`

	UserAgent string `json:"userAgent,omitempty" bson:"userAgent,omitempty"`
	IP        string `json:"ip,omitempty" bson:"ip,omitempty"`
}

// EffectiveTenantID returns the tenant the session currently points at,
// preferring the switched tenant over the login tenant. Empty means the
// session is tenant-less, which only platform owners are allowed to be.
func (s *Session) EffectiveTenantID() string {
	if s.ActiveTenantID != "" {
		return s.ActiveTenantID
	}
	return s.TenantID
}
