package tenants

import "time"

// Status represents tenant lifecycle status
type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
	StatusExpired Status = "expired"
)

// Platform identifies one of the product surfaces a tenant can be entitled to
type Platform string

const (
	PlatformSAM     Platform = "sam"
	PlatformHealth  Platform = "health"
	PlatformEdrac   Platform = "edrac"
	PlatformCVision Platform = "cvision"
)

// KnownPlatforms is the closed set of product surfaces.
var KnownPlatforms = []Platform{PlatformSAM, PlatformHealth, PlatformEdrac, PlatformCVision}

// ValidPlatform reports whether p names a known product surface.
func ValidPlatform(p Platform) bool {
	for _, k := range KnownPlatforms {
		if p == k {
			return true
		}
	}
	return false
}

// Tenant is a tenant directory record, stored in the platform partition.
type Tenant struct {
	TenantID           string     `json:"tenantId" bson:"tenantId"`
	Name               string     `json:"name" bson:"name"`
	Status             Status     `json:"status" bson:"status"`
	Entitlements       []Platform `json:"entitlements,omitempty" bson:"entitlements,omitempty"`
	MaxUsers           int        `json:"maxUsers,omitempty" bson:"maxUsers,omitempty"`
	SubscriptionEndsAt *time.Time `json:"subscriptionEndsAt,omitempty" bson:"subscriptionEndsAt,omitempty"`
	BlockedAt          *time.Time `json:"blockedAt,omitempty" bson:"blockedAt,omitempty"`
	BlockedReason      string     `json:"blockedReason,omitempty" bson:"blockedReason,omitempty"`
	CreatedAt          time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// EffectiveStatus folds subscription expiry into the stored status. A blocked
// tenant stays blocked even after its subscription lapses.
func (t *Tenant) EffectiveStatus(now time.Time) Status {
	if t.Status == StatusBlocked {
		return StatusBlocked
	}
	if t.SubscriptionEndsAt != nil && now.After(*t.SubscriptionEndsAt) {
		return StatusExpired
	}
	return t.Status
}

// IsActive reports whether the tenant may authenticate right now.
func (t *Tenant) IsActive(now time.Time) bool {
	return t.EffectiveStatus(now) == StatusActive
}

// HasEntitlement reports whether the tenant is entitled to platform p.
func (t *Tenant) HasEntitlement(p Platform) bool {
	for _, e := range t.Entitlements {
		if e == p {
			return true
		}
	}
	return false
}

// Overview is the aggregated tenant row served to the platform owner console.
// It carries counts and entitlements only; user-level data never crosses this
// boundary.
type Overview struct {
	TenantID           string     `json:"tenantId"`
	Name               string     `json:"name"`
	Status             Status     `json:"status"`
	Entitlements       []Platform `json:"entitlements,omitempty"`
	UserCount          int64      `json:"userCount"`
	ActiveSessions     int64      `json:"activeSessions"`
	MaxUsers           int        `json:"maxUsers,omitempty"`
	SubscriptionEndsAt *time.Time `json:"subscriptionEndsAt,omitempty"`
}
