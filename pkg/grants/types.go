package grants

import (
	"time"

	"github.com/syra-platform/authcore/pkg/tenants"
)

// Status represents grant lifecycle status
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
	StatusRevoked  Status = "revoked"
)

// Action is a read-only verb a grant permits. Write verbs are deliberately
// not representable.
type Action string

const (
	ActionView   Action = "view"
	ActionExport Action = "export"
)

// DefaultActions is the action set every new grant starts with.
var DefaultActions = []Action{ActionView, ActionExport}

// AccessTokenPrefix marks grant usage tokens so they can never be confused
// with a login JWT.
const AccessTokenPrefix = "aat_"

// Grant is a time-boxed, tenant-admin-approved permission for the platform
// owner to view one tenant's aggregated data. Stored in the platform
// partition.
type Grant struct {
	ID         string `json:"id" bson:"id"`
	OwnerID    string `json:"ownerId" bson:"ownerId"`
	OwnerEmail string `json:"ownerEmail,omitempty" bson:"ownerEmail,omitempty"`
	TenantID   string `json:"tenantId" bson:"tenantId"`
	Status     Status `json:"status" bson:"status"`
	Reason     string `json:"reason,omitempty" bson:"reason,omitempty"`

	RequestedAt   time.Time  `json:"requestedAt" bson:"requestedAt"`
	DurationHours int        `json:"durationHours" bson:"durationHours"`
	ApprovedAt    *time.Time `json:"approvedAt,omitempty" bson:"approvedAt,omitempty"`
	ApprovedBy    string     `json:"approvedBy,omitempty" bson:"approvedBy,omitempty"`
	ApprovalNotes string     `json:"approvalNotes,omitempty" bson:"approvalNotes,omitempty"`
	RejectedAt    *time.Time `json:"rejectedAt,omitempty" bson:"rejectedAt,omitempty"`
	RejectedBy    string     `json:"rejectedBy,omitempty" bson:"rejectedBy,omitempty"`
	RejectionNote string     `json:"rejectionNote,omitempty" bson:"rejectionNote,omitempty"`
	RevokedAt     *time.Time `json:"revokedAt,omitempty" bson:"revokedAt,omitempty"`
	RevokedBy     string     `json:"revokedBy,omitempty" bson:"revokedBy,omitempty"`

	// ExpiresAt is set at approval time. Validity is always computed from it,
	// never from the stored status alone.
	ExpiresAt time.Time `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"`

	// AccessToken is the opaque usage token. Present iff the grant is
	// approved; minted at approval, cleared on revocation.
	AccessToken string `json:"accessToken,omitempty" bson:"accessToken,omitempty"`

	AllowedPlatforms map[tenants.Platform]bool `json:"allowedPlatforms,omitempty" bson:"allowedPlatforms,omitempty"`
	AllowedActions   []Action                  `json:"allowedActions,omitempty" bson:"allowedActions,omitempty"`

	UsageCount int64      `json:"usageCount" bson:"usageCount"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty" bson:"lastUsedAt,omitempty"`

	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// IsValid reports whether the grant is usable right now. Pure: expiry takes
// effect with no write required.
func (g *Grant) IsValid(now time.Time) bool {
	return g.Status == StatusApproved && now.Before(g.ExpiresAt)
}

// AllowsPlatform reports whether the grant covers platform p.
func (g *Grant) AllowsPlatform(p tenants.Platform) bool {
	return g.AllowedPlatforms[p]
}

// AllowsAction reports whether the grant permits action a.
func (g *Grant) AllowsAction(a Action) bool {
	for _, allowed := range g.AllowedActions {
		if allowed == a {
			return true
		}
	}
	return false
}

func allPlatforms() map[tenants.Platform]bool {
	m := make(map[tenants.Platform]bool, len(tenants.KnownPlatforms))
	for _, p := range tenants.KnownPlatforms {
		m[p] = true
	}
	return m
}
