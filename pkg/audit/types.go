package audit

import "time"

// EventType is the category of an audit event
type EventType string

const (
	// Guard denials
	EventAccessDenied   EventType = "access_denied"
	EventScopeViolation EventType = "scope_violation"

	// Approved-access grant lifecycle
	EventRequestCreated  EventType = "request_created"
	EventRequestApproved EventType = "request_approved"
	EventRequestRejected EventType = "request_rejected"
	EventAccessActivated EventType = "access_activated"
	EventAccessRevoked   EventType = "access_revoked"
	EventAccessUsed      EventType = "access_used"
	EventAccessExpired   EventType = "access_expired"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventAccessDenied, EventScopeViolation,
		EventRequestCreated, EventRequestApproved, EventRequestRejected,
		EventAccessActivated, EventAccessRevoked, EventAccessUsed, EventAccessExpired:
		return true
	}
	return false
}

// IsGrantEvent reports whether t belongs to the approved-access lifecycle.
// Grant events are persisted to the grant audit trail; the remaining events
// go to the general audit log.
func (t EventType) IsGrantEvent() bool {
	switch t {
	case EventRequestCreated, EventRequestApproved, EventRequestRejected,
		EventAccessActivated, EventAccessRevoked, EventAccessUsed, EventAccessExpired:
		return true
	}
	return false
}

// Event is a single audit log entry
type Event struct {
	ID        string    `json:"id" bson:"id"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	EventType EventType `json:"eventType" bson:"eventType"`

	// Grant context
	TokenID string `json:"tokenId,omitempty" bson:"tokenId,omitempty"`
	OwnerID string `json:"ownerId,omitempty" bson:"ownerId,omitempty"`

	// Actor: who triggered the event (the owner, a tenant admin, or the
	// user a guard turned away)
	ActorID   string `json:"actorId,omitempty" bson:"actorId,omitempty"`
	ActorRole string `json:"actorRole,omitempty" bson:"actorRole,omitempty"`

	TenantID string `json:"tenantId,omitempty" bson:"tenantId,omitempty"`
	Platform string `json:"platform,omitempty" bson:"platform,omitempty"`
	Action   string `json:"action,omitempty" bson:"action,omitempty"`

	Reason  string `json:"reason,omitempty" bson:"reason,omitempty"`
	Message string `json:"message,omitempty" bson:"message,omitempty"`

	// Request context
	RequestID string `json:"requestId,omitempty" bson:"requestId,omitempty"`
	IPAddress string `json:"ipAddress,omitempty" bson:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty" bson:"userAgent,omitempty"`
	Method    string `json:"method,omitempty" bson:"method,omitempty"`
	Path      string `json:"path,omitempty" bson:"path,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// Query filters the audit trail. Zero fields match everything.
type Query struct {
	TenantID  string
	OwnerID   string
	TokenID   string
	EventType EventType
	Limit     int64
}
