package auth

import "time"

// Role is the closed set of roles consumed by the core. The strings are
// opaque to the permission layer; only the structural distinctions below
// (platform vs tenant, admin vs scoped) matter here.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleSupervisor    Role = "supervisor"
	RoleStaff         Role = "staff"
	RoleViewer        Role = "viewer"
	RoleGroupAdmin    Role = "group-admin"
	RoleHospitalAdmin Role = "hospital-admin"
	RoleOwner         Role = "syra-owner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleStaff, RoleViewer,
		RoleGroupAdmin, RoleHospitalAdmin, RoleOwner:
		return true
	}
	return false
}

// IsPlatform reports whether the role operates above individual tenants and
// may therefore authenticate without a tenant bound to its session.
func (r Role) IsPlatform() bool {
	return r == RoleOwner
}

// User is a user record as stored in whichever partition owns it.
type User struct {
	ID              string     `json:"id" bson:"id"`
	Email           string     `json:"email" bson:"email"`
	PasswordHash    string     `json:"passwordHash,omitempty" bson:"password"`
	FirstName       string     `json:"firstName,omitempty" bson:"firstName,omitempty"`
	LastName        string     `json:"lastName,omitempty" bson:"lastName,omitempty"`
	Role            Role       `json:"role" bson:"role"`
	IsActive        bool       `json:"isActive" bson:"isActive"`
	TenantID        string     `json:"tenantId,omitempty" bson:"tenantId,omitempty"` // legacy fallback
	GroupID         string     `json:"groupId,omitempty" bson:"groupId,omitempty"`
	HospitalID      string     `json:"hospitalId,omitempty" bson:"hospitalId,omitempty"`
	Department      string     `json:"department,omitempty" bson:"department,omitempty"`
	DepartmentKey   string     `json:"departmentKey,omitempty" bson:"departmentKey,omitempty"`
	EmployeeID      string     `json:"employeeId,omitempty" bson:"employeeId,omitempty"`
	StaffID         string     `json:"staffId,omitempty" bson:"staffId,omitempty"`
	ActiveSessionID string     `json:"activeSessionId,omitempty" bson:"activeSessionId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt" bson:"updatedAt"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty" bson:"lastLoginAt,omitempty"`
}

// Redacted returns a copy safe to hand to clients: the password hash is
// stripped. Always use this when a User crosses the HTTP boundary.
func (u *User) Redacted() *User {
	clean := *u
	clean.PasswordHash = ""
	return &clean
}

// EffectiveEmployeeID returns the employee identifier, falling back to the
// legacy staffId field.
func (u *User) EffectiveEmployeeID() string {
	if u.EmployeeID != "" {
		return u.EmployeeID
	}
	return u.StaffID
}

// Context is the fully-populated result of authentication. TenantID always
// comes from the session, never from the request body or query.
type Context struct {
	UserID        string `json:"userId"`
	UserRole      Role   `json:"userRole"`
	UserEmail     string `json:"userEmail"`
	EmployeeID    string `json:"employeeId,omitempty"`
	DepartmentKey string `json:"departmentKey,omitempty"`
	Department    string `json:"department,omitempty"`
	User          *User  `json:"-"`
	TenantID      string `json:"tenantId"`
	SessionID     string `json:"sessionId"`
}

// IsOwner reports whether the authenticated caller is the platform owner.
func (c *Context) IsOwner() bool {
	return c.UserRole == RoleOwner
}
