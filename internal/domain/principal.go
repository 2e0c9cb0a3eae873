package domain

// Role is the authorization level attached to a principal.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
	// RoleUser is the default for an authenticated principal without a
	// role assignment.
	RoleUser Role = "user"
	RoleNone Role = ""
)

// ParseRole maps a stored role value, falling back to RoleUser for
// anything unrecognised.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleAdmin, RoleStaff:
		return Role(raw)
	}
	return RoleUser
}

// Principal is the resolved caller for an operation.
type Principal struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

// Anonymous returns the unauthenticated principal.
func Anonymous() Principal {
	return Principal{Role: RoleNone}
}

// Authenticated reports whether the principal carries an identity.
func (p Principal) Authenticated() bool {
	return p.ID != ""
}

// Privileged reports whether the principal may mutate status and notes.
func (p Principal) Privileged() bool {
	return p.Authenticated() && (p.Role == RoleAdmin || p.Role == RoleStaff)
}

// HasRole reports whether the principal holds any of the given roles.
func (p Principal) HasRole(roles ...Role) bool {
	if !p.Authenticated() {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// IdentitySession is an established session issued by an identity provider.
type IdentitySession struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at,omitempty"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
}
