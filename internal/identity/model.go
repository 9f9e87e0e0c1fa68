package identity

import (
	"strings"
	"time"
)

// Role is the back-office permission level of a staff member.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
	RoleAuditor    Role = "auditor"
)

// ParseRole normalises a role tag. Unknown tags are reported as invalid.
func ParseRole(raw string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleAdmin, RoleSuperAdmin, RoleAuditor:
		return r, true
	default:
		return "", false
	}
}

// CanMutate reports whether the role may change balances, accounts or users.
func (r Role) CanMutate() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// CanRead reports whether the role may view ledger and audit data.
func (r Role) CanRead() bool {
	return r.CanMutate() || r == RoleAuditor
}

// Actor is the authenticated staff member performing a call.
type Actor struct {
	ID   string
	Role Role
}

// User represents a back-office staff account.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	PasswordHash []byte
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Actor returns the call identity of the user.
func (u User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// Credentials request structure.
type Credentials struct {
	Email    string
	Password string
}
