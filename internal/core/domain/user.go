package domain

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials is the single outcome for every failed login branch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	// ErrConflict reports a username or email already held by another user.
	ErrConflict        = errors.New("username or email already in use")
	ErrTooManyAttempts = errors.New("too many failed login attempts")
)

// RoleAssignment links a user to one catalog role.
type RoleAssignment struct {
	RoleID     RoleID    `json:"roleId"`
	AssignedAt time.Time `json:"assignedAt"`
}

// User models an account in the directory.
type User struct {
	ID           int64            `json:"id"`
	Username     string           `json:"username"`
	Email        string           `json:"email"`
	PasswordHash string           `json:"-"`
	FirstName    string           `json:"firstName"`
	LastName     string           `json:"lastName"`
	IsActive     bool             `json:"isActive"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	Roles        []RoleAssignment `json:"roles"`
}

// RoleNames returns the catalog names of the user's assignments, in
// assignment order. Assignments to unknown ids are skipped.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, a := range u.Roles {
		if r, ok := LookupRole(a.RoleID); ok {
			names = append(names, r.Name)
		}
	}
	return names
}

// AssignRoles replaces the user's assignments with ids, stamped at.
// Duplicate and unknown ids are dropped.
func (u *User) AssignRoles(ids []RoleID, at time.Time) {
	ids = AssignableRoles(ids)
	u.Roles = make([]RoleAssignment, 0, len(ids))
	for _, id := range ids {
		u.Roles = append(u.Roles, RoleAssignment{RoleID: id, AssignedAt: at})
	}
}

// RoleIDs returns the ids of the user's assignments.
func (u *User) RoleIDs() []RoleID {
	ids := make([]RoleID, 0, len(u.Roles))
	for _, a := range u.Roles {
		ids = append(ids, a.RoleID)
	}
	return ids
}
