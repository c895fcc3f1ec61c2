package models

import (
	"slices"

	"github.com/google/uuid"
)

// Result of login or refresh
// Access or Refresh is nil when the flow didn't mint it
type Session struct {
	User    User
	Access  *IssuedToken
	Refresh *IssuedToken
}

// Authenticated caller of the request
type Principal struct {
	UserID      uuid.UUID
	Username    string
	Role        string
	Permissions []string
}

func NewPrincipal(user User) Principal {
	return Principal{
		UserID:      user.ID,
		Username:    user.Username,
		Role:        user.Role.Authority(),
		Permissions: user.Role.Authorities(),
	}
}

func (p Principal) HasPermission(authority string) bool {
	return slices.Contains(p.Permissions, authority)
}
