package models

import (
	"strings"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type Permission struct {
	Resource  string
	Operation string
}

// Authority in form 'DEVICE:READ'
func (p Permission) Authority() string {
	return strings.ToUpper(p.Resource) + ":" + strings.ToUpper(p.Operation)
}

type Role struct {
	Name        string
	Permissions []Permission
}

// Authority in form 'ROLE_ADMIN'
func (r Role) Authority() string {
	return "ROLE_" + strings.ToUpper(r.Name)
}

func (r Role) Authorities() []string {
	authorities := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		authorities = append(authorities, p.Authority())
	}
	return authorities
}
