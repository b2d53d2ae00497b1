package models

import (
	"slices"
	"strings"
	"time"

	"namex/pkg/domain"
)

// Role is a staff role asserted by the identity provider.
type Role string

const (
	RoleApprover Role = "names_approver"
	RoleEditor   Role = "names_editor"
	RoleViewOnly Role = "names_viewer"
	RoleSystem   Role = "system"
)

// ServiceAccountUsername owns requests while they are checked out by the
// public name request flow.
const ServiceAccountUsername = "name_request_service_account"

// User is a staff member or service account.
type User struct {
	ID        domain.UserID `json:"id"`
	Username  string        `json:"username"`
	FirstName string        `json:"firstname"`
	LastName  string        `json:"lastname"`
	Roles     []Role        `json:"roles"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ParseRoles keeps the recognised roles from raw claim values.
func ParseRoles(raw []string) []Role {
	out := make([]Role, 0, len(raw))
	for _, r := range raw {
		role := Role(strings.ToLower(strings.TrimSpace(r)))
		switch role {
		case RoleApprover, RoleEditor, RoleViewOnly, RoleSystem:
			if !slices.Contains(out, role) {
				out = append(out, role)
			}
		}
	}
	return out
}

func (u *User) HasRole(role Role) bool {
	return u != nil && slices.Contains(u.Roles, role)
}

func (u *User) IsApprover() bool { return u.HasRole(RoleApprover) }

func (u *User) IsSystem() bool { return u.HasRole(RoleSystem) }

// CanEdit reports whether the user holds any role that may mutate requests.
func (u *User) CanEdit() bool {
	return u.HasRole(RoleApprover) || u.HasRole(RoleEditor) || u.HasRole(RoleSystem)
}
