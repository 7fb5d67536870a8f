package domain

import (
	"strings"

	dErrors "disposisi/pkg/domain-errors"
)

// Role partitions actors in the office workflow.
type Role string

const (
	// RoleTU is the administrative intake role: creates and forwards records.
	RoleTU Role = "TU"
	// RoleCoordinator triages forwarded records, assigns staff and reviews their work.
	RoleCoordinator Role = "Coordinator"
	// RoleStaff performs assigned work and reports completion.
	RoleStaff Role = "Staff"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleTU, RoleCoordinator, RoleStaff:
		return true
	}
	return false
}

// ParseRole accepts a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tu":
		return RoleTU, nil
	case "coordinator":
		return RoleCoordinator, nil
	case "staff":
		return RoleStaff, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role: "+s)
}

// Actor is an authenticated participant. Records reference actors by Name,
// matching how assignments are displayed and stored.
type Actor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

func (a Actor) IsZero() bool {
	return a.Name == "" && a.Role == ""
}
