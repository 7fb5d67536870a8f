package models

import (
	"slices"

	"disposisi/pkg/domain"
)

// Filter selects records in list queries.
type Filter func(*Record) bool

// VisibleTo keeps the records actor's dashboard shows.
//
//   - TU: records it created, plus every draft or approved record
//   - Coordinator: records it is assigned to, plus the unclaimed pool
//   - Staff: records it is assigned to while work is open
func VisibleTo(actor domain.Actor) Filter {
	return func(r *Record) bool {
		switch actor.Role {
		case domain.RoleTU:
			return r.CreatedBy == actor.Name || r.Status == StatusDraft || r.Status == StatusApproved
		case domain.RoleCoordinator:
			return r.IsCoordinator(actor.Name) || r.IsUnclaimed()
		case domain.RoleStaff:
			return r.IsStaff(actor.Name) &&
				(r.Status == StatusAssignedToStaff || r.Status == StatusRevisionNeeded)
		}
		return false
	}
}

// WithStatus keeps records in any of statuses. No statuses keeps everything.
func WithStatus(statuses ...Status) Filter {
	return func(r *Record) bool {
		return len(statuses) == 0 || slices.Contains(statuses, r.Status)
	}
}

// Match reports whether r passes every filter.
func Match(r *Record, filters ...Filter) bool {
	for _, f := range filters {
		if f != nil && !f(r) {
			return false
		}
	}
	return true
}
