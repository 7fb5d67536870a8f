package models

// Status is the workflow state of a record.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusSentToCoordinator Status = "sent_to_coordinator"
	StatusAssignedToStaff   Status = "assigned_to_staff"
	StatusCompletedByStaff  Status = "completed_by_staff"
	StatusApproved          Status = "approved"
	StatusRevisionNeeded    Status = "revision_needed"
)

var statusLabels = map[Status]string{
	StatusDraft:             "Draft",
	StatusSentToCoordinator: "Dikirim ke Koordinator",
	StatusAssignedToStaff:   "Ditugaskan ke Staff",
	StatusCompletedByStaff:  "Selesai dari Staff",
	StatusApproved:          "Disetujui",
	StatusRevisionNeeded:    "Perlu Revisi",
}

func (s Status) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label is the display text shown on dashboards and the public lookup.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// IsTerminal reports whether no action leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusApproved
}

// Action names a workflow transition request.
type Action string

const (
	ActionForwardToCoordinator Action = "forward_to_coordinator"
	ActionAssignToStaff        Action = "assign_to_staff"
	ActionCompleteTask         Action = "complete_task"
	ActionApprove              Action = "approve"
	ActionRequestRevision      Action = "request_revision"
)
