package models

import (
	"slices"
	"time"

	id "disposisi/pkg/domain"
)

// Fields are the descriptive letter attributes. They carry no workflow meaning.
type Fields struct {
	LetterNumber      string   `json:"letter_number"`
	Subject           string   `json:"subject"`
	Origin            string   `json:"origin"`
	OriginGroup       string   `json:"origin_group"`
	Sender            string   `json:"sender"`
	Confidentiality   []string `json:"confidentiality"`
	Urgency           []string `json:"urgency"`
	AgendaNumber      string   `json:"agenda_number"`
	SecretariatAgenda string   `json:"secretariat_agenda"`
	AgendaDate        string   `json:"agenda_date"`
	LetterDate        string   `json:"letter_date"`
}

// Attachment references an uploaded file by content locator.
type Attachment struct {
	Name    string `json:"name"`
	Locator string `json:"locator"`
}

// TimelineEntry is one immutable step of a record's history.
type TimelineEntry struct {
	ID        id.TimelineEntryID `json:"id"`
	Action    string             `json:"action"`
	User      string             `json:"user"`
	Timestamp time.Time          `json:"timestamp"`
	Status    Status             `json:"status"`
}

// Record is the aggregate root for an incoming letter and its disposition.
//
// Invariants:
//   - Timeline is non-empty once created and only grows at the end
//   - Timeline[len-1].Status == Status after every committed mutation
//   - Timeline timestamps are non-decreasing
//   - Status changes only through ApplyTransition
//   - AssignedCoordinators and AssignedStaff hold unique names in insertion order
//   - ID, CreatedBy and CreatedAt never change
//   - Version increases by one with every committed mutation
type Record struct {
	ID id.RecordID `json:"id"`
	Fields
	Status               Status          `json:"status"`
	CreatedBy            string          `json:"created_by"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	AssignedCoordinators []string        `json:"assigned_coordinators"`
	AssignedStaff        []string        `json:"assigned_staff"`
	TodoList             []string        `json:"todo_list"`
	Notes                string          `json:"notes"`
	Timeline             []TimelineEntry `json:"timeline"`
	Attachment           *Attachment     `json:"attachment,omitempty"`
	Version              int64           `json:"version"`
}

// TimelineActionCreated is the first timeline entry of every record.
const TimelineActionCreated = "Record created"

// NewRecord builds a draft record with its creation entry.
func NewRecord(recordID id.RecordID, fields Fields, attachment *Attachment, createdBy string, now time.Time) *Record {
	r := &Record{
		ID:                   recordID,
		Fields:               fields,
		Status:               StatusDraft,
		CreatedBy:            createdBy,
		CreatedAt:            now,
		UpdatedAt:            now,
		AssignedCoordinators: []string{},
		AssignedStaff:        []string{},
		TodoList:             []string{},
		Attachment:           attachment,
		Version:              1,
	}
	r.Timeline = []TimelineEntry{{
		ID:        id.NewTimelineEntryID(),
		Action:    TimelineActionCreated,
		User:      createdBy,
		Timestamp: now,
		Status:    StatusDraft,
	}}
	return r
}

// Effects are the field changes a transition carries. Nil leaves a field as is.
type Effects struct {
	AssignedCoordinators []string
	AssignedStaff        []string
	TodoList             []string
	Notes                *string
}

// ApplyTransition moves the record to status to and appends one timeline entry.
// The caller (the transition policy) has already validated the move.
// Returns the appended entry.
func (r *Record) ApplyTransition(to Status, action, user string, now time.Time, eff Effects) TimelineEntry {
	now = r.monotonic(now)
	if eff.AssignedCoordinators != nil {
		r.AssignedCoordinators = slices.Clone(eff.AssignedCoordinators)
	}
	if eff.AssignedStaff != nil {
		r.AssignedStaff = slices.Clone(eff.AssignedStaff)
	}
	if eff.TodoList != nil {
		r.TodoList = slices.Clone(eff.TodoList)
	}
	if eff.Notes != nil {
		r.Notes = *eff.Notes
	}
	r.Status = to
	r.UpdatedAt = now
	r.Version++

	entry := TimelineEntry{
		ID:        id.NewTimelineEntryID(),
		Action:    action,
		User:      user,
		Timestamp: now,
		Status:    to,
	}
	r.Timeline = append(r.Timeline, entry)
	return entry
}

// Touch records a non-transition mutation.
func (r *Record) Touch(now time.Time) {
	r.UpdatedAt = r.monotonic(now)
	r.Version++
}

// monotonic clamps now so timestamps never go backwards across entries.
func (r *Record) monotonic(now time.Time) time.Time {
	if n := len(r.Timeline); n > 0 && now.Before(r.Timeline[n-1].Timestamp) {
		now = r.Timeline[n-1].Timestamp
	}
	if now.Before(r.UpdatedAt) {
		now = r.UpdatedAt
	}
	return now
}

// LastEntry returns the newest timeline entry.
func (r *Record) LastEntry() (TimelineEntry, bool) {
	if len(r.Timeline) == 0 {
		return TimelineEntry{}, false
	}
	return r.Timeline[len(r.Timeline)-1], true
}

// IsCoordinator reports whether name is an assigned coordinator.
func (r *Record) IsCoordinator(name string) bool {
	return slices.Contains(r.AssignedCoordinators, name)
}

// IsStaff reports whether name is assigned staff.
func (r *Record) IsStaff(name string) bool {
	return slices.Contains(r.AssignedStaff, name)
}

// IsUnclaimed reports whether the record waits in the coordinator pool.
func (r *Record) IsUnclaimed() bool {
	return r.Status == StatusSentToCoordinator && len(r.AssignedCoordinators) == 0
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Confidentiality = slices.Clone(r.Confidentiality)
	cp.Urgency = slices.Clone(r.Urgency)
	cp.AssignedCoordinators = slices.Clone(r.AssignedCoordinators)
	cp.AssignedStaff = slices.Clone(r.AssignedStaff)
	cp.TodoList = slices.Clone(r.TodoList)
	cp.Timeline = slices.Clone(r.Timeline)
	if r.Attachment != nil {
		a := *r.Attachment
		cp.Attachment = &a
	}
	return &cp
}
