package handler

import (
	"time"

	"disposisi/internal/workflow/models"
	"disposisi/pkg/domain"
)

// RecordResponse is a record as its dashboards see it.
type RecordResponse struct {
	*models.Record
	StatusLabel    string          `json:"status_label"`
	AllowedActions []models.Action `json:"allowed_actions"`
}

type ListResponse struct {
	Records []*RecordResponse `json:"records"`
	Count   int               `json:"count"`
}

// PublicRecordResponse is what the anonymous tracking page shows.
type PublicRecordResponse struct {
	ID              domain.RecordID        `json:"id"`
	LetterNumber    string                 `json:"letter_number"`
	Subject         string                 `json:"subject"`
	Origin          string                 `json:"origin"`
	Sender          string                 `json:"sender"`
	Confidentiality []string               `json:"confidentiality"`
	Urgency         []string               `json:"urgency"`
	LetterDate      string                 `json:"letter_date,omitempty"`
	Status          models.Status          `json:"status"`
	StatusLabel     string                 `json:"status_label"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	Timeline        []models.TimelineEntry `json:"timeline"`

	AssignedCoordinators []string `json:"assigned_coordinators,omitempty"`
	AssignedStaff        []string `json:"assigned_staff,omitempty"`
	TodoList             []string `json:"todo_list,omitempty"`
	Notes                string   `json:"notes,omitempty"`
	AttachmentName       string   `json:"attachment_name,omitempty"`
	AttachmentLocator    string   `json:"attachment_locator,omitempty"`
}

func (h *Handler) toRecordResponse(rec *models.Record, actor domain.Actor) *RecordResponse {
	allowed := h.workflow.AllowedActions(rec, actor)
	if allowed == nil {
		allowed = []models.Action{}
	}
	return &RecordResponse{
		Record:         rec,
		StatusLabel:    rec.Status.Label(),
		AllowedActions: allowed,
	}
}

func toPublicResponse(rec *models.Record, redact bool) *PublicRecordResponse {
	out := &PublicRecordResponse{
		ID:              rec.ID,
		LetterNumber:    rec.LetterNumber,
		Subject:         rec.Subject,
		Origin:          rec.Origin,
		Sender:          rec.Sender,
		Confidentiality: rec.Confidentiality,
		Urgency:         rec.Urgency,
		LetterDate:      rec.LetterDate,
		Status:          rec.Status,
		StatusLabel:     rec.Status.Label(),
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
		Timeline:        rec.Timeline,
		TodoList:        rec.TodoList,
	}
	if rec.Attachment != nil {
		out.AttachmentName = rec.Attachment.Name
	}
	if redact {
		out.Timeline = redactTimeline(rec.Timeline)
		return out
	}
	out.AssignedCoordinators = rec.AssignedCoordinators
	out.AssignedStaff = rec.AssignedStaff
	out.Notes = rec.Notes
	if rec.Attachment != nil {
		out.AttachmentLocator = rec.Attachment.Locator
	}
	return out
}

// redactTimeline keeps order, timestamps and statuses but replaces action text
// and actor with the status label, since both name directory users.
func redactTimeline(entries []models.TimelineEntry) []models.TimelineEntry {
	out := make([]models.TimelineEntry, len(entries))
	for i, e := range entries {
		out[i] = models.TimelineEntry{
			ID:        e.ID,
			Action:    e.Status.Label(),
			Timestamp: e.Timestamp,
			Status:    e.Status,
		}
	}
	return out
}
