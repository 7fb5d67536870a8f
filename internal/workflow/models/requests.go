package models

import (
	"fmt"
	"strings"
	"time"

	attachmentmodels "disposisi/internal/attachment/models"
	dErrors "disposisi/pkg/domain-errors"
	pkgstrings "disposisi/pkg/platform/strings"
)

const (
	dateLayout     = "2006-01-02"
	maxFieldLength = 512
	maxNotesLength = 4000
)

// CreateRecordRequest carries the fields a TU supplies for a new record.
type CreateRecordRequest struct {
	Fields
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Normalize trims text and de-duplicates label sets.
func (r *CreateRecordRequest) Normalize() {
	if r == nil {
		return
	}
	r.Fields.normalize()
	if r.Attachment != nil {
		r.Attachment.normalize()
	}
}

// Validate checks required fields and label values.
func (r *CreateRecordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := r.Fields.validate(); err != nil {
		return err
	}
	return r.Attachment.validate()
}

// UpdateFieldsRequest is a partial update of descriptive fields. It has no
// status field: status only changes through transitions.
type UpdateFieldsRequest struct {
	LetterNumber      *string     `json:"letter_number,omitempty"`
	Subject           *string     `json:"subject,omitempty"`
	Origin            *string     `json:"origin,omitempty"`
	OriginGroup       *string     `json:"origin_group,omitempty"`
	Sender            *string     `json:"sender,omitempty"`
	Confidentiality   *[]string   `json:"confidentiality,omitempty"`
	Urgency           *[]string   `json:"urgency,omitempty"`
	AgendaNumber      *string     `json:"agenda_number,omitempty"`
	SecretariatAgenda *string     `json:"secretariat_agenda,omitempty"`
	AgendaDate        *string     `json:"agenda_date,omitempty"`
	LetterDate        *string     `json:"letter_date,omitempty"`
	Attachment        *Attachment `json:"attachment,omitempty"`
	RemoveAttachment  bool        `json:"remove_attachment,omitempty"`
}

// Apply returns fields with the request's changes applied. The result still
// needs validation.
func (r *UpdateFieldsRequest) Apply(f Fields) Fields {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&f.LetterNumber, r.LetterNumber)
	set(&f.Subject, r.Subject)
	set(&f.Origin, r.Origin)
	set(&f.OriginGroup, r.OriginGroup)
	set(&f.Sender, r.Sender)
	set(&f.AgendaNumber, r.AgendaNumber)
	set(&f.SecretariatAgenda, r.SecretariatAgenda)
	set(&f.AgendaDate, r.AgendaDate)
	set(&f.LetterDate, r.LetterDate)
	if r.Confidentiality != nil {
		f.Confidentiality = *r.Confidentiality
	}
	if r.Urgency != nil {
		f.Urgency = *r.Urgency
	}
	f.normalize()
	return f
}

// IsEmpty reports whether the request changes nothing.
func (r *UpdateFieldsRequest) IsEmpty() bool {
	return r.LetterNumber == nil && r.Subject == nil && r.Origin == nil && r.OriginGroup == nil &&
		r.Sender == nil && r.Confidentiality == nil && r.Urgency == nil && r.AgendaNumber == nil &&
		r.SecretariatAgenda == nil && r.AgendaDate == nil && r.LetterDate == nil &&
		r.Attachment == nil && !r.RemoveAttachment
}

// ValidateAttachment checks the attachment change part of the request.
func (r *UpdateFieldsRequest) ValidateAttachment() error {
	if r.Attachment != nil && r.RemoveAttachment {
		return dErrors.New(dErrors.CodeValidation, "attachment and remove_attachment are mutually exclusive")
	}
	if r.Attachment != nil {
		r.Attachment.normalize()
	}
	return r.Attachment.validate()
}

// TransitionRequest asks the policy to apply action. Payload fields are read
// only by the actions that use them.
type TransitionRequest struct {
	Action       Action   `json:"action"`
	Coordinators []string `json:"coordinators,omitempty"`
	Staff        []string `json:"staff,omitempty"`
	TodoList     []string `json:"todo_list,omitempty"`
	Notes        *string  `json:"notes,omitempty"`
}

func (r *TransitionRequest) Normalize() {
	if r == nil {
		return
	}
	r.Action = Action(strings.TrimSpace(string(r.Action)))
	r.Coordinators = pkgstrings.DedupeAndTrim(r.Coordinators)
	r.Staff = pkgstrings.DedupeAndTrim(r.Staff)
	r.TodoList = pkgstrings.DedupeAndTrim(r.TodoList)
	if r.Notes != nil {
		n := strings.TrimSpace(*r.Notes)
		r.Notes = &n
	}
}

func (f *Fields) normalize() {
	f.LetterNumber = strings.TrimSpace(f.LetterNumber)
	f.Subject = strings.TrimSpace(f.Subject)
	f.Origin = strings.TrimSpace(f.Origin)
	f.OriginGroup = strings.TrimSpace(f.OriginGroup)
	f.Sender = strings.TrimSpace(f.Sender)
	f.AgendaNumber = strings.TrimSpace(f.AgendaNumber)
	f.SecretariatAgenda = strings.TrimSpace(f.SecretariatAgenda)
	f.AgendaDate = strings.TrimSpace(f.AgendaDate)
	f.LetterDate = strings.TrimSpace(f.LetterDate)
	f.Confidentiality = pkgstrings.DedupeAndTrim(f.Confidentiality)
	f.Urgency = pkgstrings.DedupeAndTrim(f.Urgency)
	if f.Confidentiality == nil {
		f.Confidentiality = []string{}
	}
	if f.Urgency == nil {
		f.Urgency = []string{}
	}
}

// Validate checks required fields, label values and formats.
func (f Fields) Validate() error {
	return f.validate()
}

func (f *Fields) validate() error {
	required := []struct{ name, value string }{
		{"letter_number", f.LetterNumber},
		{"subject", f.Subject},
		{"origin", f.Origin},
		{"sender", f.Sender},
	}
	for _, r := range required {
		if r.value == "" {
			return dErrors.New(dErrors.CodeValidation, r.name+" is required")
		}
	}
	for name, v := range map[string]string{
		"letter_number": f.LetterNumber, "subject": f.Subject, "origin": f.Origin,
		"origin_group": f.OriginGroup, "sender": f.Sender, "agenda_number": f.AgendaNumber,
		"secretariat_agenda": f.SecretariatAgenda,
	} {
		if len(v) > maxFieldLength {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be %d characters or less", name, maxFieldLength))
		}
	}
	if bad := firstNotIn(f.Confidentiality, ConfidentialityLabels); bad != "" {
		return dErrors.New(dErrors.CodeValidation, "unknown confidentiality label: "+bad)
	}
	if bad := firstNotIn(f.Urgency, UrgencyLabels); bad != "" {
		return dErrors.New(dErrors.CodeValidation, "unknown urgency label: "+bad)
	}
	if err := validateDate("agenda_date", f.AgendaDate); err != nil {
		return err
	}
	return validateDate("letter_date", f.LetterDate)
}

func validateDate(name, v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.Parse(dateLayout, v); err != nil {
		return dErrors.New(dErrors.CodeValidation, name+" must be YYYY-MM-DD")
	}
	return nil
}

func (a *Attachment) normalize() {
	a.Name = strings.TrimSpace(a.Name)
	a.Locator = strings.TrimSpace(a.Locator)
}

func (a *Attachment) validate() error {
	if a == nil {
		return nil
	}
	if a.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "attachment name is required")
	}
	if err := attachmentmodels.ValidateLocator(a.Locator); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid attachment locator")
	}
	return nil
}

// ValidateNotes bounds free-text notes.
func ValidateNotes(notes *string) error {
	if notes != nil && len(*notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("notes must be %d characters or less", maxNotesLength))
	}
	return nil
}
