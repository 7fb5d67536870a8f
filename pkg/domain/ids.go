// Package domain holds typed identifiers shared across modules.
//
// Typed IDs keep a record ID from being passed where a timeline entry ID is
// expected. Construct them with the Parse functions at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "disposisi/pkg/domain-errors"
)

// RecordID identifies a document record.
type RecordID uuid.UUID

// TimelineEntryID identifies one entry of a record's timeline.
type TimelineEntryID uuid.UUID

// NewRecordID returns a fresh random record ID.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// NewTimelineEntryID returns a fresh random timeline entry ID.
func NewTimelineEntryID() TimelineEntryID { return TimelineEntryID(uuid.New()) }

func (id RecordID) String() string { return uuid.UUID(id).String() }
func (id RecordID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id RecordID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *RecordID) UnmarshalText(b []byte) error {
	parsed, err := ParseRecordID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id TimelineEntryID) String() string { return uuid.UUID(id).String() }
func (id TimelineEntryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id TimelineEntryID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *TimelineEntryID) UnmarshalText(b []byte) error {
	parsed, err := parseUUID(string(b), "timeline entry ID")
	if err != nil {
		return err
	}
	*id = TimelineEntryID(parsed)
	return nil
}

// ParseRecordID parses and validates a record ID.
func ParseRecordID(s string) (RecordID, error) {
	parsed, err := parseUUID(s, "record ID")
	if err != nil {
		return RecordID{}, err
	}
	return RecordID(parsed), nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return parsed, nil
}
