// Package service owns the record collection: it is the only code that
// mutates records, and every mutation goes through the transition policy or
// the draft-only field editor.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"disposisi/internal/workflow/metrics"
	"disposisi/internal/workflow/models"
	"disposisi/internal/workflow/policy"
	"disposisi/pkg/domain"
	dErrors "disposisi/pkg/domain-errors"
	"disposisi/pkg/platform/audit"
	"disposisi/pkg/platform/sentinel"
	"disposisi/pkg/requestcontext"
)

type Store interface {
	CreateIfLetterNumberAvailable(ctx context.Context, rec *models.Record) error
	FindByID(ctx context.Context, recordID domain.RecordID) (*models.Record, error)
	List(ctx context.Context) ([]*models.Record, error)
	FindFirstByLetterNumber(ctx context.Context, query string) (*models.Record, error)
	Update(ctx context.Context, rec *models.Record, expectedVersion int64, appended ...models.TimelineEntry) error
	Delete(ctx context.Context, recordID domain.RecordID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the workflow store. Returned records are copies; changing them
// does not change stored state.
type Service struct {
	store          Store
	tx             RecordStoreTx
	directory      policy.Directory
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx replaces the default in-process sharded lock, e.g. with a SQL
// transaction runner.
func WithTx(tx RecordStoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func New(store Store, directory policy.Directory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: directory,
		tracer:    otel.Tracer("disposisi/internal/workflow/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx(store, defaultRecordTxTimeout)
	}
	return s
}

// CreateRecord adds a draft record with its creation entry.
func (s *Service) CreateRecord(ctx context.Context, actor domain.Actor, req *models.CreateRecordRequest) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.CreateRecord")
	defer span.End()

	if actor.Role != domain.RoleTU {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only TU may create records")
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rec := models.NewRecord(domain.NewRecordID(), req.Fields, req.Attachment, actor.Name, requestcontext.Now(ctx))
	span.SetAttributes(attribute.String("record.id", rec.ID.String()))

	txCtx := WithTxKey(ctx, "letter:"+strings.ToLower(rec.LetterNumber))
	err := s.runInTx(txCtx, "create", func(store Store) error {
		return store.CreateIfLetterNumberAvailable(txCtx, rec)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeValidation, "letter number already exists: "+rec.LetterNumber)
		}
		return nil, s.failSpan(span, translateStoreError(err, "failed to create record"))
	}

	s.metrics.IncrementCreated()
	s.logAudit(ctx, audit.EventRecordCreated, actor, rec, "", models.TimelineActionCreated)
	return rec.Clone(), nil
}

// GetRecord returns the record with id.
func (s *Service) GetRecord(ctx context.Context, recordID domain.RecordID) (*models.Record, error) {
	rec, err := s.store.FindByID(ctx, recordID)
	if err != nil {
		return nil, translateStoreError(err, "failed to load record")
	}
	return rec, nil
}

// ListRecords returns records passing every filter, in creation order.
func (s *Service) ListRecords(ctx context.Context, filters ...models.Filter) ([]*models.Record, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list records")
	}
	out := make([]*models.Record, 0, len(all))
	for _, r := range all {
		if models.Match(r, filters...) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListVisible returns the dashboard of actor, optionally narrowed to statuses.
func (s *Service) ListVisible(ctx context.Context, actor domain.Actor, statuses ...models.Status) ([]*models.Record, error) {
	return s.ListRecords(ctx, models.VisibleTo(actor), models.WithStatus(statuses...))
}

// UpdateFields edits descriptive fields of a draft. No timeline entry is
// written; UpdatedAt moves forward.
func (s *Service) UpdateFields(ctx context.Context, actor domain.Actor, recordID domain.RecordID, req *models.UpdateFieldsRequest) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.UpdateFields",
		trace.WithAttributes(attribute.String("record.id", recordID.String())))
	defer span.End()

	if actor.Role != domain.RoleTU {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only TU may edit records")
	}
	if req == nil || req.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no fields to update")
	}
	if err := req.ValidateAttachment(); err != nil {
		return nil, err
	}

	var updated *models.Record
	txCtx := WithTxKey(ctx, recordID.String())
	err := s.runInTx(txCtx, "update_fields", func(store Store) error {
		rec, err := store.FindByID(txCtx, recordID)
		if err != nil {
			return err
		}
		if rec.Status != models.StatusDraft {
			return dErrors.New(dErrors.CodeForbidden, "records can only be edited while in draft")
		}

		fields := req.Apply(rec.Fields)
		if err := fields.Validate(); err != nil {
			return err
		}

		expected := rec.Version
		rec.Fields = fields
		switch {
		case req.RemoveAttachment:
			rec.Attachment = nil
		case req.Attachment != nil:
			att := *req.Attachment
			rec.Attachment = &att
		}
		rec.Touch(requestcontext.Now(ctx))
		if err := store.Update(txCtx, rec, expected); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeValidation, "letter number already exists")
		}
		return nil, s.failSpan(span, s.translateTxError(err, "failed to update record"))
	}

	s.logAudit(ctx, audit.EventRecordUpdated, actor, updated, "", "fields updated")
	return updated.Clone(), nil
}

// DeleteRecord removes a draft.
func (s *Service) DeleteRecord(ctx context.Context, actor domain.Actor, recordID domain.RecordID) error {
	ctx, span := s.tracer.Start(ctx, "workflow.DeleteRecord",
		trace.WithAttributes(attribute.String("record.id", recordID.String())))
	defer span.End()

	if actor.Role != domain.RoleTU {
		return dErrors.New(dErrors.CodeUnauthorized, "only TU may delete records")
	}

	var deleted *models.Record
	txCtx := WithTxKey(ctx, recordID.String())
	err := s.runInTx(txCtx, "delete", func(store Store) error {
		rec, err := store.FindByID(txCtx, recordID)
		if err != nil {
			return err
		}
		if rec.Status != models.StatusDraft {
			return dErrors.New(dErrors.CodeForbidden, "only draft records can be deleted")
		}
		if err := store.Delete(txCtx, recordID); err != nil {
			return err
		}
		deleted = rec
		return nil
	})
	if err != nil {
		return s.failSpan(span, s.translateTxError(err, "failed to delete record"))
	}

	s.logAudit(ctx, audit.EventRecordDeleted, actor, deleted, "", "record deleted")
	return nil
}

// ApplyTransition asks the policy to move the record and commits status,
// payload fields and one timeline entry together. A rejected request leaves
// the record unchanged.
func (s *Service) ApplyTransition(ctx context.Context, actor domain.Actor, recordID domain.RecordID, req *models.TransitionRequest) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.ApplyTransition",
		trace.WithAttributes(attribute.String("record.id", recordID.String())))
	defer span.End()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	span.SetAttributes(attribute.String("workflow.action", string(req.Action)))

	var (
		from models.Status
		rec  *models.Record
		out  policy.Outcome
	)
	txCtx := WithTxKey(ctx, recordID.String())
	err := s.runInTx(txCtx, "transition", func(store Store) error {
		var err error
		rec, err = store.FindByID(txCtx, recordID)
		if err != nil {
			return err
		}
		from = rec.Status
		out, err = policy.Decide(rec, actor, req, s.directory)
		if err != nil {
			return err
		}
		expected := rec.Version
		entry := rec.ApplyTransition(out.To, out.TimelineAction, actor.Name, requestcontext.Now(ctx), out.Effects)
		return store.Update(txCtx, rec, expected, entry)
	})
	if err != nil {
		err = s.translateTxError(err, "failed to apply transition")
		if isRejection(err) {
			s.metrics.IncrementRejected(string(req.Action), string(dErrors.CodeOf(err)))
			if rec != nil {
				s.logAudit(ctx, audit.EventTransitionRejected, actor, rec, from, err.Error())
			}
		}
		return nil, s.failSpan(span, err)
	}

	s.metrics.IncrementTransition(string(req.Action), string(out.To))
	s.logAudit(ctx, audit.EventRecordTransitioned, actor, rec, from, out.TimelineAction)
	return rec.Clone(), nil
}

// AllowedActions lists what actor may attempt on the record now.
func (s *Service) AllowedActions(rec *models.Record, actor domain.Actor) []models.Action {
	return policy.AllowedActions(rec, actor)
}

// Search returns the earliest record whose letter number contains query,
// ignoring case. Several matches are possible; only the first is returned.
func (s *Service) Search(ctx context.Context, query string) (*models.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "letter number is required")
	}
	rec, err := s.store.FindFirstByLetterNumber(ctx, query)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no record matches letter number "+query)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search records")
	}
	return rec, nil
}

// SeedSample inserts the demonstration letter SPT/001/2024, already assigned
// to staff. Returns nil when the letter number is taken.
func (s *Service) SeedSample(ctx context.Context) (*models.Record, error) {
	day := time.Date(2024, 1, 15, 9, 0, 0, 0, time.Local)
	rec := models.NewRecord(domain.NewRecordID(), models.Fields{
		LetterNumber:      "SPT/001/2024",
		Subject:           "Rapat Koordinasi Bulanan",
		Origin:            "Kepala Dinas",
		OriginGroup:       "Sekretariat",
		Sender:            "Kepala Dinas",
		Confidentiality:   []string{"Penting"},
		Urgency:           []string{"Segera"},
		AgendaNumber:      "AG-001",
		SecretariatAgenda: "AS-001",
		AgendaDate:        "2024-01-15",
		LetterDate:        "2024-01-14",
	}, nil, "Administrator TU", day)
	rec.ApplyTransition(models.StatusSentToCoordinator, "Forwarded to coordinators: Suwati, S.h",
		"Administrator TU", day.Add(15*time.Minute),
		models.Effects{AssignedCoordinators: []string{"Suwati, S.h"}})
	notes := "Koordinasi agenda rapat dan persiapan materi"
	rec.ApplyTransition(models.StatusAssignedToStaff, "Assigned to staff: Ahmad Fauzi, Rita Juwita",
		"Suwati, S.h", day.Add(150*time.Minute),
		models.Effects{
			AssignedStaff: []string{"Ahmad Fauzi", "Rita Juwita"},
			TodoList:      []string{"Jadwalkan/Agendakan", "Siapkan bahan"},
			Notes:         &notes,
		})

	txCtx := WithTxKey(ctx, "letter:"+strings.ToLower(rec.LetterNumber))
	err := s.runInTx(txCtx, "seed", func(store Store) error {
		return store.CreateIfLetterNumberAvailable(txCtx, rec)
	})
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return nil, nil
	}
	if err != nil {
		return nil, translateStoreError(err, "failed to seed sample record")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "seeded sample record", "record_id", rec.ID.String(), "letter_number", rec.LetterNumber)
	}
	return rec.Clone(), nil
}

func (s *Service) runInTx(ctx context.Context, operation string, fn func(store Store) error) error {
	start := time.Now()
	defer func() { s.metrics.ObserveTx(operation, time.Since(start)) }()
	return s.tx.RunInTx(ctx, fn)
}

// translateTxError keeps domain errors from inside the transaction and maps
// store sentinels.
func (s *Service) translateTxError(err error, msg string) error {
	if errors.Is(err, sentinel.ErrConflict) {
		s.metrics.IncrementConflict()
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return translateStoreError(err, msg)
}

func translateStoreError(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "record not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "record was modified concurrently; reload and retry")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// isRejection reports whether err is the policy refusing the request rather
// than an infrastructure failure.
func isRejection(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeIllegalTransition, dErrors.CodeUnauthorized, dErrors.CodeValidation:
		return true
	}
	return false
}

func (s *Service) failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, actor domain.Actor, rec *models.Record, from models.Status, detail string) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"record_id", rec.ID.String(),
			"letter_number", rec.LetterNumber,
			"actor", actor.Name,
			"role", actor.Role,
			"from_status", string(from),
			"to_status", string(rec.Status),
			"detail", detail,
			"request_id", requestID,
			"event", string(event),
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		RecordID:     rec.ID,
		LetterNumber: rec.LetterNumber,
		Action:       string(event),
		Actor:        actor.Name,
		ActorRole:    actor.Role,
		FromStatus:   string(from),
		ToStatus:     string(rec.Status),
		Detail:       detail,
		RequestID:    requestID,
		ClientIP:     requestcontext.ClientIP(ctx),
		Device:       requestcontext.Device(ctx),
	})
}
