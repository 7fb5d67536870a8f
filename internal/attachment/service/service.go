package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"disposisi/internal/attachment/models"
	dErrors "disposisi/pkg/domain-errors"
	"disposisi/pkg/platform/audit"
	"disposisi/pkg/platform/sentinel"
	"disposisi/pkg/requestcontext"
)

type Store interface {
	Put(ctx context.Context, locator string, blob models.Blob) error
	Get(ctx context.Context, locator string) (*models.Blob, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service turns uploaded files into content-addressed locators.
type Service struct {
	store          Store
	maxBytes       int64
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

func New(store Store, maxBytes int64, opts ...Option) *Service {
	s := &Service{store: store, maxBytes: maxBytes}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload stores the content of r and returns its {name, locator} pair.
func (s *Service) Upload(ctx context.Context, name string, r io.Reader) (*models.Attachment, error) {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return nil, dErrors.New(dErrors.CodeValidation, "file name is required")
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read upload")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, dErrors.New(dErrors.CodeValidation, "file exceeds the attachment size limit")
	}
	if len(data) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "file is empty")
	}

	sum := sha256.Sum256(data)
	locator := models.LocatorPrefix + hex.EncodeToString(sum[:])
	blob := models.Blob{Name: name, ContentType: http.DetectContentType(data), Data: data}
	if err := s.store.Put(ctx, locator, blob); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store attachment")
	}

	s.logAudit(ctx, name, locator, len(data))
	return &models.Attachment{Name: name, Locator: locator}, nil
}

// Open returns the blob behind locator.
func (s *Service) Open(ctx context.Context, locator string) (*models.Blob, error) {
	if err := models.ValidateLocator(locator); err != nil {
		return nil, err
	}
	blob, err := s.store.Get(ctx, locator)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "attachment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attachment")
	}
	return blob, nil
}

func (s *Service) logAudit(ctx context.Context, name, locator string, size int) {
	actor := requestcontext.Actor(ctx)
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(audit.EventAttachmentUploaded),
			"actor", actor.Name,
			"file_name", name,
			"locator", locator,
			"size", size,
			"request_id", requestID,
			"event", string(audit.EventAttachmentUploaded),
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(audit.EventAttachmentUploaded),
		Actor:     actor.Name,
		ActorRole: actor.Role,
		Detail:    name + " " + locator,
		RequestID: requestID,
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    requestcontext.Device(ctx),
	})
}
