package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"disposisi/internal/workflow/models"
	"disposisi/pkg/domain"
	dErrors "disposisi/pkg/domain-errors"
	"disposisi/pkg/platform/httputil"
	"disposisi/pkg/requestcontext"
)

const maxRecordBody = 64 << 10

// Service defines the interface for workflow operations.
type Service interface {
	CreateRecord(ctx context.Context, actor domain.Actor, req *models.CreateRecordRequest) (*models.Record, error)
	GetRecord(ctx context.Context, recordID domain.RecordID) (*models.Record, error)
	ListVisible(ctx context.Context, actor domain.Actor, statuses ...models.Status) ([]*models.Record, error)
	UpdateFields(ctx context.Context, actor domain.Actor, recordID domain.RecordID, req *models.UpdateFieldsRequest) (*models.Record, error)
	DeleteRecord(ctx context.Context, actor domain.Actor, recordID domain.RecordID) error
	ApplyTransition(ctx context.Context, actor domain.Actor, recordID domain.RecordID, req *models.TransitionRequest) (*models.Record, error)
	AllowedActions(rec *models.Record, actor domain.Actor) []models.Action
	Search(ctx context.Context, query string) (*models.Record, error)
}

// Handler handles record endpoints and the public lookup.
type Handler struct {
	workflow     Service
	logger       *slog.Logger
	redactPublic bool
}

// New creates a workflow Handler. With redactPublic the public lookup omits
// notes, assignee names and attachment locators.
func New(workflow Service, logger *slog.Logger, redactPublic bool) *Handler {
	return &Handler{workflow: workflow, logger: logger, redactPublic: redactPublic}
}

// RegisterTU registers the intake routes; callers gate them to the TU role.
func (h *Handler) RegisterTU(r chi.Router) {
	r.Post("/records", h.HandleCreate)
	r.Patch("/records/{id}", h.HandleUpdate)
	r.Delete("/records/{id}", h.HandleDelete)
}

// Register registers routes for any authenticated actor.
func (h *Handler) Register(r chi.Router) {
	r.Get("/records", h.HandleList)
	r.Get("/records/{id}", h.HandleGet)
	r.Post("/records/{id}/transitions", h.HandleTransition)
}

// RegisterPublic registers routes that need no token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/public/records", h.HandlePublicLookup)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	var req models.CreateRecordRequest
	if err := httputil.DecodeJSON(r, &req, maxRecordBody); err != nil {
		h.warn(ctx, "invalid create record request", err)
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.workflow.CreateRecord(ctx, actor, &req)
	if err != nil {
		h.writeError(ctx, w, "create record failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, h.toRecordResponse(rec, actor))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	statuses, err := parseStatuses(r.URL.Query()["status"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.workflow.ListVisible(ctx, actor, statuses...)
	if err != nil {
		h.writeError(ctx, w, "list records failed", err)
		return
	}
	out := make([]*RecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, h.toRecordResponse(rec, actor))
	}
	httputil.WriteJSON(w, http.StatusOK, &ListResponse{Records: out, Count: len(out)})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := domain.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.workflow.GetRecord(ctx, recordID)
	if err != nil {
		h.writeError(ctx, w, "get record failed", err)
		return
	}
	actor := requestcontext.Actor(ctx)
	// Records outside the caller's dashboard read as missing.
	if !models.Match(rec, models.VisibleTo(actor)) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "record not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.toRecordResponse(rec, actor))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	recordID, err := domain.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req models.UpdateFieldsRequest
	if err := httputil.DecodeJSON(r, &req, maxRecordBody); err != nil {
		h.warn(ctx, "invalid update record request", err)
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.workflow.UpdateFields(ctx, actor, recordID, &req)
	if err != nil {
		h.writeError(ctx, w, "update record failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.toRecordResponse(rec, actor))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := domain.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.workflow.DeleteRecord(ctx, requestcontext.Actor(ctx), recordID); err != nil {
		h.writeError(ctx, w, "delete record failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	recordID, err := domain.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req models.TransitionRequest
	if err := httputil.DecodeJSON(r, &req, maxRecordBody); err != nil {
		h.warn(ctx, "invalid transition request", err)
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.workflow.ApplyTransition(ctx, actor, recordID, &req)
	if err != nil {
		h.writeError(ctx, w, "transition failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.toRecordResponse(rec, actor))
}

// HandlePublicLookup serves the anonymous tracking page.
func (h *Handler) HandlePublicLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := strings.TrimSpace(r.URL.Query().Get("letter_number"))

	rec, err := h.workflow.Search(ctx, query)
	if err != nil {
		h.writeError(ctx, w, "public lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPublicResponse(rec, h.redactPublic))
}

func parseStatuses(raw []string) ([]models.Status, error) {
	var out []models.Status
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			st := models.Status(part)
			if !st.IsValid() {
				return nil, dErrors.New(dErrors.CodeBadRequest, "unknown status: "+part)
			}
			out = append(out, st)
		}
	}
	return out, nil
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

func (h *Handler) warn(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
