package handler

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"disposisi/internal/attachment/models"
	dErrors "disposisi/pkg/domain-errors"
	"disposisi/pkg/platform/httputil"
	"disposisi/pkg/requestcontext"
)

// Service defines the interface for attachment operations.
type Service interface {
	Upload(ctx context.Context, name string, r io.Reader) (*models.Attachment, error)
	Open(ctx context.Context, locator string) (*models.Blob, error)
}

type Handler struct {
	attachments Service
	maxBytes    int64
	logger      *slog.Logger
}

func New(attachments Service, maxBytes int64, logger *slog.Logger) *Handler {
	return &Handler{attachments: attachments, maxBytes: maxBytes, logger: logger}
}

// RegisterUpload registers the upload route; callers gate it by role.
func (h *Handler) RegisterUpload(r chi.Router) {
	r.Post("/attachments", h.HandleUpload)
}

// Register registers download routes for any authenticated actor.
func (h *Handler) Register(r chi.Router) {
	r.Get("/attachments/{locator}", h.HandleDownload)
}

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	// Multipart framing needs headroom over the file limit itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		h.logger.WarnContext(ctx, "invalid attachment upload",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	att, err := h.attachments.Upload(ctx, header.Filename, file)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, att)
}

func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	blob, err := h.attachments.Open(r.Context(), chi.URLParam(r, "locator"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": blob.Name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}
