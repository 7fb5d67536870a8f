package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"disposisi/internal/auth/models"
	"disposisi/pkg/domain"
	dErrors "disposisi/pkg/domain-errors"
	"disposisi/pkg/platform/httputil"
	"disposisi/pkg/requestcontext"
)

const maxLoginBody = 4 << 10

// Service defines the interface for authentication operations.
type Service interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error)
	ListActors(role *domain.Role) []models.ActorSummary
}

// Handler handles login and directory endpoints.
type Handler struct {
	auth   Service
	logger *slog.Logger
}

func New(auth Service, logger *slog.Logger) *Handler {
	return &Handler{auth: auth, logger: logger}
}

// RegisterPublic registers routes that need no token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

// Register registers routes that require an authenticated actor.
func (h *Handler) Register(r chi.Router) {
	r.Get("/directory/actors", h.HandleListActors)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req models.LoginRequest
	if err := httputil.DecodeJSON(r, &req, maxLoginBody); err != nil {
		h.logger.WarnContext(ctx, "invalid login request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	res, err := h.auth.Login(ctx, &req)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "login failed",
				"request_id", requestID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleListActors(w http.ResponseWriter, r *http.Request) {
	var role *domain.Role
	if raw := r.URL.Query().Get("role"); raw != "" {
		parsed, err := domain.ParseRole(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid role filter"))
			return
		}
		role = &parsed
	}

	actors := h.auth.ListActors(role)
	if actors == nil {
		actors = []models.ActorSummary{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"actors": actors})
}
