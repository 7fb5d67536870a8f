package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"disposisi/internal/auth/lockout"
	"disposisi/internal/auth/metrics"
	"disposisi/internal/auth/models"
	"disposisi/internal/auth/secrets"
	"disposisi/pkg/domain"
	dErrors "disposisi/pkg/domain-errors"
	"disposisi/pkg/platform/audit"
	"disposisi/pkg/platform/sentinel"
	"disposisi/pkg/requestcontext"
)

type Directory interface {
	FindByUsername(username string) (*models.User, error)
	ByRole(role domain.Role) []*models.User
}

type TokenIssuer interface {
	GenerateAccessToken(actor domain.Actor, expiresIn time.Duration) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Lockout throttles repeated failures for a username and client IP.
type Lockout interface {
	Check(ctx context.Context, username, ip string) error
	RecordFailure(ctx context.Context, username, ip string) (*lockout.State, error)
	Clear(ctx context.Context, username, ip string) error
}

// dummyHash is compared against when the username is unknown so that both
// failure paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() string {
	h, _ := secrets.Hash("disposisi-unknown-user")
	return h
})

// Service authenticates directory users and issues access tokens.
type Service struct {
	directory      Directory
	tokens         TokenIssuer
	tokenTTL       time.Duration
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	lockout        Lockout
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

func WithLockout(l Lockout) Option {
	return func(s *Service) {
		s.lockout = l
	}
}

func New(directory Directory, tokens TokenIssuer, tokenTTL time.Duration, opts ...Option) *Service {
	s := &Service{directory: directory, tokens: tokens, tokenTTL: tokenTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies credentials and returns a signed access token. Every credential
// failure is reported as the same unauthenticated error; a locked-out caller gets
// rate_limited before the password is checked.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "username and password are required")
	}
	ip := requestcontext.ClientIP(ctx)
	if s.lockout != nil {
		if err := s.lockout.Check(ctx, username, ip); err != nil {
			if dErrors.HasCode(err, dErrors.CodeRateLimited) && s.metrics != nil {
				s.metrics.LoginsLocked.Inc()
			}
			return nil, err
		}
	}

	user, err := s.directory.FindByUsername(username)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	if user == nil || !user.CanLogin() {
		_ = secrets.Verify(req.Password, dummyHash())
		return nil, s.rejectLogin(ctx, username, "unknown user or no credential")
	}
	if err := secrets.Verify(req.Password, user.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthenticated) {
			return nil, s.rejectLogin(ctx, username, "password mismatch")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify credentials")
	}

	actor := user.Actor()
	accessToken, err := s.tokens.GenerateAccessToken(actor, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	if s.lockout != nil {
		if err := s.lockout.Clear(ctx, username, ip); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to clear login lockout", "username", username, "error", err)
		}
	}

	s.logAudit(ctx, audit.EventLoginSucceeded, actor, "")
	if s.metrics != nil {
		s.metrics.LoginsSucceeded.Inc()
	}

	return &models.LoginResult{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenTTL.Seconds()),
		User:        actor,
	}, nil
}

// ListActors returns picker entries, optionally restricted to role.
func (s *Service) ListActors(role *domain.Role) []models.ActorSummary {
	roles := []domain.Role{domain.RoleTU, domain.RoleCoordinator, domain.RoleStaff}
	if role != nil {
		roles = []domain.Role{*role}
	}
	var out []models.ActorSummary
	for _, r := range roles {
		for _, u := range s.directory.ByRole(r) {
			out = append(out, models.ActorSummary{ID: u.ID, Name: u.Name, Role: u.Role})
		}
	}
	return out
}

func (s *Service) rejectLogin(ctx context.Context, username, reason string) error {
	s.logAudit(ctx, audit.EventLoginFailed, domain.Actor{Username: username}, reason)
	if s.metrics != nil {
		s.metrics.LoginsFailed.Inc()
	}
	if s.lockout != nil {
		if _, err := s.lockout.RecordFailure(ctx, username, requestcontext.ClientIP(ctx)); err != nil {
			return err
		}
	}
	return dErrors.New(dErrors.CodeUnauthenticated, "invalid username or password")
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, actor domain.Actor, detail string) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"username", actor.Username,
			"role", actor.Role,
			"detail", detail,
			"request_id", requestID,
			"event", string(event),
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	name := actor.Name
	if name == "" {
		name = actor.Username
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(event),
		Actor:     name,
		ActorRole: actor.Role,
		Detail:    detail,
		RequestID: requestID,
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    requestcontext.Device(ctx),
	})
}
