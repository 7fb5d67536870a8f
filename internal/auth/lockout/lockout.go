// Package lockout throttles repeated failed logins per username and client IP.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	dErrors "disposisi/pkg/domain-errors"
	"disposisi/pkg/platform/audit"
	"disposisi/pkg/requestcontext"
)

// State is the failure counter for one username and IP pair.
type State struct {
	Key          string
	FailureCount int
	WindowStart  time.Time
	LockedUntil  *time.Time
}

// IsLockedAt reports whether the pair is hard-locked at now.
func (s *State) IsLockedAt(now time.Time) bool {
	return s != nil && s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// Store persists lockout state. Implementations only do I/O; thresholds live in Service.
type Store interface {
	Get(ctx context.Context, key string) (*State, error)
	// RecordFailure increments the counter, restarting it when the window has elapsed.
	RecordFailure(ctx context.Context, key string, now time.Time, window time.Duration) (*State, error)
	Lock(ctx context.Context, key string, now, until time.Time) error
	Clear(ctx context.Context, key string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config holds the lockout thresholds.
type Config struct {
	AttemptsPerWindow int
	Window            time.Duration
	LockDuration      time.Duration
}

// DefaultConfig allows five failures per fifteen minutes before a fifteen minute lock.
func DefaultConfig() Config {
	return Config{
		AttemptsPerWindow: 5,
		Window:            15 * time.Minute,
		LockDuration:      15 * time.Minute,
	}
}

type Service struct {
	store          Store
	config         Config
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

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lockout store is required")
	}
	s := &Service{store: store, config: DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.AttemptsPerWindow <= 0 {
		return nil, fmt.Errorf("lockout attempts per window must be positive, got %d", s.config.AttemptsPerWindow)
	}
	return s, nil
}

// Key builds the store key for a username and client IP.
func Key(username, ip string) string {
	return strings.ToLower(strings.TrimSpace(username)) + "|" + ip
}

// Check returns a rate-limited error while the pair is locked.
func (s *Service) Check(ctx context.Context, username, ip string) error {
	state, err := s.store.Get(ctx, Key(username, ip))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lockout state")
	}
	now := requestcontext.Now(ctx)
	if !state.IsLockedAt(now) {
		return nil
	}
	retryAfter := int(math.Ceil(state.LockedUntil.Sub(now).Seconds()))
	return dErrors.New(dErrors.CodeRateLimited,
		fmt.Sprintf("too many failed logins, retry in %d seconds", retryAfter))
}

// RecordFailure counts a failed login and locks the pair once the window limit is reached.
func (s *Service) RecordFailure(ctx context.Context, username, ip string) (*State, error) {
	now := requestcontext.Now(ctx)
	state, err := s.store.RecordFailure(ctx, Key(username, ip), now, s.config.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login failure")
	}
	if state.FailureCount < s.config.AttemptsPerWindow || state.IsLockedAt(now) {
		return state, nil
	}

	until := now.Add(s.config.LockDuration)
	if err := s.store.Lock(ctx, state.Key, now, until); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock login")
	}
	state.LockedUntil = &until
	s.logAudit(ctx, audit.EventLoginLocked, username, ip,
		"locked until "+until.UTC().Format(time.RFC3339))
	return state, nil
}

// Clear resets the pair after a successful login.
func (s *Service) Clear(ctx context.Context, username, ip string) error {
	if err := s.store.Clear(ctx, Key(username, ip)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear login failures")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, username, ip, detail string) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"username", username,
			"ip", ip,
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
		Action:    string(event),
		Actor:     username,
		Detail:    detail,
		RequestID: requestID,
		ClientIP:  ip,
		Device:    requestcontext.Device(ctx),
	})
}
