package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventsaas/eventsaas/internal/observability/logger"
	"github.com/jonboulle/clockwork"
)

// Service manages login sessions
type Service struct {
	repo        Repository
	lifetime    time.Duration
	idleTimeout time.Duration
	clock       clockwork.Clock
}

// NewService creates a new session service
func NewService(repo Repository, lifetime, idleTimeout time.Duration, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		repo:        repo,
		lifetime:    lifetime,
		idleTimeout: idleTimeout,
		clock:       clock,
	}
}

// Lifetime returns the absolute session lifetime.
func (s *Service) Lifetime() time.Duration {
	return s.lifetime
}

// Create starts a session for userID within schema.
func (s *Service) Create(ctx context.Context, schema, userID, ipAddress, userAgent string) (*Session, error) {
	sid, err := newSessionID()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	sess := &Session{
		ID:         sid,
		Schema:     schema,
		UserID:     userID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		ExpiresAt:  now.Add(s.lifetime),
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// Get returns a live session. Expired and idle sessions are deleted and
// reported as ErrSessionExpired.
func (s *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if sess.IsExpired(now) || sess.IsIdle(now, s.idleTimeout) {
		if err := s.repo.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			slog.WarnContext(ctx, "failed to delete stale session", logger.SessionID(sessionID), logger.Error(err))
		}
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// Refresh bumps the last seen time of a session.
func (s *Service) Refresh(ctx context.Context, sessionID string) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.LastSeenAt = s.clock.Now()
	return s.repo.Update(ctx, sess)
}

// Destroy ends a session.
func (s *Service) Destroy(ctx context.Context, sessionID string) error {
	if err := s.repo.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
