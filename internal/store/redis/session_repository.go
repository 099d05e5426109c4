package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eventsaas/eventsaas/internal/session"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

const sessionPrefix = "session:"

// SessionRepository implements session.Repository. Each session is a JSON
// string whose Redis TTL matches its absolute expiry.
type SessionRepository struct {
	rdb   goredis.Cmdable
	clock clockwork.Clock
}

// NewSessionRepository creates a Redis-backed session store.
func NewSessionRepository(rdb goredis.Cmdable, clock clockwork.Clock) *SessionRepository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionRepository{rdb: rdb, clock: clock}
}

var _ session.Repository = (*SessionRepository)(nil)

func sessionKey(id string) string {
	return sessionPrefix + id
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	ttl := sess.ExpiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		return session.ErrSessionExpired
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	ok, err := r.rdb.SetNX(ctx, sessionKey(sess.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !ok {
		return session.ErrSessionInvalid
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	data, err := r.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, session.ErrSessionInvalid
	}
	return &sess, nil
}

// Update overwrites an existing session and keeps its TTL.
func (r *SessionRepository) Update(ctx context.Context, sess *session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	err = r.rdb.SetArgs(ctx, sessionKey(sess.ID), data, goredis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return session.ErrSessionNotFound
		}
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// Delete deletes a session.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	n, err := r.rdb.Del(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

// TTL reports how long a session has left in Redis.
func (r *SessionRepository) TTL(ctx context.Context, sessionID string) (time.Duration, error) {
	return r.rdb.TTL(ctx, sessionKey(sessionID)).Result()
}
