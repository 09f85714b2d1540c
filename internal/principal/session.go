package principal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"casedesk/pkg/platform/sentinel"
)

// Session marks a user as logged in until ExpiresAt.
type Session struct {
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Active reports whether the session is still valid at now.
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.ExpiresAt.After(now)
}

// SessionStore looks up the active session of a user. Find returns
// sentinel.ErrNotFound when the user has none.
type SessionStore interface {
	Find(ctx context.Context, username string) (*Session, error)
	Save(ctx context.Context, session Session) error
}

const sessionKeyPrefix = "session:"

func sessionKey(username string) string {
	return sessionKeyPrefix + username
}

// RedisSessionStore keeps sessions as JSON under session:<username>, expiring
// with the session itself.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Find(ctx context.Context, username string) (*Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load session %s: %w", username, err)
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", username, err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, session Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.Username, err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return s.client.Del(ctx, sessionKey(session.Username)).Err()
	}
	if err := s.client.Set(ctx, sessionKey(session.Username), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", session.Username, err)
	}
	return nil
}

// InMemorySessionStore is a SessionStore for tests and single-process runs.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]Session)}
}

func (s *InMemorySessionStore) Find(_ context.Context, username string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[username]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &session, nil
}

func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Username] = session
	return nil
}
