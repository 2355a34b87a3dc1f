package store

import (
	"context"
	"fmt"
	"log/slog"
)

const sessionKey = "tlc_sid"

// SessionStore persists the active conversation's sid. Load never fails: a
// broken backing store reads as "no session".
type SessionStore struct {
	kv     KV
	logger *slog.Logger
}

func NewSessionStore(kv KV, logger *slog.Logger) *SessionStore {
	return &SessionStore{kv: kv, logger: logger}
}

func (s *SessionStore) Load(ctx context.Context) string {
	sid, ok, err := s.kv.Get(ctx, sessionKey)
	if err != nil {
		s.logger.Warn("load session id failed", "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return sid
}

func (s *SessionStore) Save(ctx context.Context, sid string) error {
	if err := s.kv.Set(ctx, sessionKey, sid); err != nil {
		return fmt.Errorf("save session id failed: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, sessionKey); err != nil {
		return fmt.Errorf("clear session id failed: %w", err)
	}
	return nil
}
