package chatbot

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/providata-intake/internal/domain"
	"github.com/ashureev/providata-intake/internal/store"
)

// Sessions applies the session lifecycle policy on top of a SessionStore.
type Sessions struct {
	store   store.SessionStore
	timeout time.Duration
	now     func() time.Time
}

// NewSessions returns a lifecycle manager expiring sessions idle for longer than timeout.
func NewSessions(s store.SessionStore, timeout time.Duration, now func() time.Time) *Sessions {
	if now == nil {
		now = time.Now
	}
	return &Sessions{store: s, timeout: timeout, now: now}
}

// GetOrCreate returns the identity's session, or a fresh one when none exists
// or the stored one has expired. expired reports the latter case.
func (s *Sessions) GetOrCreate(ctx context.Context, identity string) (session *domain.Session, expired bool, err error) {
	stored, err := s.store.GetSession(ctx, identity)
	if err != nil {
		return nil, false, fmt.Errorf("get session: %w", err)
	}
	now := s.now()
	if stored == nil {
		return domain.NewSession(identity, now), false, nil
	}
	if stored.Expired(now, s.timeout) {
		fresh := domain.NewSession(identity, now)
		// Keep the stored version so the next save replaces the expired row.
		fresh.Version = stored.Version
		return fresh, true, nil
	}
	return stored, false, nil
}

// Save persists next and refreshes its last activity time.
func (s *Sessions) Save(ctx context.Context, next *domain.Session) error {
	next.LastActivityAt = s.now()
	if err := s.store.SaveSession(ctx, next); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Reset overwrites the identity's session with a fresh one.
func (s *Sessions) Reset(ctx context.Context, identity string) (*domain.Session, error) {
	fresh := domain.NewSession(identity, s.now())
	if err := s.store.ResetSession(ctx, fresh); err != nil {
		return nil, fmt.Errorf("reset session: %w", err)
	}
	return fresh, nil
}
