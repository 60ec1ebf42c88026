package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrInvalidSession = errors.New("session id is empty")

// Manager owns session lifecycles: one Planning state per live session,
// created on first acquire and torn down on release. When a snapshot store
// is configured, sessions survive process restarts.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Planning
	store    Store
	now      func() time.Time
}

func NewManager(store Store) *Manager {
	return &Manager{
		sessions: make(map[string]*Planning),
		store:    store,
		now:      time.Now,
	}
}

// Acquire returns the live Planning state for the session, creating it (and
// restoring a persisted snapshot, if any) on first use.
func (m *Manager) Acquire(ctx context.Context, sessionID string) (*Planning, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.sessions[sessionID]; ok {
		return p, nil
	}

	p := NewPlanning(sessionID, m.now())
	if m.store != nil {
		snap, err := m.store.Load(ctx, sessionID)
		switch {
		case err == nil:
			p.Restore(snap)
		case errors.Is(err, ErrSnapshotNotFound):
			// fresh session
		default:
			return nil, fmt.Errorf("load session snapshot: %w", err)
		}
	}
	m.sessions[sessionID] = p
	return p, nil
}

// Release persists the session's durable state and tears it down.
func (m *Manager) Release(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}

	m.mu.Lock()
	p, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if !ok || m.store == nil {
		return nil
	}
	if err := m.store.Save(ctx, p.Export()); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to persist session snapshot")
		return err
	}
	return nil
}

// Live reports the number of active sessions.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
