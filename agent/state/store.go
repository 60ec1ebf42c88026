package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
)

var ErrSnapshotNotFound = errors.New("session snapshot not found")

// Snapshot is the durable projection of a planning session.
type Snapshot struct {
	SessionID string                  `json:"sessionId"`
	Messages  []contractx.ChatMessage `json:"messages,omitempty"`
	Plan      *contractx.EventPlan    `json:"plan,omitempty"`
	Tasks     []contractx.Task        `json:"tasks,omitempty"`
	Updates   []contractx.DocUpdate   `json:"docUpdates,omitempty"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// Store is the snapshot persistence contract used by the Manager.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Delete(ctx context.Context, sessionID string) error
}

/* ------------------------------ memory store ----------------------------- */

type MemoryStore struct {
	mu    sync.Mutex
	snaps map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.snaps[sessionID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal session snapshot: %w", err)
	}
	return &snap, nil
}

func (s *MemoryStore) Save(_ context.Context, snap *Snapshot) error {
	if snap == nil || strings.TrimSpace(snap.SessionID) == "" {
		return ErrInvalidSession
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.SessionID] = raw
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, sessionID)
	return nil
}

/* ----------------------------- postgres store ---------------------------- */

type PostgresConfig struct {
	DSN     string        `envconfig:"DSN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type sessionRow struct {
	bun.BaseModel `bun:"table:planning_sessions"`

	SessionID string    `bun:"session_id,pk"`
	Payload   []byte    `bun:"payload,type:jsonb"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// BunStore persists snapshots as JSONB rows in Postgres.
type BunStore struct {
	db *bun.DB
}

var _ Store = (*BunStore)(nil)

func NewBunStore(cfg PostgresConfig) (*BunStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(cfg.Timeout),
	))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}, nil
}

// EnsureSchema creates the snapshot table when it does not exist yet.
func (s *BunStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*sessionRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create planning_sessions table: %w", err)
	}
	return nil
}

func (s *BunStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	var row sessionRow
	err := s.db.NewSelect().
		Model(&row).
		Where("session_id = ?", sessionID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("select session snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(row.Payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal session snapshot: %w", err)
	}
	return &snap, nil
}

func (s *BunStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil || strings.TrimSpace(snap.SessionID) == "" {
		return ErrInvalidSession
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}

	row := sessionRow{
		SessionID: snap.SessionID,
		Payload:   payload,
		UpdatedAt: snap.UpdatedAt.UTC(),
	}
	_, err = s.db.NewInsert().
		Model(&row).
		On("CONFLICT (session_id) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert session snapshot: %w", err)
	}
	return nil
}

func (s *BunStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.NewDelete().
		Model((*sessionRow)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete session snapshot: %w", err)
	}
	return nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}
