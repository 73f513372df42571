// Package session persists workbench sessions.
//
// A session is one composition in progress: the surface snapshot, the
// assets the user selected and the reference layout in use. Sessions let
// the HTTP server survive restarts and let the CLI editor resume work.
//
// Three stores implement [Store]:
//   - [MemoryStore]: in-process, for tests and single-run commands
//   - [RedisStore]: shared by several server instances
//   - [FileStore]: JSON files under ~/.config/chartgalaxy/sessions
//
// Stores return (nil, nil) for a missing or expired session.
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/yczddgj/chartgalaxy/pkg/layout"
)

// DefaultTTL is how long an untouched session is kept.
const DefaultTTL = 7 * 24 * time.Hour

// Selection is the set of assets a composition is built from.
type Selection struct {
	DataFile   string   `json:"data_file,omitempty"`
	Reference  string   `json:"reference,omitempty"`
	ChartType  string   `json:"chart_type,omitempty"`
	Title      string   `json:"title,omitempty"`
	Pictogram  string   `json:"pictogram,omitempty"`
	Chart      string   `json:"chart_source,omitempty"`
	TitleSrc   string   `json:"title_source,omitempty"`
	Pictograms []string `json:"pictogram_sources,omitempty"`
}

// Session is a persisted composition.
type Session struct {
	ID         string             `json:"id"`
	Name       string             `json:"name,omitempty"`
	Selection  Selection          `json:"selection"`
	Layout     *layout.Descriptor `json:"layout,omitempty"`
	Background string             `json:"background,omitempty"`
	Snapshot   json.RawMessage    `json:"snapshot,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
}

// New returns an empty session with a fresh ID.
func New(name string, ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired reports whether the session has passed its expiry.
func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Touch marks the session as updated and extends its expiry by ttl.
func (s *Session) Touch(ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.UpdatedAt = time.Now()
	s.ExpiresAt = s.UpdatedAt.Add(ttl)
}

// Store is the interface for session storage backends.
type Store interface {
	// Get retrieves a session by ID. It returns nil, nil if the session
	// doesn't exist or has expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Set stores a session.
	Set(ctx context.Context, s *Session) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// List returns all live sessions, most recently updated first.
	List(ctx context.Context) ([]*Session, error)

	// Cleanup removes expired sessions (may be a no-op where the backend
	// expires keys itself).
	Cleanup(ctx context.Context) error

	Close() error
}
