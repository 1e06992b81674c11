package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lespauI/mcp-ios-agent/pkg/logging"
)

// Manager implements session lifecycle on top of a Store: creation
// with TTL, context/metadata updates, heartbeats, and lookup helpers.
type Manager struct {
	store  Store
	ttl    time.Duration
	logger logging.Logger
}

// NewManager creates a manager using defaultTTL for sessions created
// without an explicit TTL.
func NewManager(store Store, defaultTTL time.Duration, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:  store,
		ttl:    defaultTTL,
		logger: logger.WithFields(logging.String("component", "session")),
	}
}

// Create stores a new session and returns its ID. A zero ttl uses the
// manager default; a negative ttl disables expiry.
func (m *Manager) Create(ctx context.Context, metadata map[string]interface{}, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = m.ttl
	}
	if ttl < 0 {
		ttl = 0
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	session := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
		Context:   map[string]interface{}{},
	}
	if err := m.store.Set(ctx, session, ttl); err != nil {
		return "", err
	}

	m.logger.Info("Created session",
		logging.String("session_id", session.ID), logging.Duration("ttl", ttl))
	return session.ID, nil
}

// Get returns a session by ID.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.store.Get(ctx, id)
}

// Update merges context and metadata patches into the session and, when
// extendTTL is set, restarts its TTL.
func (m *Manager) Update(ctx context.Context, id string, contextPatch, metadataPatch map[string]interface{}, extendTTL bool) error {
	session, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if session.Context == nil {
		session.Context = map[string]interface{}{}
	}
	for k, v := range contextPatch {
		session.Context[k] = v
	}
	if session.Metadata == nil {
		session.Metadata = map[string]interface{}{}
	}
	for k, v := range metadataPatch {
		session.Metadata[k] = v
	}
	session.LastAccessed = time.Now().UTC()

	ttl := time.Duration(0)
	if extendTTL {
		ttl = m.ttl
	}
	return m.store.Set(ctx, session, ttl)
}

// Delete removes a session, reporting whether it existed.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := m.store.Get(ctx, id); err == ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return false, err
	}
	m.logger.Info("Deleted session", logging.String("session_id", id))
	return true, nil
}

// Heartbeat extends the session TTL without touching its data.
func (m *Manager) Heartbeat(ctx context.Context, id string) (bool, error) {
	return m.store.Touch(ctx, id, m.ttl)
}

// List returns all live session IDs.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// GetContext returns the session's whole context map, or one key of it.
func (m *Manager) GetContext(ctx context.Context, id, key string) (interface{}, error) {
	session, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return session.Context, nil
	}
	return session.Context[key], nil
}

// SetContext sets one context key on the session.
func (m *Manager) SetContext(ctx context.Context, id, key string, value interface{}) error {
	return m.Update(ctx, id, map[string]interface{}{key: value}, nil, true)
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}
