// Package session provides TTL-bound session storage for request
// context shared across tool invocations. The storage contract is a
// simple get/set/delete/list interface with an in-memory default and
// an optional Redis backend.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Session is one stored session.
type Session struct {
	ID           string                 `json:"id"`
	CreatedAt    time.Time              `json:"created_at"`
	LastAccessed time.Time              `json:"last_accessed,omitempty"`
	Metadata     map[string]interface{} `json:"metadata"`
	Context      map[string]interface{} `json:"context"`
}

// Store is the session storage contract. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the session, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Set stores the session with the given TTL. A zero TTL means no
	// expiry.
	Set(ctx context.Context, session *Session, ttl time.Duration) error

	// Delete removes the session. Deleting a missing session is not an
	// error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all live sessions.
	List(ctx context.Context) ([]string, error)

	// Touch extends the session's TTL without modifying its data and
	// reports whether the session existed.
	Touch(ctx context.Context, id string, ttl time.Duration) (bool, error)

	// Close releases backend resources.
	Close() error
}
