// Package auth provides API key authentication and role-based access
// checks. Keys are random, carry a role, and are validated in constant
// time; roles form a strict hierarchy (admin > developer > user).
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	mcperrors "github.com/lespauI/mcp-ios-agent/pkg/errors"
	"github.com/lespauI/mcp-ios-agent/pkg/logging"
)

// Role is an access level attached to an API key.
type Role string

const (
	RoleUser      Role = "user"
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
)

var roleRank = map[Role]int{
	RoleUser:      1,
	RoleDeveloper: 2,
	RoleAdmin:     3,
}

// Valid reports whether the role is one of the known levels.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Satisfies reports whether the role grants at least the required level.
func (r Role) Satisfies(required Role) bool {
	return roleRank[r] >= roleRank[required]
}

// KeyInfo is the metadata kept for one API key. The key itself is only
// returned at creation time.
type KeyInfo struct {
	Name       string     `json:"name"`
	Role       Role       `json:"role"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt time.Time  `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Revoked    bool       `json:"revoked"`
	Preview    string     `json:"key_preview"`
}

// Service manages API keys in memory.
type Service struct {
	keyPrefix string
	keyBytes  int
	minLength int
	logger    logging.Logger

	mu   sync.RWMutex
	keys map[string]*KeyInfo
}

// Config configures the auth service.
type Config struct {
	// KeyPrefix is prepended to generated keys.
	KeyPrefix string

	// KeyBytes is the random payload length; the hex key is twice this.
	KeyBytes int

	// MinKeyLength rejects presented keys shorter than this before any
	// lookup.
	MinKeyLength int
}

// NewService creates the service. Nil config gets defaults.
func NewService(cfg *Config, logger logging.Logger) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "mcp_"
	}
	if cfg.KeyBytes == 0 {
		cfg.KeyBytes = 32
	}
	if cfg.MinKeyLength == 0 {
		cfg.MinKeyLength = 32
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		keyPrefix: cfg.KeyPrefix,
		keyBytes:  cfg.KeyBytes,
		minLength: cfg.MinKeyLength,
		logger:    logger.WithFields(logging.String("component", "auth")),
		keys:      make(map[string]*KeyInfo),
	}
}

// CreateKey generates and registers a new key, returning it in the
// clear exactly once. A nil expiresAt means the key never expires.
func (s *Service) CreateKey(_ context.Context, name string, role Role, expiresAt *time.Time) (string, *KeyInfo, error) {
	if name == "" {
		return "", nil, mcperrors.InvalidParams("Key name is required", nil)
	}
	if !role.Valid() {
		return "", nil, mcperrors.InvalidParams("Invalid role: "+string(role), nil)
	}

	payload := make([]byte, s.keyBytes)
	if _, err := rand.Read(payload); err != nil {
		return "", nil, mcperrors.Internal(err)
	}
	key := s.keyPrefix + hex.EncodeToString(payload)

	info := &KeyInfo{
		Name:      name,
		Role:      role,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
		Preview:   key[:len(s.keyPrefix)+8] + "...",
	}

	s.mu.Lock()
	s.keys[key] = info
	s.mu.Unlock()

	s.logger.Info("Created API key",
		logging.String("name", name), logging.String("role", string(role)))
	return key, info, nil
}

// Validate checks a presented key and returns its metadata. All
// failure modes return CodeAuthRequired so callers cannot distinguish
// unknown keys from revoked or expired ones.
func (s *Service) Validate(_ context.Context, key string) (*KeyInfo, error) {
	key = strings.TrimSpace(key)
	if len(key) < s.minLength {
		return nil, mcperrors.AuthRequired("Invalid API key")
	}

	s.mu.RLock()
	var match *KeyInfo
	for stored, info := range s.keys {
		if subtle.ConstantTimeCompare([]byte(stored), []byte(key)) == 1 {
			match = info
		}
	}
	s.mu.RUnlock()

	if match == nil || match.Revoked {
		return nil, mcperrors.AuthRequired("Invalid API key")
	}
	if match.ExpiresAt != nil && time.Now().After(*match.ExpiresAt) {
		return nil, mcperrors.AuthRequired("API key has expired")
	}

	s.mu.Lock()
	match.LastUsedAt = time.Now().UTC()
	s.mu.Unlock()
	return match, nil
}

// Authorize checks a presented key against a required role.
func (s *Service) Authorize(ctx context.Context, key string, required Role) (*KeyInfo, error) {
	info, err := s.Validate(ctx, key)
	if err != nil {
		return nil, err
	}
	if !info.Role.Satisfies(required) {
		return nil, mcperrors.Forbidden(string(required))
	}
	return info, nil
}

// Revoke marks a key unusable, reporting whether it existed.
func (s *Service) Revoke(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.keys[key]
	if !ok {
		return false
	}
	info.Revoked = true
	s.logger.Info("Revoked API key", logging.String("name", info.Name))
	return true
}

// List returns metadata for all non-revoked keys.
func (s *Service) List(_ context.Context) []*KeyInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*KeyInfo, 0, len(s.keys))
	for _, info := range s.keys {
		if !info.Revoked {
			out = append(out, info)
		}
	}
	return out
}

// CleanupExpired drops revoked and expired keys from storage.
func (s *Service) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, info := range s.keys {
		if info.Revoked || (info.ExpiresAt != nil && now.After(*info.ExpiresAt)) {
			delete(s.keys, key)
			removed++
		}
	}
	return removed
}
