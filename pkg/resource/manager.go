// Package resource implements content-addressed binary storage with
// metadata and TTL-based expiry. Resources are identified by URIs of
// the form resource://<type>/<sha256><ext>; content with the same
// bytes and type always maps to the same URI.
package resource

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	mcperrors "github.com/lespauI/mcp-ios-agent/pkg/errors"
	"github.com/lespauI/mcp-ios-agent/pkg/logging"
)

const uriScheme = "resource://"

// ErrQuotaExceeded is returned when content exceeds the size limit.
type ErrQuotaExceeded struct {
	Size int64
	Max  int64
}

func (e *ErrQuotaExceeded) Error() string {
	return fmt.Sprintf("resource size (%d bytes) exceeds maximum allowed (%d bytes)", e.Size, e.Max)
}

// ErrInvalidURI is returned for URIs that do not parse.
type ErrInvalidURI struct {
	URI string
}

func (e *ErrInvalidURI) Error() string {
	return fmt.Sprintf("invalid resource URI format: %s", e.URI)
}

// URIParts are the components of a parsed resource URI.
type URIParts struct {
	ResourceType string
	ResourceID   string
	Extension    string
}

// Metadata describes one stored resource.
type Metadata struct {
	URI          string                 `json:"uri"`
	ResourceType string                 `json:"resource_type"`
	Size         int64                  `json:"size"`
	ContentHash  string                 `json:"content_hash"`
	CreatedAt    time.Time              `json:"created_at"`
	ExpiresAt    *time.Time             `json:"expires_at,omitempty"`
	Extra        map[string]interface{} `json:"metadata,omitempty"`
}

// Manager stores resource content on disk and metadata in memory.
// Metadata is process-lifetime only, like the registry's definitions.
type Manager struct {
	storagePath string
	maxSize     int64
	logger      logging.Logger

	mu       sync.RWMutex
	metadata map[string]*Metadata

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a manager rooted at storagePath. The temp and
// permanent subtrees are created up front.
func NewManager(storagePath string, maxSize int64, logger logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	for _, dir := range []string{storagePath, filepath.Join(storagePath, "temp"), filepath.Join(storagePath, "permanent")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
		}
	}
	return &Manager{
		storagePath: storagePath,
		maxSize:     maxSize,
		logger:      logger.WithFields(logging.String("component", "resource")),
		metadata:    make(map[string]*Metadata),
		stop:        make(chan struct{}),
	}, nil
}

// ParseURI splits a resource URI into its components.
func ParseURI(uri string) (*URIParts, error) {
	if !strings.HasPrefix(uri, uriScheme) {
		return nil, &ErrInvalidURI{URI: uri}
	}
	path := strings.TrimPrefix(uri, uriScheme)
	resourceType, rest, ok := strings.Cut(path, "/")
	if !ok || resourceType == "" || rest == "" {
		return nil, &ErrInvalidURI{URI: uri}
	}

	id, ext := rest, ""
	if dot := strings.LastIndex(rest, "."); dot > 0 {
		id, ext = rest[:dot], rest[dot:]
	}
	return &URIParts{ResourceType: resourceType, ResourceID: id, Extension: ext}, nil
}

// Store writes content and returns its URI. A positive ttl places the
// resource in the temp tree and schedules it for expiry; otherwise it
// is permanent. Storing the same content twice is idempotent.
func (m *Manager) Store(_ context.Context, content []byte, resourceType, extension string, extra map[string]interface{}, ttl time.Duration) (string, error) {
	if resourceType == "" {
		return "", &ErrInvalidURI{URI: uriScheme + "/" + extension}
	}
	if int64(len(content)) > m.maxSize {
		return "", &ErrQuotaExceeded{Size: int64(len(content)), Max: m.maxSize}
	}
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	uri := fmt.Sprintf("%s%s/%s%s", uriScheme, resourceType, hash, extension)

	path, err := m.filePath(uri, ttl > 0)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create resource dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write resource: %w", err)
	}

	meta := &Metadata{
		URI:          uri,
		ResourceType: resourceType,
		Size:         int64(len(content)),
		ContentHash:  hash,
		CreatedAt:    time.Now().UTC(),
		Extra:        extra,
	}
	if ttl > 0 {
		expires := time.Now().UTC().Add(ttl)
		meta.ExpiresAt = &expires
	}

	m.mu.Lock()
	m.metadata[uri] = meta
	m.mu.Unlock()

	m.logger.Info("Stored resource",
		logging.String("uri", uri), logging.Any("size", meta.Size))
	return uri, nil
}

// Get returns the content and metadata for a URI.
func (m *Manager) Get(_ context.Context, uri string) ([]byte, *Metadata, error) {
	meta, err := m.lookup(uri)
	if err != nil {
		return nil, nil, err
	}

	path, err := m.filePath(uri, meta.ExpiresAt != nil)
	if err != nil {
		return nil, nil, err
	}
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil, mcperrors.ResourceNotFound(uri)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read resource %s: %w", uri, err)
	}
	return content, meta, nil
}

// GetMetadata returns metadata only.
func (m *Manager) GetMetadata(_ context.Context, uri string) (*Metadata, error) {
	return m.lookup(uri)
}

// Delete removes a resource, reporting whether it existed.
func (m *Manager) Delete(_ context.Context, uri string) (bool, error) {
	m.mu.Lock()
	meta, ok := m.metadata[uri]
	delete(m.metadata, uri)
	m.mu.Unlock()

	if !ok {
		return false, nil
	}

	path, err := m.filePath(uri, meta.ExpiresAt != nil)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to remove resource %s: %w", uri, err)
	}
	m.logger.Info("Deleted resource", logging.String("uri", uri))
	return true, nil
}

// List returns metadata for all live resources, optionally filtered by
// resource type.
func (m *Manager) List(resourceType string) []*Metadata {
	now := time.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Metadata, 0, len(m.metadata))
	for _, meta := range m.metadata {
		if meta.expired(now) {
			continue
		}
		if resourceType != "" && meta.ResourceType != resourceType {
			continue
		}
		out = append(out, meta)
	}
	return out
}

// Sweep removes expired resources and returns how many were deleted.
func (m *Manager) Sweep() int {
	now := time.Now()

	m.mu.Lock()
	var expired []*Metadata
	for uri, meta := range m.metadata {
		if meta.expired(now) {
			expired = append(expired, meta)
			delete(m.metadata, uri)
		}
	}
	m.mu.Unlock()

	for _, meta := range expired {
		if path, err := m.filePath(meta.URI, true); err == nil {
			_ = os.Remove(path)
		}
	}
	if len(expired) > 0 {
		m.logger.Info("Swept expired resources", logging.Int("count", len(expired)))
	}
	return len(expired)
}

// StartCleanup runs Sweep every interval until Close.
func (m *Manager) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// Close stops the cleanup loop.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

// ContentTypeFor picks a content type from the URI components.
func ContentTypeFor(parts *URIParts) string {
	if parts.ResourceType == "screenshot" {
		return "image/png"
	}
	switch parts.Extension {
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	case ".png":
		return "image/png"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

func (m *Manager) lookup(uri string) (*Metadata, error) {
	if _, err := ParseURI(uri); err != nil {
		return nil, err
	}

	m.mu.RLock()
	meta, ok := m.metadata[uri]
	m.mu.RUnlock()

	if !ok || meta.expired(time.Now()) {
		return nil, mcperrors.ResourceNotFound(uri)
	}
	return meta, nil
}

func (m *Manager) filePath(uri string, temp bool) (string, error) {
	parts, err := ParseURI(uri)
	if err != nil {
		return "", err
	}
	base := "permanent"
	if temp {
		base = "temp"
	}
	return filepath.Join(m.storagePath, base, parts.ResourceType, parts.ResourceID+parts.Extension), nil
}

func (meta *Metadata) expired(now time.Time) bool {
	return meta.ExpiresAt != nil && now.After(*meta.ExpiresAt)
}
