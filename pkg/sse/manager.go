// Package sse implements server-sent event fan-out. Each connected
// client owns a bounded channel; sends to a full channel drop the
// event rather than block the publisher.
package sse

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/lespauI/mcp-ios-agent/pkg/logging"
)

// Event is one server-sent event. A zero ID suppresses the id: line.
type Event struct {
	ID    string      `json:"id,omitempty"`
	Type  string      `json:"event"`
	Data  interface{} `json:"data"`
	Retry int         `json:"-"`
}

// Manager tracks connected clients and routes events to them.
type Manager struct {
	queueSize int
	logger    logging.Logger

	mu      sync.RWMutex
	clients map[string]chan Event
	gauge   func(int)
}

// NewManager creates a manager whose per-client queues hold queueSize
// pending events.
func NewManager(queueSize int, logger logging.Logger) *Manager {
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		queueSize: queueSize,
		logger:    logger.WithFields(logging.String("component", "sse")),
		clients:   make(map[string]chan Event),
	}
}

// Register adds a client and returns its ID and event channel. An empty
// clientID gets a generated one; re-registering an ID replaces the old
// channel.
func (m *Manager) Register(clientID string) (string, <-chan Event) {
	if clientID == "" {
		clientID = uuid.NewString()
	}
	ch := make(chan Event, m.queueSize)

	m.mu.Lock()
	if old, ok := m.clients[clientID]; ok {
		close(old)
	}
	m.clients[clientID] = ch
	n, gauge := len(m.clients), m.gauge
	m.mu.Unlock()

	if gauge != nil {
		gauge(n)
	}
	m.logger.Info("SSE client connected", logging.String("client_id", clientID))
	return clientID, ch
}

// SetClientGauge installs a callback invoked with the client count
// after every connect and disconnect.
func (m *Manager) SetClientGauge(fn func(int)) {
	m.mu.Lock()
	m.gauge = fn
	m.mu.Unlock()
}

// Unregister removes a client and closes its channel.
func (m *Manager) Unregister(clientID string) {
	m.mu.Lock()
	ch, ok := m.clients[clientID]
	if ok {
		delete(m.clients, clientID)
		close(ch)
	}
	n, gauge := len(m.clients), m.gauge
	m.mu.Unlock()

	if ok {
		if gauge != nil {
			gauge(n)
		}
		m.logger.Info("SSE client disconnected", logging.String("client_id", clientID))
	}
}

// Send delivers an event to one client. It reports false when the
// client is unknown or its queue is full. The read lock is held across
// the send itself: channels close only inside the write-lock critical
// sections, so a send can never race a close. The send never blocks,
// so the lock is held only briefly.
func (m *Manager) Send(clientID string, event Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ch, ok := m.clients[clientID]
	if !ok {
		return false
	}
	select {
	case ch <- event:
		return true
	default:
		m.logger.Warn("Dropping SSE event, client queue full",
			logging.String("client_id", clientID), logging.String("event", event.Type))
		return false
	}
}

// Broadcast delivers an event to every client and returns how many
// queues accepted it.
func (m *Manager) Broadcast(event Event) int {
	m.mu.RLock()
	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	delivered := 0
	for _, id := range ids {
		if m.Send(id, event) {
			delivered++
		}
	}
	return delivered
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Close disconnects every client.
func (m *Manager) Close() error {
	m.mu.Lock()
	for id, ch := range m.clients {
		close(ch)
		delete(m.clients, id)
	}
	gauge := m.gauge
	m.mu.Unlock()

	if gauge != nil {
		gauge(0)
	}
	return nil
}

// Format renders the event in wire format, including the trailing blank
// line that terminates it.
func (e Event) Format() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event data: %w", err)
	}

	var b []byte
	if e.Retry > 0 {
		b = append(b, fmt.Sprintf("retry: %d\n", e.Retry)...)
	}
	if e.ID != "" {
		b = append(b, fmt.Sprintf("id: %s\n", e.ID)...)
	}
	if e.Type != "" {
		b = append(b, fmt.Sprintf("event: %s\n", e.Type)...)
	}
	b = append(b, "data: "...)
	b = append(b, data...)
	b = append(b, "\n\n"...)
	return b, nil
}
