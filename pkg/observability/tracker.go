package observability

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation is one tracked unit of work, typically a tool execution or
// method dispatch.
type Operation struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	StartedAt time.Time              `json:"started_at"`
	EndedAt   *time.Time             `json:"ended_at,omitempty"`
	Duration  float64                `json:"duration_ms,omitempty"`
	Success   *bool                  `json:"success,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Tracker records operations with explicit start/stop handles and keeps
// a bounded history of completed ones, oldest evicted first.
type Tracker struct {
	historySize int

	mu      sync.Mutex
	active  map[string]*Operation
	history []*Operation
}

// NewTracker keeps at most historySize completed operations.
func NewTracker(historySize int) *Tracker {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Tracker{
		historySize: historySize,
		active:      make(map[string]*Operation),
	}
}

// Start begins tracking and returns the operation ID for Stop.
func (t *Tracker) Start(name string, metadata map[string]interface{}) string {
	op := &Operation{
		ID:        uuid.NewString(),
		Name:      name,
		StartedAt: time.Now().UTC(),
		Metadata:  metadata,
	}

	t.mu.Lock()
	t.active[op.ID] = op
	t.mu.Unlock()
	return op.ID
}

// Stop completes the operation. Unknown IDs are ignored, so a double
// Stop is harmless.
func (t *Tracker) Stop(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.active[id]
	if !ok {
		return
	}
	delete(t.active, id)

	now := time.Now().UTC()
	op.EndedAt = &now
	op.Duration = float64(now.Sub(op.StartedAt).Microseconds()) / 1000
	success := err == nil
	op.Success = &success
	if err != nil {
		op.Error = err.Error()
	}

	t.history = append(t.history, op)
	if len(t.history) > t.historySize {
		t.history = t.history[len(t.history)-t.historySize:]
	}
}

// Active returns operations still in flight.
func (t *Tracker) Active() []*Operation {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Operation, 0, len(t.active))
	for _, op := range t.active {
		out = append(out, op)
	}
	return out
}

// History returns the most recent completed operations, newest last.
// A non-positive limit returns everything retained.
func (t *Tracker) History(limit int) []*Operation {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Operation, n)
	copy(out, t.history[len(t.history)-n:])
	return out
}

// Stats summarizes completed operations by name.
type Stats struct {
	Count      int     `json:"count"`
	Failures   int     `json:"failures"`
	TotalMs    float64 `json:"total_ms"`
	AverageMs  float64 `json:"average_ms"`
	MaxMs      float64 `json:"max_ms"`
}

// Summary aggregates the retained history per operation name.
func (t *Tracker) Summary() map[string]*Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]*Stats)
	for _, op := range t.history {
		s, ok := out[op.Name]
		if !ok {
			s = &Stats{}
			out[op.Name] = s
		}
		s.Count++
		if op.Success != nil && !*op.Success {
			s.Failures++
		}
		s.TotalMs += op.Duration
		if op.Duration > s.MaxMs {
			s.MaxMs = op.Duration
		}
	}
	for _, s := range out {
		if s.Count > 0 {
			s.AverageMs = s.TotalMs / float64(s.Count)
		}
	}
	return out
}
