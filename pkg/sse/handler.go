package sse

import (
	"net/http"
	"time"

	"github.com/lespauI/mcp-ios-agent/pkg/logging"
)

// Handler streams a client's events over HTTP. It registers the client
// on connect, replays a connected event so the client learns its ID,
// and unregisters on disconnect.
type Handler struct {
	manager       *Manager
	retryTimeout  int
	pingInterval  time.Duration
	logger        logging.Logger
	clientIDParam func(*http.Request) string
}

// NewHandler creates an SSE handler. retryTimeout is the reconnect
// delay advertised to clients, in milliseconds. clientID extracts the
// requested client ID from the request; empty means generate one.
func NewHandler(manager *Manager, retryTimeout int, logger logging.Logger, clientID func(*http.Request) string) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		manager:       manager,
		retryTimeout:  retryTimeout,
		pingInterval:  15 * time.Second,
		logger:        logger.WithFields(logging.String("component", "sse")),
		clientIDParam: clientID,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	requested := ""
	if h.clientIDParam != nil {
		requested = h.clientIDParam(r)
	}
	clientID, events := h.manager.Register(requested)
	defer h.manager.Unregister(clientID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	connected := Event{
		Type:  "connected",
		Data:  map[string]interface{}{"client_id": clientID},
		Retry: h.retryTimeout,
	}
	if !h.write(w, flusher, connected) {
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			if !h.write(w, flusher, event) {
				return
			}
		case <-ticker.C:
			ping := Event{Type: "ping", Data: map[string]interface{}{"time": time.Now().UTC().Format(time.RFC3339)}}
			if !h.write(w, flusher, ping) {
				return
			}
		}
	}
}

func (h *Handler) write(w http.ResponseWriter, flusher http.Flusher, event Event) bool {
	payload, err := event.Format()
	if err != nil {
		h.logger.Error("Failed to format SSE event", logging.ErrorField(err))
		return true
	}
	if _, err := w.Write(payload); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
