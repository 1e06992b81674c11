package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/lespauI/mcp-ios-agent/pkg/auth"
	mcperrors "github.com/lespauI/mcp-ios-agent/pkg/errors"
	"github.com/lespauI/mcp-ios-agent/pkg/logging"
	"github.com/lespauI/mcp-ios-agent/pkg/resource"
	"github.com/lespauI/mcp-ios-agent/pkg/session"
)

const maxBodyBytes = 10 << 20

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", logging.ErrorField(err))
	}
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	unified := mcperrors.Unify(err)
	if s.metrics != nil {
		s.metrics.RecordError(nil, mcperrors.CodeName(unified.ErrorCode))
	}
	unified.WriteHTTP(w)
}

func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return mcperrors.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return mcperrors.NewHTTPError(http.StatusBadRequest, "Invalid JSON body: "+err.Error())
	}
	return nil
}

// handleJSONRPC feeds the raw body to the engine. An empty reply means
// every request in the payload was a notification.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		mcperrors.Unify(mcperrors.ParseError("Failed to read request body")).WriteJSONRPC(w, nil)
		return
	}

	result := s.engine.Process(r.Context(), body)
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result)
}

// handleConnect creates a session and points the client at its event
// stream.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.renderError(w, err)
		return
	}

	sessionID, err := s.sessions.Create(r.Context(), req.Metadata, 0)
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.updateSessionGauge(r)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"events_url": s.cfg.APIPrefix + "/mcp/events/" + sessionID,
	})
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Metadata   map[string]interface{} `json:"metadata"`
		TTLSeconds int64                  `json:"ttl_seconds"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.renderError(w, err)
		return
	}

	sessionID, err := s.sessions.Create(r.Context(), req.Metadata, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.updateSessionGauge(r)
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{"session_id": sessionID})
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": ids,
		"count":    len(ids),
	})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.renderError(w, sessionError(err, id))
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	req := struct {
		Context   map[string]interface{} `json:"context"`
		Metadata  map[string]interface{} `json:"metadata"`
		ExtendTTL *bool                  `json:"extend_ttl"`
	}{}
	if err := decodeBody(r, &req); err != nil {
		s.renderError(w, err)
		return
	}

	extend := req.ExtendTTL == nil || *req.ExtendTTL
	if err := s.sessions.Update(r.Context(), id, req.Context, req.Metadata, extend); err != nil {
		s.renderError(w, sessionError(err, id))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"updated": true})
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existed, err := s.sessions.Delete(r.Context(), id)
	if err != nil {
		s.renderError(w, err)
		return
	}
	if !existed {
		s.renderError(w, sessionError(session.ErrNotFound, id))
		return
	}
	s.updateSessionGauge(r)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

func (s *Server) handleSessionHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	alive, err := s.sessions.Heartbeat(r.Context(), id)
	if err != nil {
		s.renderError(w, err)
		return
	}
	if !alive {
		s.renderError(w, sessionError(session.ErrNotFound, id))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"active": true})
}

func (s *Server) handleResourceStore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content      string                 `json:"content"`
		ResourceType string                 `json:"resource_type"`
		Extension    string                 `json:"extension"`
		Metadata     map[string]interface{} `json:"metadata"`
		TTLSeconds   int64                  `json:"ttl_seconds"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.renderError(w, err)
		return
	}
	if req.ResourceType == "" {
		s.renderError(w, mcperrors.NewHTTPError(http.StatusUnprocessableEntity, "resource_type is required"))
		return
	}

	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		s.renderError(w, mcperrors.NewHTTPError(http.StatusUnprocessableEntity, "content must be base64 encoded"))
		return
	}

	uri, err := s.resources.Store(r.Context(), content, req.ResourceType, req.Extension,
		req.Metadata, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		s.recordResourceOp(r, "store", "error")
		s.renderError(w, resourceError(err))
		return
	}
	s.recordResourceOp(r, "store", "success")

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"uri":  uri,
		"size": len(content),
	})
}

func (s *Server) handleResourceList(w http.ResponseWriter, r *http.Request) {
	items := s.resources.List(r.URL.Query().Get("type"))
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"resources": items,
		"count":     len(items),
	})
}

func (s *Server) handleResourceGet(w http.ResponseWriter, r *http.Request) {
	uri := "resource://" + r.PathValue("type") + "/" + r.PathValue("id")

	if r.URL.Query().Get("metadata") == "true" {
		meta, err := s.resources.GetMetadata(r.Context(), uri)
		if err != nil {
			s.renderError(w, resourceError(err))
			return
		}
		s.writeJSON(w, http.StatusOK, meta)
		return
	}

	content, _, err := s.resources.Get(r.Context(), uri)
	if err != nil {
		s.recordResourceOp(r, "get", "error")
		s.renderError(w, resourceError(err))
		return
	}
	s.recordResourceOp(r, "get", "success")

	parts, _ := resource.ParseURI(uri)
	w.Header().Set("Content-Type", resource.ContentTypeFor(parts))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) handleResourceDelete(w http.ResponseWriter, r *http.Request) {
	uri := "resource://" + r.PathValue("type") + "/" + r.PathValue("id")
	existed, err := s.resources.Delete(r.Context(), uri)
	if err != nil {
		s.renderError(w, resourceError(err))
		return
	}
	if !existed {
		s.renderError(w, mcperrors.ResourceNotFound(uri))
		return
	}
	s.recordResourceOp(r, "delete", "success")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

func (s *Server) handleKeyCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string `json:"name"`
		Role             string `json:"role"`
		ExpiresInSeconds int64  `json:"expires_in_seconds"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.renderError(w, err)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresInSeconds > 0 {
		t := time.Now().UTC().Add(time.Duration(req.ExpiresInSeconds) * time.Second)
		expiresAt = &t
	}
	key, info, err := s.auth.CreateKey(r.Context(), req.Name, auth.Role(req.Role), expiresAt)
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"api_key": key,
		"info":    info,
	})
}

func (s *Server) handleKeyList(w http.ResponseWriter, r *http.Request) {
	keys := s.auth.List(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys":  keys,
		"count": len(keys),
	})
}

func (s *Server) handleKeyRevoke(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.renderError(w, err)
		return
	}
	if !s.auth.Revoke(r.Context(), req.Key) {
		s.renderError(w, mcperrors.NewHTTPError(http.StatusNotFound, "API key not found"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"revoked": true})
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"active":  s.tracker.Active(),
		"history": s.tracker.History(limit),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"operations":  s.tracker.Summary(),
		"sse_clients": s.events.ClientCount(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"service":     s.cfg.ProjectName,
		"environment": s.cfg.Environment,
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) updateSessionGauge(r *http.Request) {
	if s.metrics == nil {
		return
	}
	if ids, err := s.sessions.List(r.Context()); err == nil {
		s.metrics.SetActiveSessions(len(ids))
	}
}

func (s *Server) recordResourceOp(r *http.Request, op, status string) {
	if s.metrics != nil {
		s.metrics.RecordResourceOperation(r.Context(), op, status)
	}
}

func sessionError(err error, id string) error {
	if errors.Is(err, session.ErrNotFound) {
		return mcperrors.NewHTTPError(http.StatusNotFound, "Session not found: "+id)
	}
	return err
}

func resourceError(err error) error {
	var quota *resource.ErrQuotaExceeded
	if errors.As(err, &quota) {
		return mcperrors.NewHTTPError(http.StatusRequestEntityTooLarge, quota.Error())
	}
	var badURI *resource.ErrInvalidURI
	if errors.As(err, &badURI) {
		return mcperrors.NewHTTPError(http.StatusBadRequest, badURI.Error())
	}
	return err
}
