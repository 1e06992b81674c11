package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	mcperrors "github.com/lespauI/mcp-ios-agent/pkg/errors"
	"github.com/lespauI/mcp-ios-agent/pkg/logging"
)

// statusWriter captures the response status for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	allowed := strings.Join(s.cfg.CORSOrigins, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+s.cfg.APIKeyHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recover converts handler panics into unified error responses. On the
// JSON-RPC route the error still travels inside a 200 envelope.
func (s *Server) recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			s.logger.Error("Panic in handler",
				logging.String("path", r.URL.Path), logging.ErrorField(err))

			if sw.status != 0 {
				// Headers already sent; nothing safe to write.
				return
			}
			unified := mcperrors.Unify(mcperrors.Internal(err))
			if s.isJSONRPCPath(r.URL.Path) {
				unified.WriteJSONRPC(sw, nil)
			} else {
				unified.WriteHTTP(sw)
			}
		}()
		next.ServeHTTP(sw, r)
	})
}

// trace continues the incoming trace context, or starts a new root
// span, for every request. Disabled tracing is a passthrough.
func (s *Server) trace(next http.Handler) http.Handler {
	if s.tracing == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := s.tracing.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := s.tracing.StartSpan(ctx, r.Method+" "+routeLabel(r.URL.Path),
			attribute.String("http.method", r.Method),
			attribute.String("http.route", routeLabel(r.URL.Path)))
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := routeLabel(r.URL.Path)
		var opID string
		if s.tracker != nil {
			opID = s.tracker.Start(r.Method+" "+route, nil)
		}
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		if s.tracker != nil {
			var opErr error
			if status >= http.StatusBadRequest {
				opErr = fmt.Errorf("HTTP %d", status)
			}
			s.tracker.Stop(opID, opErr)
		}
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(route, r.Method, strconv.Itoa(status), duration)
		}
		s.logger.WithContext(r.Context()).Info("Request handled",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Duration("duration", duration))
	})
}

func (s *Server) isJSONRPCPath(path string) bool {
	return path == s.cfg.APIPrefix+"/mcp/jsonrpc"
}

// routeLabel collapses session and resource IDs so metric cardinality
// stays bounded.
func routeLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if (p == "sessions" || p == "resources") && i+1 < len(parts) {
			return strings.Join(parts[:i+1], "/") + "/:id"
		}
	}
	return path
}
