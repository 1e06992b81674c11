package auth

import (
	"context"
	"net/http"

	mcperrors "github.com/lespauI/mcp-ios-agent/pkg/errors"
)

type contextKey string

const keyInfoKey contextKey = "auth_key_info"

// KeyInfoFromContext returns the authenticated key metadata, if any.
func KeyInfoFromContext(ctx context.Context) (*KeyInfo, bool) {
	info, ok := ctx.Value(keyInfoKey).(*KeyInfo)
	return info, ok
}

// Middleware guards HTTP routes with API key checks.
type Middleware struct {
	service *Service
	header  string
	enabled bool
}

// NewMiddleware creates the middleware. When enabled is false every
// request passes through unauthenticated.
func NewMiddleware(service *Service, header string, enabled bool) *Middleware {
	if header == "" {
		header = "X-API-Key"
	}
	return &Middleware{service: service, header: header, enabled: enabled}
}

// Require wraps next with an authentication and role check. Failures
// are rendered as unified HTTP errors; for the JSON-RPC surface use
// RequireRPC instead.
func (m *Middleware) Require(required Role, next http.Handler) http.Handler {
	return m.wrap(required, next, func(w http.ResponseWriter, err error) {
		mcperrors.Unify(err).WriteHTTP(w)
	})
}

// RequireRPC wraps next for the JSON-RPC surface, where auth failures
// still return HTTP 200 with an error envelope. The request id is not
// yet parsed at this point, so the envelope carries a null id.
func (m *Middleware) RequireRPC(required Role, next http.Handler) http.Handler {
	return m.wrap(required, next, func(w http.ResponseWriter, err error) {
		mcperrors.Unify(err).WriteJSONRPC(w, nil)
	})
}

func (m *Middleware) wrap(required Role, next http.Handler, render func(http.ResponseWriter, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(m.header)
		if key == "" {
			render(w, mcperrors.AuthRequired("API key required"))
			return
		}

		info, err := m.service.Authorize(r.Context(), key, required)
		if err != nil {
			render(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), keyInfoKey, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
