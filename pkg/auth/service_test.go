package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/lespauI/mcp-ios-agent/pkg/errors"
)

func TestCreateAndValidateKey(t *testing.T) {
	s := NewService(nil, nil)
	ctx := context.Background()

	key, info, err := s.CreateKey(ctx, "ci-runner", RoleDeveloper, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "mcp_"))
	assert.Equal(t, RoleDeveloper, info.Role)
	assert.True(t, strings.HasPrefix(info.Preview, "mcp_"))
	assert.NotContains(t, info.Preview, key[len(key)-8:], "preview must not leak the tail")

	got, err := s.Validate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "ci-runner", got.Name)
	assert.False(t, got.LastUsedAt.IsZero())
}

func TestCreateKeyRejectsBadInput(t *testing.T) {
	s := NewService(nil, nil)
	ctx := context.Background()

	_, _, err := s.CreateKey(ctx, "", RoleUser, nil)
	assert.Error(t, err)

	_, _, err = s.CreateKey(ctx, "x", Role("superuser"), nil)
	assert.Error(t, err)
}

func TestValidateUnknownKey(t *testing.T) {
	s := NewService(nil, nil)

	_, err := s.Validate(context.Background(), "mcp_"+strings.Repeat("ab", 32))
	require.Error(t, err)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeAuthRequired))

	_, err = s.Validate(context.Background(), "short")
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeAuthRequired))
}

func TestValidateExpiredKey(t *testing.T) {
	s := NewService(nil, nil)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	key, _, err := s.CreateKey(ctx, "stale", RoleUser, &past)
	require.NoError(t, err)

	_, err = s.Validate(ctx, key)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeAuthRequired))
}

func TestRevoke(t *testing.T) {
	s := NewService(nil, nil)
	ctx := context.Background()

	key, _, err := s.CreateKey(ctx, "victim", RoleUser, nil)
	require.NoError(t, err)

	assert.True(t, s.Revoke(ctx, key))
	assert.False(t, s.Revoke(ctx, "never-existed"))

	_, err = s.Validate(ctx, key)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeAuthRequired))
	assert.Empty(t, s.List(ctx), "revoked keys drop out of listings")
}

func TestRoleHierarchy(t *testing.T) {
	assert.True(t, RoleAdmin.Satisfies(RoleUser))
	assert.True(t, RoleAdmin.Satisfies(RoleDeveloper))
	assert.True(t, RoleDeveloper.Satisfies(RoleUser))
	assert.False(t, RoleUser.Satisfies(RoleDeveloper))
	assert.False(t, RoleDeveloper.Satisfies(RoleAdmin))
}

func TestAuthorize(t *testing.T) {
	s := NewService(nil, nil)
	ctx := context.Background()

	key, _, err := s.CreateKey(ctx, "dev", RoleDeveloper, nil)
	require.NoError(t, err)

	_, err = s.Authorize(ctx, key, RoleUser)
	assert.NoError(t, err)

	_, err = s.Authorize(ctx, key, RoleAdmin)
	require.Error(t, err)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeForbidden))
}

func TestCleanupExpired(t *testing.T) {
	s := NewService(nil, nil)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	_, _, err := s.CreateKey(ctx, "stale", RoleUser, &past)
	require.NoError(t, err)
	key, _, err := s.CreateKey(ctx, "live", RoleUser, nil)
	require.NoError(t, err)
	s.Revoke(ctx, key)

	assert.Equal(t, 2, s.CleanupExpired())
	assert.Equal(t, 0, s.CleanupExpired())
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareDisabledPassesThrough(t *testing.T) {
	m := NewMiddleware(NewService(nil, nil), "X-API-Key", false)

	rec := httptest.NewRecorder()
	m.Require(RoleAdmin, okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareMissingKey(t *testing.T) {
	m := NewMiddleware(NewService(nil, nil), "X-API-Key", true)

	rec := httptest.NewRecorder()
	m.Require(RoleUser, okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareRoleCheck(t *testing.T) {
	s := NewService(nil, nil)
	key, _, err := s.CreateKey(context.Background(), "user", RoleUser, nil)
	require.NoError(t, err)
	m := NewMiddleware(s, "X-API-Key", true)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-API-Key", key)

	rec := httptest.NewRecorder()
	m.Require(RoleAdmin, okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	m.Require(RoleUser, okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRPCAlways200(t *testing.T) {
	m := NewMiddleware(NewService(nil, nil), "X-API-Key", true)

	rec := httptest.NewRecorder()
	m.RequireRPC(RoleUser, okHandler()).ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `-32000`)
}

func TestMiddlewareExposesKeyInfo(t *testing.T) {
	s := NewService(nil, nil)
	key, _, err := s.CreateKey(context.Background(), "probe", RoleAdmin, nil)
	require.NoError(t, err)
	m := NewMiddleware(s, "X-API-Key", true)

	var seen *KeyInfo
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = KeyInfoFromContext(r.Context())
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-API-Key", key)
	m.Require(RoleAdmin, inner).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.Equal(t, "probe", seen.Name)
}
