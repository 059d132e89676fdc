package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func authedRequest(t *testing.T, mw func(http.Handler) http.Handler, path, header, token string) *httptest.ResponseRecorder {
	t.Helper()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(header, token)
	}
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	return rec
}

func TestAuthDisabledWhenNoKey(t *testing.T) {
	mw := Auth("", "admin-key")
	rec := authedRequest(t, mw, "/api/trades", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	mw := Auth("user-key", "admin-key")
	rec := authedRequest(t, mw, "/api/trades", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	mw := Auth("user-key", "admin-key")
	rec := authedRequest(t, mw, "/api/trades", "Authorization", "Bearer user-key")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthAcceptsAPIKeyHeader(t *testing.T) {
	mw := Auth("user-key", "admin-key")
	rec := authedRequest(t, mw, "/api/trades", "X-API-Key", "user-key")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthAdminPathRejectsUserKey(t *testing.T) {
	mw := Auth("user-key", "admin-key")
	rec := authedRequest(t, mw, "/api/admin/audit", "X-API-Key", "user-key")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthAdminPathAcceptsAdminKey(t *testing.T) {
	mw := Auth("user-key", "admin-key")
	rec := authedRequest(t, mw, "/api/admin/audit", "X-API-Key", "admin-key")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthAdminKeyWorksOnUserPaths(t *testing.T) {
	mw := Auth("user-key", "admin-key")
	rec := authedRequest(t, mw, "/api/trades", "X-API-Key", "admin-key")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
