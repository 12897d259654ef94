package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func runAuth(t *testing.T, header string) *httptest.ResponseRecorder {
	t.Helper()

	handler := Auth("secret-key")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/all_questions", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestAuthAcceptsValidKey(t *testing.T) {
	rec := runAuth(t, "Bearer secret-key")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthCaseInsensitiveScheme(t *testing.T) {
	rec := runAuth(t, "bearer secret-key")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	rec := runAuth(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestAuthRejectsWrongKey(t *testing.T) {
	rec := runAuth(t, "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsMalformedHeader(t *testing.T) {
	rec := runAuth(t, "secret-key")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
