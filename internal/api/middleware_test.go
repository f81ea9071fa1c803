package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chatroomd/chatroomd/internal/database"
	"github.com/chatroomd/chatroomd/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestAuthMiddleware(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	s := newTestServer(t, db)

	db.On("GetAccountById", mock.Anything, 1).
		Return(database.Account{Id: 1, Username: "alice"}, nil)

	token, err := s.auth.IssueToken(1, time.Hour)
	assert.NoError(t, err)

	var seen types.User
	handler := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFrom(r.Context())
		assert.True(t, ok, "expected the verified user in the request context")
		seen = user
		w.WriteHeader(http.StatusOK)
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: token})
		rec := httptest.NewRecorder()

		handler(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", seen.Username)
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("query parameter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
		rec := httptest.NewRecorder()

		handler(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthMiddleware_Unauthorized(t *testing.T) {
	s := newTestServer(t, &database.MockRepository{})

	handler := s.authMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run for an unverified request")
	})

	t.Run("no credential", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		rec := httptest.NewRecorder()

		handler(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "garbage"})
		rec := httptest.NewRecorder()

		handler(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestBearerCredential_Precedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	req.Header.Set("Authorization", "Bearer from-header")

	assert.Equal(t, "from-header", bearerCredential(req), "expected the header to win over the query parameter")

	req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", bearerCredential(req), "expected the cookie to win over everything")
}
