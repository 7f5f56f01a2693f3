package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subkit/subkit/pkg/session"
)

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	return session.NewManager(session.NewMemoryStore(), session.Config{
		CookieName: "session_token",
		TTL:        time.Hour,
	})
}

func requestWithCookie(rr *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rr.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestManagerIssueAndResolve(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	ctx := context.Background()
	userID := uuid.New()

	rr := httptest.NewRecorder()
	issued, err := m.Issue(ctx, rr, userID, "user@example.com", "Alex")
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session_token", cookies[0].Name)
	assert.Equal(t, issued.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	resolved, err := m.Resolve(ctx, requestWithCookie(rr))
	require.NoError(t, err)
	assert.Equal(t, userID, resolved.UserID)
	assert.Equal(t, "user@example.com", resolved.Email)
	assert.Equal(t, "Alex", resolved.Name)
}

func TestManagerResolve(t *testing.T) {
	t.Parallel()

	t.Run("no cookie", func(t *testing.T) {
		t.Parallel()

		m := newManager(t)
		_, err := m.Resolve(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()

		m := newManager(t)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "session_token", Value: "bogus"})

		_, err := m.Resolve(context.Background(), r)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})
}

func TestManagerRevoke(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	ctx := context.Background()

	rr := httptest.NewRecorder()
	_, err := m.Issue(ctx, rr, uuid.New(), "user@example.com", "")
	require.NoError(t, err)

	r := requestWithCookie(rr)
	clearRR := httptest.NewRecorder()
	require.NoError(t, m.Revoke(ctx, clearRR, r))

	cookies := clearRR.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)

	_, err = m.Resolve(ctx, r)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	ctx := context.Background()

	rr := httptest.NewRecorder()
	issued, err := m.Issue(ctx, rr, uuid.New(), "user@example.com", "")
	require.NoError(t, err)

	var seen *session.Session
	handler := session.Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = session.FromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), requestWithCookie(rr))
	require.NotNil(t, seen)
	assert.Equal(t, issued.UserID, seen.UserID)

	seen = nil
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, seen)
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("blocks anonymous requests", func(t *testing.T) {
		t.Parallel()

		rr := httptest.NewRecorder()
		session.RequireAuth(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("passes authenticated requests", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(session.WithSession(r.Context(), &session.Session{UserID: uuid.New()}))

		rr := httptest.NewRecorder()
		session.RequireAuth(next).ServeHTTP(rr, r)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}
