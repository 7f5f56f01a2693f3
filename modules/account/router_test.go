package account_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/subkit/subkit/modules/account"
	"github.com/subkit/subkit/pkg/auth"
	"github.com/subkit/subkit/pkg/session"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) BeginAuth(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockAuthService) CompleteAuth(ctx context.Context, code, state string) (*auth.User, error) {
	args := m.Called(ctx, code, state)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func newRouter(svc account.AuthService) (http.Handler, *session.Manager) {
	sessions := session.NewManager(session.NewMemoryStore(), session.Config{TTL: time.Hour})
	cfg := account.Config{
		PostLoginURL:  "https://app.example.com/dashboard",
		PostLogoutURL: "https://app.example.com/",
	}
	return account.Router(svc, sessions, cfg, nil), sessions
}

func TestBegin(t *testing.T) {
	t.Parallel()

	svc := new(mockAuthService)
	svc.On("BeginAuth", mock.Anything).Return("https://accounts.google.com/auth?state=x", nil)

	router, _ := newRouter(svc)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/google", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.Equal(t, "https://accounts.google.com/auth?state=x", rr.Header().Get("Location"))
}

func TestCallback(t *testing.T) {
	t.Parallel()

	t.Run("issues session and redirects", func(t *testing.T) {
		t.Parallel()

		user := &auth.User{ID: uuid.New(), Email: "user@example.com", Name: "Alex"}
		svc := new(mockAuthService)
		svc.On("CompleteAuth", mock.Anything, "code-1", "state-1").Return(user, nil)

		router, sessions := newRouter(svc)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/google/callback?code=code-1&state=state-1", nil))

		require.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "https://app.example.com/dashboard", rr.Header().Get("Location"))

		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(cookies[0])
		resolved, err := sessions.Resolve(context.Background(), r)
		require.NoError(t, err)
		assert.Equal(t, user.ID, resolved.UserID)
	})

	t.Run("rejects missing parameters", func(t *testing.T) {
		t.Parallel()

		svc := new(mockAuthService)
		router, _ := newRouter(svc)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/google/callback", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "CompleteAuth", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("maps auth failure to 401", func(t *testing.T) {
		t.Parallel()

		svc := new(mockAuthService)
		svc.On("CompleteAuth", mock.Anything, "code-1", "bogus").Return(nil, auth.ErrInvalidState)

		router, _ := newRouter(svc)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/google/callback?code=code-1&state=bogus", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()

	router, sessions := newRouter(new(mockAuthService))

	rr := httptest.NewRecorder()
	_, err := sessions.Issue(context.Background(), rr, uuid.New(), "user@example.com", "")
	require.NoError(t, err)
	cookie := rr.Result().Cookies()[0]

	r := httptest.NewRequest(http.MethodPost, "/logout", nil)
	r.AddCookie(cookie)
	out := httptest.NewRecorder()
	router.ServeHTTP(out, r)

	assert.Equal(t, http.StatusSeeOther, out.Code)
	assert.Equal(t, "https://app.example.com/", out.Header().Get("Location"))

	check := httptest.NewRequest(http.MethodGet, "/", nil)
	check.AddCookie(cookie)
	_, err = sessions.Resolve(context.Background(), check)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestMe(t *testing.T) {
	t.Parallel()

	router, sessions := newRouter(new(mockAuthService))

	t.Run("requires authentication", func(t *testing.T) {
		t.Parallel()

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("returns the session identity", func(t *testing.T) {
		t.Parallel()

		userID := uuid.New()
		rr := httptest.NewRecorder()
		_, err := sessions.Issue(context.Background(), rr, userID, "user@example.com", "Alex")
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		r.AddCookie(rr.Result().Cookies()[0])
		out := httptest.NewRecorder()
		router.ServeHTTP(out, r)

		require.Equal(t, http.StatusOK, out.Code)
		assert.Contains(t, out.Body.String(), userID.String())
		assert.Contains(t, out.Body.String(), "user@example.com")
	})
}
