package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Config holds session settings.
type Config struct {
	CookieName    string        `env:"SESSION_COOKIE_NAME" envDefault:"session_token"`
	TTL           time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	SecureCookies bool          `env:"SESSION_SECURE_COOKIES" envDefault:"true"`
}

// Manager issues, resolves and revokes sessions over an HttpOnly cookie.
type Manager struct {
	store Store
	cfg   Config
}

// NewManager creates a session manager backed by the given store.
func NewManager(store Store, cfg Config) *Manager {
	if store == nil {
		panic("session: store is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "session_token"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 720 * time.Hour
	}
	return &Manager{store: store, cfg: cfg}
}

// Issue creates an authenticated session for the user and sets the session
// cookie on the response.
func (m *Manager) Issue(ctx context.Context, w http.ResponseWriter, userID uuid.UUID, email, name string) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		Token:     token,
		UserID:    userID,
		Email:     email,
		Name:      name,
		ExpiresAt: now.Add(m.cfg.TTL),
		CreatedAt: now,
	}
	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}

	m.setCookie(w, token, m.cfg.TTL)
	return session, nil
}

// Resolve returns the session carried by the request cookie.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrSessionNotFound
	}

	session, err := m.store.Get(ctx, cookie.Value)
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		_ = m.store.Delete(ctx, session.Token)
		return nil, ErrSessionExpired
	}
	return session, nil
}

// Revoke deletes the request's session and clears the cookie.
func (m *Manager) Revoke(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err == nil && cookie.Value != "" {
		if err := m.store.Delete(ctx, cookie.Value); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return err
		}
	}
	m.setCookie(w, "", -time.Second)
	return nil
}

func (m *Manager) setCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
