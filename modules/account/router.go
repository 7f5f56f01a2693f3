// Package account exposes authentication endpoints: the Google OAuth flow,
// logout and the current-user lookup.
package account

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/subkit/subkit/core"
	"github.com/subkit/subkit/pkg/auth"
	"github.com/subkit/subkit/pkg/logger"
	"github.com/subkit/subkit/pkg/session"
)

// Config holds account module settings.
type Config struct {
	// PostLoginURL is where the callback redirects after a successful sign-in.
	PostLoginURL string `env:"POST_LOGIN_URL,required"`
	// PostLogoutURL is where logout redirects.
	PostLogoutURL string `env:"POST_LOGOUT_URL,required"`
}

// AuthService is the OAuth flow surface the handlers call.
type AuthService interface {
	BeginAuth(ctx context.Context) (string, error)
	CompleteAuth(ctx context.Context, code, state string) (*auth.User, error)
}

type handlers struct {
	svc      AuthService
	sessions *session.Manager
	cfg      Config
	log      *slog.Logger
}

// Router mounts the authentication endpoints.
func Router(svc AuthService, sessions *session.Manager, cfg Config, log *slog.Logger) chi.Router {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &handlers{svc: svc, sessions: sessions, cfg: cfg, log: log}

	r := chi.NewRouter()
	r.Get("/google", h.begin)
	r.Get("/google/callback", h.callback)
	r.Post("/logout", h.logout)

	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(sessions))
		r.Use(session.RequireAuth)
		r.Get("/me", h.me)
	})

	return r
}

func (h *handlers) begin(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.BeginAuth(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "Failed to begin OAuth flow", logger.Error(err), logger.Component("account"))
		h.render(w, r, core.JSONError(core.ErrInternalServerError))
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *handlers) callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		h.render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	user, err := h.svc.CompleteAuth(r.Context(), code, state)
	if err != nil {
		h.log.WarnContext(r.Context(), "OAuth callback failed", logger.Error(err), logger.Component("account"))
		h.render(w, r, core.JSONError(core.ErrUnauthorized))
		return
	}

	if _, err := h.sessions.Issue(r.Context(), w, user.ID, user.Email, user.Name); err != nil {
		h.log.ErrorContext(r.Context(), "Failed to issue session", logger.Error(err), logger.UserID(user.ID.String()))
		h.render(w, r, core.JSONError(core.ErrInternalServerError))
		return
	}

	http.Redirect(w, r, h.cfg.PostLoginURL, http.StatusSeeOther)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Revoke(r.Context(), w, r); err != nil {
		h.log.ErrorContext(r.Context(), "Failed to revoke session", logger.Error(err))
	}
	http.Redirect(w, r, h.cfg.PostLogoutURL, http.StatusSeeOther)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	h.render(w, r, core.JSON(map[string]string{
		"id":    s.UserID.String(),
		"email": s.Email,
		"name":  s.Name,
	}))
}

func (h *handlers) render(w http.ResponseWriter, r *http.Request, resp core.Response) {
	if err := resp.Render(w, r); err != nil {
		h.log.ErrorContext(r.Context(), "Failed to write response", logger.Error(err))
	}
}
