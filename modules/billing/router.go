// Package billing exposes the billing service over HTTP: plan listing,
// checkout initiation, yearly upgrade, billing portal and the payment
// provider webhook.
package billing

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	sub "github.com/subkit/subkit/pkg/billing"
	"github.com/subkit/subkit/pkg/session"
)

// Service is the billing operations surface the handlers call.
type Service interface {
	GetActivePlans() []sub.Plan
	StartCheckout(ctx context.Context, user sub.Identity, planID string) (*sub.CheckoutSession, error)
	UpgradeToYearly(ctx context.Context, user sub.Identity) error
	ManagePortal(ctx context.Context, user sub.Identity) (string, error)
	HandleEvent(ctx context.Context, payload []byte, signature string) error
}

// Router mounts the billing endpoints. Plan listing is public, account
// actions require an authenticated session, and the webhook authenticates
// itself via the provider signature.
func Router(svc Service, sessions *session.Manager, log *slog.Logger) chi.Router {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &handlers{svc: svc, log: log}

	r := chi.NewRouter()
	r.Get("/plans", h.plans)
	r.Post("/webhook", h.webhook)

	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(sessions))
		r.Use(session.RequireAuth)
		r.Post("/checkout", h.checkout)
		r.Post("/upgrade", h.upgrade)
		r.Post("/portal", h.portal)
	})

	return r
}

// identityFromContext converts the request session into the identity the
// billing service operates on. RequireAuth guarantees the session is present.
func identityFromContext(ctx context.Context) sub.Identity {
	s, _ := session.FromContext(ctx)
	if s == nil {
		return sub.Identity{}
	}
	return sub.Identity{ID: s.UserID, Email: s.Email, Name: s.Name}
}

// maxWebhookBody caps webhook payload reads.
const maxWebhookBody = 1 << 20

func readWebhookBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	return io.ReadAll(r.Body)
}
