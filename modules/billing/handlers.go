package billing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/subkit/subkit/core"
	sub "github.com/subkit/subkit/pkg/billing"
	"github.com/subkit/subkit/pkg/logger"
)

type handlers struct {
	svc Service
	log *slog.Logger
}

type planView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func (h *handlers) plans(w http.ResponseWriter, r *http.Request) {
	plans := h.svc.GetActivePlans()
	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		views = append(views, planView{ID: p.ID, Name: p.Name, Kind: string(p.Kind)})
	}
	h.render(w, r, core.JSON(map[string]any{"plans": views}))
}

type checkoutRequest struct {
	PlanID string `json:"plan_id"`
}

func (h *handlers) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanID == "" {
		h.render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	cs, err := h.svc.StartCheckout(r.Context(), identityFromContext(r.Context()), req.PlanID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, core.JSON(map[string]string{
		"session_id": cs.ID,
		"url":        cs.URL,
	}))
}

func (h *handlers) upgrade(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.UpgradeToYearly(r.Context(), identityFromContext(r.Context())); err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, core.JSON(map[string]bool{"upgraded": true}))
}

func (h *handlers) portal(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.ManagePortal(r.Context(), identityFromContext(r.Context()))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, core.JSON(map[string]string{"url": url}))
}

// webhook accepts provider events. The raw body is handed to the service
// untouched since signature verification covers the exact bytes. Only
// verification failures produce a non-200 answer; dropped or failed events
// are acknowledged so the provider does not retry forever.
func (h *handlers) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := readWebhookBody(w, r)
	if err != nil {
		h.render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	if err := h.svc.HandleEvent(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.log.WarnContext(r.Context(), "Webhook rejected", logger.Error(err), logger.Component("billing_webhook"))
		h.render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}
	h.render(w, r, core.JSON(map[string]bool{"received": true}))
}

// renderError maps domain errors onto transport errors.
func (h *handlers) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr error
	switch {
	case errors.Is(err, sub.ErrInvalidPlan):
		httpErr = core.ErrBadRequest
	case errors.Is(err, sub.ErrPreconditionFailed):
		httpErr = core.ErrPreconditionFailed
	case errors.Is(err, sub.ErrPlanNotFound),
		errors.Is(err, sub.ErrRecordNotFound),
		errors.Is(err, sub.ErrUserNotFound):
		httpErr = core.ErrNotFound
	case errors.Is(err, sub.ErrProvider):
		h.log.ErrorContext(r.Context(), "Billing provider call failed", logger.Error(err), logger.Component("billing_api"))
		httpErr = core.ErrBadGateway
	default:
		h.log.ErrorContext(r.Context(), "Billing operation failed", logger.Error(err), logger.Component("billing_api"))
		httpErr = core.ErrInternalServerError
	}
	h.render(w, r, core.JSONError(httpErr))
}

func (h *handlers) render(w http.ResponseWriter, r *http.Request, resp core.Response) {
	if err := resp.Render(w, r); err != nil {
		h.log.ErrorContext(r.Context(), "Failed to write response", logger.Error(err))
	}
}
