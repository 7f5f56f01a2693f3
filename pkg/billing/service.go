package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/subkit/subkit/pkg/logger"
)

// Config holds the redirect destinations handed to the provider's hosted
// pages. Paths are resolved against the frontend base URL.
type Config struct {
	FrontendBaseURL string `env:"FRONTEND_BASE_URL,required"`
	SuccessPath     string `env:"BILLING_SUCCESS_PATH" envDefault:"/billing/success"`
	CancelPath      string `env:"BILLING_CANCEL_PATH" envDefault:"/billing/cancel"`
	PortalReturn    string `env:"BILLING_PORTAL_RETURN_PATH" envDefault:"/account"`
}

func (c Config) successURL() string { return joinURL(c.FrontendBaseURL, c.SuccessPath) }
func (c Config) cancelURL() string  { return joinURL(c.FrontendBaseURL, c.CancelPath) }
func (c Config) returnURL() string  { return joinURL(c.FrontendBaseURL, c.PortalReturn) }

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Service reconciles local billing records with the external provider's
// authoritative state. Three independent entry points converge here: user
// checkout and portal actions, the synchronous upgrade path, and the
// asynchronous webhook stream. Every webhook handler writes absolute state
// taken from a provider snapshot, so redelivered or reordered events
// converge instead of compounding.
type Service struct {
	catalog Catalog
	store   Store
	gateway Gateway
	cfg     Config
	log     *slog.Logger
}

// ServiceOption configures a Service during construction.
type ServiceOption func(*Service)

// WithLogger sets the logger used for webhook drop reporting.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService creates the reconciliation service.
// Panics on nil dependencies to fail fast during initialization.
func NewService(catalog Catalog, store Store, gateway Gateway, cfg Config, opts ...ServiceOption) *Service {
	if catalog == nil {
		panic("billing: Catalog is required")
	}
	if store == nil {
		panic("billing: Store is required")
	}
	if gateway == nil {
		panic("billing: Gateway is required")
	}

	s := &Service{
		catalog: catalog,
		store:   store,
		gateway: gateway,
		cfg:     cfg,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetActivePlans returns the purchasable plans.
func (s *Service) GetActivePlans() []Plan {
	return s.catalog.ListActive()
}

// StartCheckout opens a hosted checkout for the user and plan. The provider
// customer is created lazily and its reference persisted immediately, before
// the session call, so a failed or retried checkout can never attach a second
// external customer to the account. No subscription state is written here:
// the subscription becomes real only when the completion webhook confirms it.
func (s *Service) StartCheckout(ctx context.Context, user Identity, planID string) (*CheckoutSession, error) {
	plan, err := s.catalog.FindByID(planID)
	if err != nil || !plan.Active {
		return nil, ErrInvalidPlan
	}

	rec, err := s.store.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if plan.Kind == PlanTrial && !rec.CanStartTrial() {
		return nil, errors.Join(ErrPreconditionFailed, errors.New("trial already consumed"))
	}

	customerID := rec.CustomerID
	if customerID == "" {
		customerID, err = s.gateway.EnsureCustomer(ctx, user)
		if err != nil {
			return nil, err
		}
		if err := s.store.SetCustomerID(ctx, user.ID, customerID); err != nil {
			return nil, err
		}
	}

	return s.gateway.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		CustomerID: customerID,
		Plan:       plan,
		User:       user,
		SuccessURL: s.cfg.successURL(),
		CancelURL:  s.cfg.cancelURL(),
	})
}

// UpgradeToYearly moves an active monthly subscriber onto the yearly plan by
// swapping the subscription's line-item price at the provider. The local
// record is deliberately not touched: the authoritative update arrives via
// the subscription-updated webhook, which avoids racing this synchronous
// path against the asynchronous confirmation.
func (s *Service) UpgradeToYearly(ctx context.Context, user Identity) error {
	rec, err := s.store.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	// Preconditions checked before any gateway call.
	if !rec.CanUpgradeToYearly() {
		return errors.Join(ErrPreconditionFailed,
			errors.New("upgrade requires an active monthly subscription"))
	}

	current, err := s.catalog.FindByID(rec.PlanID)
	if err != nil {
		return errors.Join(ErrInconsistentState,
			fmt.Errorf("current plan %q not in catalog", rec.PlanID))
	}

	yearly, err := s.catalog.FindActiveByKind(PlanYearly)
	if err != nil {
		return ErrPlanNotFound
	}
	if yearly.PriceID == "" {
		// Operator error, not a user error: the catalog entry is incomplete.
		return errors.Join(ErrMisconfigured,
			fmt.Errorf("yearly plan %q has no price reference", yearly.ID))
	}

	snap, err := s.gateway.RetrieveSubscription(ctx, rec.SubscriptionID)
	if err != nil {
		return err
	}

	itemID := ""
	for _, item := range snap.Items {
		if item.PriceID == current.PriceID {
			itemID = item.ID
			break
		}
	}
	if itemID == "" {
		return errors.Join(ErrInconsistentState,
			fmt.Errorf("subscription %s has no item with price %s", rec.SubscriptionID, current.PriceID))
	}

	_, err = s.gateway.UpdateSubscriptionItem(ctx, rec.SubscriptionID, itemID, yearly.PriceID)
	return err
}

// ManagePortal returns a customer-portal URL for the user. No state changes.
func (s *Service) ManagePortal(ctx context.Context, user Identity) (string, error) {
	rec, err := s.store.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	if rec.CustomerID == "" {
		return "", errors.Join(ErrPreconditionFailed, errors.New("no billing account yet"))
	}

	return s.gateway.CreatePortalSession(ctx, rec.CustomerID, s.cfg.returnURL())
}

// HandleEvent verifies and applies a provider webhook. Provider delivery is
// at-least-once and unordered, so each handler is idempotent and writes
// absolute state; replaying any event converges on the same record.
//
// Only signature failures propagate as errors; the provider retries those.
// Conditions replay cannot fix (a deleted local user, a retired plan, a
// payload shape the adapter cannot parse) are logged and acknowledged so
// the provider does not retry indefinitely.
func (s *Service) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.VerifyAndParseEvent(payload, signature)
	if err != nil {
		if errors.Is(err, ErrVerificationFailed) {
			return err
		}
		// The signature passed but the payload did not parse. Redelivery
		// replays the same bytes, so acknowledge instead of failing.
		s.log.Warn("dropping unparseable provider event",
			logger.Error(err),
			logger.Component("billing"),
		)
		return nil
	}

	switch event.Kind {
	case EventCheckoutCompleted:
		s.applyCheckoutCompleted(ctx, event)
	case EventInvoicePaid:
		s.applyInvoicePaid(ctx, event)
	case EventSubscriptionUpdated:
		s.applySubscriptionUpdated(ctx, event)
	case EventSubscriptionDeleted:
		s.applySubscriptionDeleted(ctx, event)
	default:
		// Unknown event kinds must never fail the request.
		s.log.Debug("ignoring provider event",
			logger.EventType(event.ProviderEvent),
			logger.Component("billing"),
		)
	}
	return nil
}

// applyCheckoutCompleted attaches the new subscription to the user named in
// the session metadata. The metadata is the source of identity here: this may
// be the first moment the subscription reference is known locally, so no
// lookup by reference is possible yet.
func (s *Service) applyCheckoutCompleted(ctx context.Context, event *Event) {
	if event.SubscriptionID == "" {
		s.drop(event, "checkout completed without a subscription", nil)
		return
	}

	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		s.drop(event, "checkout metadata has no valid user id", err)
		return
	}

	plan, err := s.catalog.FindByID(event.PlanID)
	if err != nil {
		s.drop(event, "checkout references unknown plan", err)
		return
	}

	snap, err := s.gateway.RetrieveSubscription(ctx, event.SubscriptionID)
	if err != nil {
		s.drop(event, "failed to retrieve subscription snapshot", err)
		return
	}

	var expiresAt *time.Time
	if !snap.CurrentPeriodEnd.IsZero() {
		end := snap.CurrentPeriodEnd
		expiresAt = &end
	}

	err = s.store.ApplyCheckout(ctx, userID, CheckoutAttach{
		SubscriptionID: event.SubscriptionID,
		CustomerID:     event.CustomerID,
		PlanID:         plan.ID,
		PlanKind:       plan.Kind,
		Status:         ParseStatus(snap.Status),
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		// A missing local user cannot be fixed by replay.
		s.drop(event, "failed to attach subscription", err)
	}
}

// applyInvoicePaid refreshes status and expiry from a fresh snapshot.
// Invoices do not carry the original checkout metadata, so the user is found
// by the subscription reference.
func (s *Service) applyInvoicePaid(ctx context.Context, event *Event) {
	if event.SubscriptionID == "" {
		s.drop(event, "invoice without a subscription", nil)
		return
	}

	snap, err := s.gateway.RetrieveSubscription(ctx, event.SubscriptionID)
	if err != nil {
		s.drop(event, "failed to retrieve subscription snapshot", err)
		return
	}

	var expiresAt *time.Time
	if !snap.CurrentPeriodEnd.IsZero() {
		end := snap.CurrentPeriodEnd
		expiresAt = &end
	}

	if err := s.store.ApplyRenewal(ctx, event.SubscriptionID, ParseStatus(snap.Status), expiresAt); err != nil {
		s.drop(event, "no local record for paid invoice", err)
	}
}

// applySubscriptionUpdated refreshes status and expiry, and remaps the plan
// when the subscription's first line-item price no longer matches the plan
// on file. Multi-item subscriptions are not sold by this system; only the
// first item is considered.
func (s *Service) applySubscriptionUpdated(ctx context.Context, event *Event) {
	rec, err := s.store.FindBySubscriptionID(ctx, event.SubscriptionID)
	if err != nil {
		// The subscription may belong to a deleted or unrelated account.
		s.drop(event, "no local record for updated subscription", err)
		return
	}

	status := ParseStatus(event.Status)

	if event.PriceID != "" {
		current, err := s.catalog.FindByID(rec.PlanID)
		if err != nil || current.PriceID != event.PriceID {
			next, err := s.catalog.FindActiveByPriceID(event.PriceID)
			if err != nil {
				s.drop(event, "subscription price has no matching plan", err)
				return
			}
			if err := s.store.ApplyPlanChange(ctx, event.SubscriptionID, status, event.PeriodEnd, next.ID, next.Kind); err != nil {
				s.drop(event, "failed to apply plan change", err)
			}
			return
		}
	}

	if err := s.store.ApplyRenewal(ctx, event.SubscriptionID, status, event.PeriodEnd); err != nil {
		s.drop(event, "failed to refresh subscription state", err)
	}
}

// applySubscriptionDeleted detaches the subscription and marks the record
// canceled. Access ends at the event's period end when present, otherwise
// now. Clearing the reference also neutralizes stale out-of-order updates:
// they can no longer find the record by subscription reference.
func (s *Service) applySubscriptionDeleted(ctx context.Context, event *Event) {
	endedAt := time.Now().UTC()
	if event.PeriodEnd != nil {
		endedAt = *event.PeriodEnd
	}

	if err := s.store.ApplyCancellation(ctx, event.SubscriptionID, endedAt); err != nil {
		s.drop(event, "no local record for deleted subscription", err)
	}
}

// drop records a webhook the system cannot act on. The event is still
// acknowledged to the provider: redelivery cannot fix a missing local entity.
func (s *Service) drop(event *Event, reason string, err error) {
	s.log.Warn("dropping provider event",
		slog.String("reason", reason),
		logger.EventType(event.ProviderEvent),
		slog.String("subscription_id", event.SubscriptionID),
		logger.Error(err),
		logger.Component("billing"),
	)
}
