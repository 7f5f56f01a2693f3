package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v76"
	portalsession "github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeConfig holds configuration for the Stripe billing gateway.
type StripeConfig struct {
	APIKey        string        `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET,required"`
	CallTimeout   time.Duration `env:"STRIPE_CALL_TIMEOUT" envDefault:"15s"`
}

// StripeGateway implements Gateway using the Stripe API.
type StripeGateway struct {
	webhookSecret string
	callTimeout   time.Duration
}

// NewStripeGateway creates a Stripe-backed Gateway.
// The Stripe SDK keeps a process-wide API key; this backend talks to a
// single Stripe account, so setting it here is safe.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	stripe.Key = cfg.APIKey

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &StripeGateway{
		webhookSecret: cfg.WebhookSecret,
		callTimeout:   timeout,
	}, nil
}

// EnsureCustomer creates a Stripe customer for the user.
func (g *StripeGateway) EnsureCustomer(ctx context.Context, user Identity) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
	}
	if user.Name != "" {
		params.Name = stripe.String(user.Name)
	}
	params.Context = ctx
	params.AddMetadata("user_id", user.ID.String())

	c, err := customer.New(params)
	if err != nil {
		return "", wrapStripeErr("create customer", err)
	}
	return c.ID, nil
}

// CreateCheckoutSession opens a hosted subscription checkout. The user, plan
// and plan kind ride along in the session metadata so the completion webhook
// can recover them without a database lookup.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(req.CustomerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.Plan.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Context = ctx
	params.AddMetadata("user_id", req.User.ID.String())
	params.AddMetadata("plan_id", req.Plan.ID)
	params.AddMetadata("plan_kind", string(req.Plan.Kind))

	s, err := checkoutsession.New(params)
	if err != nil {
		return nil, wrapStripeErr("create checkout session", err)
	}

	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// RetrieveSubscription reads the subscription's current state from Stripe.
func (g *StripeGateway) RetrieveSubscription(ctx context.Context, subscriptionID string) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return nil, wrapStripeErr("retrieve subscription", err)
	}
	return snapshotFromStripe(sub), nil
}

// UpdateSubscriptionItem swaps a subscription line item's price.
func (g *StripeGateway) UpdateSubscriptionItem(ctx context.Context, subscriptionID, itemID, priceID string) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(itemID),
				Price: stripe.String(priceID),
			},
		},
	}
	params.Context = ctx

	sub, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return nil, wrapStripeErr("update subscription item", err)
	}
	return snapshotFromStripe(sub), nil
}

// CreatePortalSession returns a pre-authenticated customer portal URL.
func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := portalsession.New(params)
	if err != nil {
		return "", wrapStripeErr("create portal session", err)
	}
	return s.URL, nil
}

// VerifyAndParseEvent validates the webhook signature against the raw payload
// and maps the Stripe event onto the internal variant type. Event kinds the
// core does not act on come back as EventOther so new provider events never
// fail the request.
func (g *StripeGateway) VerifyAndParseEvent(payload []byte, signature string) (*Event, error) {
	// Stripe delivers events pinned to the account's API version, which may
	// trail the SDK's; the signature check is what matters here.
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrVerificationFailed, err)
	}

	out := &Event{ProviderEvent: string(event.Type)}

	switch event.Type {
	case "checkout.session.completed":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, errors.Join(ErrProvider, fmt.Errorf("parse checkout session payload: %w", err))
		}
		out.Kind = EventCheckoutCompleted
		if s.Subscription != nil {
			out.SubscriptionID = s.Subscription.ID
		}
		if s.Customer != nil {
			out.CustomerID = s.Customer.ID
		}
		out.UserID = s.Metadata["user_id"]
		out.PlanID = s.Metadata["plan_id"]

	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, errors.Join(ErrProvider, fmt.Errorf("parse invoice payload: %w", err))
		}
		out.Kind = EventInvoicePaid
		if inv.Subscription != nil {
			out.SubscriptionID = inv.Subscription.ID
		}

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, errors.Join(ErrProvider, fmt.Errorf("parse subscription payload: %w", err))
		}
		if event.Type == "customer.subscription.updated" {
			out.Kind = EventSubscriptionUpdated
		} else {
			out.Kind = EventSubscriptionDeleted
		}
		out.SubscriptionID = sub.ID
		out.Status = string(sub.Status)
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		if sub.CurrentPeriodEnd > 0 {
			end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			out.PeriodEnd = &end
		}
		if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			out.PriceID = sub.Items.Data[0].Price.ID
		}

	default:
		out.Kind = EventOther
	}

	return out, nil
}

func snapshotFromStripe(sub *stripe.Subscription) *Snapshot {
	snap := &Snapshot{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.CurrentPeriodEnd > 0 {
		snap.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.Items != nil {
		snap.Items = make([]SnapshotItem, 0, len(sub.Items.Data))
		for _, item := range sub.Items.Data {
			si := SnapshotItem{ID: item.ID}
			if item.Price != nil {
				si.PriceID = item.Price.ID
			}
			snap.Items = append(snap.Items, si)
		}
	}
	return snap
}

// wrapStripeErr keeps the provider's human-readable message while letting
// callers branch on ErrProvider.
func wrapStripeErr(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return errors.Join(ErrProvider, fmt.Errorf("%s: %s", op, stripeErr.Msg))
	}
	return errors.Join(ErrProvider, fmt.Errorf("%s: %w", op, err))
}
