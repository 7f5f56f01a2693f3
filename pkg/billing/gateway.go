package billing

import (
	"context"
	"time"
)

// Gateway wraps the external billing provider. It is the system's only
// network boundary to billing: every call is a blocking round trip that may
// fail with an error wrapping ErrProvider and carrying the provider's
// human-readable message. The gateway translates the provider's string
// vocabulary into this package's types; the core never sees raw payloads.
type Gateway interface {
	// EnsureCustomer creates a provider customer for the user and returns its
	// reference. Callers must invoke it only when the user has no reference
	// yet, and must persist the result before any other billing action so
	// retries cannot create duplicate external customers.
	EnsureCustomer(ctx context.Context, user Identity) (string, error)

	// CreateCheckoutSession opens a hosted subscription checkout. The request
	// metadata embeds the acting user, plan and plan kind so the asynchronous
	// completion event can recover its context without a local lookup.
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)

	// RetrieveSubscription reads the subscription's current external state.
	RetrieveSubscription(ctx context.Context, subscriptionID string) (*Snapshot, error)

	// UpdateSubscriptionItem swaps a line item's price and returns the
	// resulting state.
	UpdateSubscriptionItem(ctx context.Context, subscriptionID, itemID, priceID string) (*Snapshot, error)

	// CreatePortalSession returns a pre-authenticated customer-portal URL.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// VerifyAndParseEvent checks the webhook signature against the exact raw
	// payload bytes and translates the event into the internal variant type.
	// Returns an error wrapping ErrVerificationFailed for tampered or
	// misattributed payloads; no event data is interpreted before the
	// signature passes.
	VerifyAndParseEvent(payload []byte, signature string) (*Event, error)
}

// CheckoutSessionRequest carries everything the provider needs to open a
// hosted checkout for a recurring subscription.
type CheckoutSessionRequest struct {
	CustomerID string
	Plan       Plan
	User       Identity
	SuccessURL string
	CancelURL  string
}

// EventKind identifies the normalized provider event variants the core
// dispatches on. Anything outside the known set maps to EventOther and is
// acknowledged without action.
type EventKind string

const (
	EventCheckoutCompleted   EventKind = "checkout_completed"
	EventInvoicePaid         EventKind = "invoice_paid"
	EventSubscriptionUpdated EventKind = "subscription_updated"
	EventSubscriptionDeleted EventKind = "subscription_deleted"
	EventOther               EventKind = "other"
)

// Event is the gateway's normalized view of a provider webhook. Which fields
// are populated depends on the kind: checkout completion carries the
// metadata identity, subscription events carry the subscription's absolute
// state, invoice events carry only the subscription reference.
type Event struct {
	Kind          EventKind
	ProviderEvent string // original provider event name, for logging

	SubscriptionID string
	CustomerID     string

	// Recovered from checkout metadata. The plan kind is re-derived from
	// the catalog when the event is applied, so it is not carried here.
	UserID string
	PlanID string

	// Absolute subscription state carried by subscription.* events.
	Status    string
	PeriodEnd *time.Time
	PriceID   string // first line item's price reference
}
