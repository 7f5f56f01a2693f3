package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists user billing records. Every mutation is a single-document
// atomic update: webhook deliveries and user requests for the same record
// may race, so implementations must never read-then-write across two calls.
// Lookups by subscription reference back the webhook handlers, which learn
// the user only from the provider's subscription id.
type Store interface {
	// Get retrieves the billing record for a user.
	// Returns ErrRecordNotFound if the user does not exist.
	Get(ctx context.Context, userID uuid.UUID) (*Record, error)

	// FindBySubscriptionID retrieves the record holding the given provider
	// subscription reference. Returns ErrRecordNotFound when none does.
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*Record, error)

	// SetCustomerID persists the provider customer reference, but only when
	// the record has none yet. Repeating the call is a no-op, which makes
	// checkout retries safe: the first persisted reference wins and duplicate
	// external customers are never attached.
	SetCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error

	// ApplyCheckout atomically attaches a subscription: reference, customer,
	// plan, derived kind, status and expiry in one write. When the plan kind
	// is trial the trial-eligibility flags flip to used in the same write.
	// An already-set customer reference is kept, never overwritten.
	ApplyCheckout(ctx context.Context, userID uuid.UUID, attach CheckoutAttach) error

	// ApplyRenewal refreshes status and expiry for the record holding the
	// subscription reference. Plan fields are untouched.
	ApplyRenewal(ctx context.Context, subscriptionID string, status Status, expiresAt *time.Time) error

	// ApplyPlanChange refreshes status and expiry and swaps the plan
	// reference and its derived kind, all in one write.
	ApplyPlanChange(ctx context.Context, subscriptionID string, status Status, expiresAt *time.Time, planID string, kind PlanKind) error

	// ApplyCancellation clears the subscription and plan references, sets
	// status to canceled and records when access ends.
	ApplyCancellation(ctx context.Context, subscriptionID string, endedAt time.Time) error
}
