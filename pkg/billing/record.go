package billing

import (
	"time"

	"github.com/google/uuid"
)

// Record holds the billing fields of a user account. It mirrors the external
// provider's authoritative state and is mutated exclusively through the
// Store's atomic update methods.
//
// Invariants:
//   - SubscriptionID set implies Status != StatusNone.
//   - PlanKind is derived from PlanID and never drifts from it; both are
//     empty together.
//   - CustomerID is created lazily on first checkout and never changes
//     afterwards for the life of the account.
//   - Trial eligibility transitions available -> used at most once and
//     never reverses.
type Record struct {
	UserID         uuid.UUID
	CustomerID     string // provider customer reference (cus_xxx), immutable once set
	SubscriptionID string // provider subscription reference (sub_xxx), cleared on deletion
	Status         Status
	PlanID         string
	PlanKind       PlanKind
	ExpiresAt      *time.Time
	TrialAvailable bool
	TrialUsed      bool
	UpdatedAt      time.Time
}

// HasSubscription reports whether a provider subscription is attached.
func (r *Record) HasSubscription() bool {
	return r != nil && r.SubscriptionID != ""
}

// CanUpgradeToYearly reports whether the record satisfies the upgrade
// preconditions: an attached subscription, status exactly active, and a
// monthly plan.
func (r *Record) CanUpgradeToYearly() bool {
	return r.HasSubscription() && r.Status == StatusActive && r.PlanKind == PlanMonthly
}

// CanStartTrial reports whether the user may still consume a trial.
func (r *Record) CanStartTrial() bool {
	return r != nil && r.TrialAvailable && !r.TrialUsed
}

// CheckoutAttach is the absolute state applied when a completed checkout
// attaches a subscription to a user. All fields are written in a single
// atomic update so the record can never hold a subscription reference with
// stale plan or status fields.
type CheckoutAttach struct {
	SubscriptionID string
	CustomerID     string
	PlanID         string
	PlanKind       PlanKind
	Status         Status
	ExpiresAt      *time.Time
}
