package billing

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a user's subscription.
// The vocabulary mirrors the billing provider's subscription lifecycle,
// with StatusNone and StatusTrial as local-only extensions.
type Status string

const (
	StatusNone              Status = ""
	StatusTrial             Status = "trial"
	StatusActive            Status = "active"
	StatusTrialing          Status = "trialing"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusUnpaid            Status = "unpaid"
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusEnded             Status = "ended"
)

// ParseStatus converts the provider's status string into a Status.
// Unknown values are preserved as-is so a provider vocabulary change
// never drops state on the floor; the core only branches on known values.
func ParseStatus(s string) Status {
	switch s {
	case "trialing":
		return StatusTrialing
	case "active":
		return StatusActive
	case "past_due":
		return StatusPastDue
	case "canceled", "cancelled":
		return StatusCanceled
	case "unpaid":
		return StatusUnpaid
	case "incomplete":
		return StatusIncomplete
	case "incomplete_expired":
		return StatusIncompleteExpired
	case "ended":
		return StatusEnded
	default:
		return Status(s)
	}
}

// PlanKind represents the billing cadence a Plan is sold at.
type PlanKind string

const (
	PlanTrial   PlanKind = "trial"
	PlanMonthly PlanKind = "monthly"
	PlanYearly  PlanKind = "yearly"
)

// ParsePlanKind converts an external string into a PlanKind.
// Returns false when the value is not part of the closed set.
func ParsePlanKind(s string) (PlanKind, bool) {
	switch PlanKind(s) {
	case PlanTrial, PlanMonthly, PlanYearly:
		return PlanKind(s), true
	}
	return "", false
}

// Identity is the authenticated-user handle every operation receives.
// It is produced outside this package (session middleware) and passed
// explicitly; the core keeps no ambient request state.
type Identity struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// CheckoutSession is a hosted checkout the caller redirects the user to.
type CheckoutSession struct {
	ID  string // provider's session identifier
	URL string
}

// Snapshot is a point-in-time read of a subscription's external state.
type Snapshot struct {
	ID               string
	Status           string // raw provider status, converted via ParseStatus by callers
	CurrentPeriodEnd time.Time
	Items            []SnapshotItem
}

// SnapshotItem is a single line item on an external subscription.
type SnapshotItem struct {
	ID      string
	PriceID string
}
