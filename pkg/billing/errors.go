package billing

import "errors"

var (
	ErrInvalidPlan        = errors.New("billing: plan does not exist or is not purchasable")
	ErrPlanNotFound       = errors.New("billing: plan not found")
	ErrRecordNotFound     = errors.New("billing: billing record not found")
	ErrUserNotFound       = errors.New("billing: user not found")
	ErrPreconditionFailed = errors.New("billing: operation precondition not met")
	ErrMisconfigured      = errors.New("billing: plan catalog is missing a required external reference")
	ErrInconsistentState  = errors.New("billing: local and external subscription state disagree")
	ErrProvider           = errors.New("billing: provider request failed")
	ErrVerificationFailed = errors.New("billing: webhook signature verification failed")

	// Provider adapter configuration errors
	ErrMissingAPIKey        = errors.New("billing: provider API key is required")
	ErrMissingWebhookSecret = errors.New("billing: webhook signing secret is required")
)
