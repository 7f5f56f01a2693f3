package billing_test

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/subkit/subkit/pkg/billing"
)

const webhookSecret = "whsec_test_secret"

func newStripeGateway(t *testing.T) *billing.StripeGateway {
	t.Helper()
	g, err := billing.NewStripeGateway(billing.StripeConfig{
		APIKey:        "sk_test_123",
		WebhookSecret: webhookSecret,
	})
	require.NoError(t, err)
	return g
}

func signPayload(payload []byte) string {
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, webhookSecret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

func TestNewStripeGateway(t *testing.T) {
	t.Parallel()

	_, err := billing.NewStripeGateway(billing.StripeConfig{WebhookSecret: "whsec"})
	assert.ErrorIs(t, err, billing.ErrMissingAPIKey)

	_, err = billing.NewStripeGateway(billing.StripeConfig{APIKey: "sk_test"})
	assert.ErrorIs(t, err, billing.ErrMissingWebhookSecret)
}

func TestVerifyAndParseEvent(t *testing.T) {
	t.Parallel()

	t.Run("rejects a bad signature", func(t *testing.T) {
		t.Parallel()

		g := newStripeGateway(t)
		payload := []byte(`{"type":"invoice.payment_succeeded"}`)

		_, err := g.VerifyAndParseEvent(payload, "t=1,v1=deadbeef")
		assert.ErrorIs(t, err, billing.ErrVerificationFailed)
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		t.Parallel()

		g := newStripeGateway(t)
		payload := []byte(`{"type":"invoice.payment_succeeded"}`)
		sig := signPayload(payload)

		_, err := g.VerifyAndParseEvent([]byte(`{"type":"invoice.payment_succeeded" }`), sig)
		assert.ErrorIs(t, err, billing.ErrVerificationFailed)
	})

	t.Run("signed payload with a bad object shape is a parse error, not a verification one", func(t *testing.T) {
		t.Parallel()

		g := newStripeGateway(t)
		payload := []byte(`{
			"type": "checkout.session.completed",
			"data": {
				"object": {
					"id": "cs_1",
					"subscription": 123
				}
			}
		}`)

		_, err := g.VerifyAndParseEvent(payload, signPayload(payload))
		require.Error(t, err)
		assert.ErrorIs(t, err, billing.ErrProvider)
		assert.NotErrorIs(t, err, billing.ErrVerificationFailed)
	})

	t.Run("checkout session completed", func(t *testing.T) {
		t.Parallel()

		g := newStripeGateway(t)
		payload := []byte(`{
			"type": "checkout.session.completed",
			"data": {
				"object": {
					"id": "cs_1",
					"subscription": "sub_1",
					"customer": "cus_1",
					"metadata": {
						"user_id": "3b241101-e2bb-4255-8caf-4136c566a962",
						"plan_id": "monthly",
						"plan_kind": "monthly"
					}
				}
			}
		}`)

		event, err := g.VerifyAndParseEvent(payload, signPayload(payload))
		require.NoError(t, err)
		assert.Equal(t, billing.EventCheckoutCompleted, event.Kind)
		assert.Equal(t, "checkout.session.completed", event.ProviderEvent)
		assert.Equal(t, "sub_1", event.SubscriptionID)
		assert.Equal(t, "cus_1", event.CustomerID)
		assert.Equal(t, "3b241101-e2bb-4255-8caf-4136c566a962", event.UserID)
		assert.Equal(t, "monthly", event.PlanID)
	})

	t.Run("invoice payment succeeded", func(t *testing.T) {
		t.Parallel()

		g := newStripeGateway(t)
		payload := []byte(`{
			"type": "invoice.payment_succeeded",
			"data": {
				"object": {
					"id": "in_1",
					"subscription": "sub_1"
				}
			}
		}`)

		event, err := g.VerifyAndParseEvent(payload, signPayload(payload))
		require.NoError(t, err)
		assert.Equal(t, billing.EventInvoicePaid, event.Kind)
		assert.Equal(t, "sub_1", event.SubscriptionID)
	})

	t.Run("subscription updated", func(t *testing.T) {
		t.Parallel()

		g := newStripeGateway(t)
		payload := []byte(`{
			"type": "customer.subscription.updated",
			"data": {
				"object": {
					"id": "sub_1",
					"status": "active",
					"customer": "cus_1",
					"current_period_end": 1756425600,
					"items": {
						"data": [
							{"id": "si_1", "price": {"id": "price_yearly"}}
						]
					}
				}
			}
		}`)

		event, err := g.VerifyAndParseEvent(payload, signPayload(payload))
		require.NoError(t, err)
		assert.Equal(t, billing.EventSubscriptionUpdated, event.Kind)
		assert.Equal(t, "sub_1", event.SubscriptionID)
		assert.Equal(t, "active", event.Status)
		assert.Equal(t, "price_yearly", event.PriceID)
		require.NotNil(t, event.PeriodEnd)
		assert.Equal(t, time.Unix(1756425600, 0).UTC(), *event.PeriodEnd)
	})

	t.Run("subscription deleted", func(t *testing.T) {
		t.Parallel()

		g := newStripeGateway(t)
		payload := []byte(`{
			"type": "customer.subscription.deleted",
			"data": {
				"object": {
					"id": "sub_1",
					"status": "canceled",
					"current_period_end": 1756425600
				}
			}
		}`)

		event, err := g.VerifyAndParseEvent(payload, signPayload(payload))
		require.NoError(t, err)
		assert.Equal(t, billing.EventSubscriptionDeleted, event.Kind)
		assert.Equal(t, "canceled", event.Status)
	})

	t.Run("unhandled event types map to other", func(t *testing.T) {
		t.Parallel()

		g := newStripeGateway(t)
		payload := []byte(`{"type": "customer.created", "data": {"object": {}}}`)

		event, err := g.VerifyAndParseEvent(payload, signPayload(payload))
		require.NoError(t, err)
		assert.Equal(t, billing.EventOther, event.Kind)
		assert.Equal(t, "customer.created", event.ProviderEvent)
	})
}
