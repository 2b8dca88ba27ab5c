package payments

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

func TestDecodeSubscription_TopLevelPeriod(t *testing.T) {
	raw := []byte(`{
		"id": "sub_123",
		"customer": "cus_1",
		"status": "active",
		"cancel_at_period_end": true,
		"current_period_start": 1700000000,
		"current_period_end": 1702592000,
		"metadata": {"userId": "user_1", "planId": "pro"},
		"items": {"data": [{"price": {"id": "price_pro"}}]}
	}`)

	sub, err := DecodeSubscription(raw)
	require.NoError(t, err)

	assert.Equal(t, "sub_123", sub.ID)
	assert.Equal(t, "cus_1", sub.CustomerID)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "price_pro", sub.PriceID)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), sub.CurrentPeriodStart)
	assert.Equal(t, time.Unix(1702592000, 0).UTC(), sub.CurrentPeriodEnd)
	assert.Equal(t, "user_1", sub.Metadata["userId"])
}

func TestDecodeSubscription_ItemLevelPeriodAndExpandedCustomer(t *testing.T) {
	raw := []byte(`{
		"id": "sub_456",
		"customer": {"id": "cus_2", "object": "customer"},
		"status": "trialing",
		"items": {"data": [{
			"current_period_start": 1710000000,
			"current_period_end": 1712592000,
			"price": {"id": "price_teams"}
		}]}
	}`)

	sub, err := DecodeSubscription(raw)
	require.NoError(t, err)

	assert.Equal(t, "cus_2", sub.CustomerID)
	assert.Equal(t, "price_teams", sub.PriceID)
	assert.Equal(t, time.Unix(1710000000, 0).UTC(), sub.CurrentPeriodStart)
	assert.Equal(t, time.Unix(1712592000, 0).UTC(), sub.CurrentPeriodEnd)
	assert.NotNil(t, sub.Metadata)
}

func TestDecodeSubscription_Malformed(t *testing.T) {
	_, err := DecodeSubscription([]byte(`{"id": 12}`))
	assert.True(t, errors.Is(err, ErrMalformedPayload))

	_, err = DecodeSubscription([]byte(`{"status": "active"}`))
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestDecodeCheckoutSession(t *testing.T) {
	raw := []byte(`{
		"id": "cs_1",
		"mode": "subscription",
		"customer": "cus_1",
		"subscription": "sub_1",
		"client_reference_id": "user_9",
		"metadata": {"planId": "teams"}
	}`)

	s, err := DecodeCheckoutSession(raw)
	require.NoError(t, err)
	assert.Equal(t, "sub_1", s.SubscriptionID)
	assert.Equal(t, "user_9", s.ClientReferenceID)
	assert.Equal(t, "teams", s.Metadata["planId"])
	assert.Empty(t, s.Metadata["userId"])
}

func TestDecodeInvoice(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"string subscription", `{"id":"in_1","subscription":"sub_1"}`, "sub_1"},
		{"expanded subscription", `{"id":"in_1","subscription":{"id":"sub_2"}}`, "sub_2"},
		{"parent details", `{"id":"in_1","subscription":null,"parent":{"subscription_details":{"subscription":"sub_3"}}}`, "sub_3"},
		{"no subscription", `{"id":"in_1"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := DecodeInvoice([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, inv.SubscriptionID)
		})
	}
}

func TestConstructEvent(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "invoice.paid",
		"data": {"object": {"id": "in_1", "subscription": "sub_1"}}
	}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret})

	event, err := constructEvent(payload, signed.Header, secret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventInvoicePaid, event.Type)

	inv, err := DecodeInvoice(event.Object)
	require.NoError(t, err)
	assert.Equal(t, "sub_1", inv.SubscriptionID)
}

func TestConstructEvent_RejectsBadSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"invoice.paid","data":{"object":{}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_other"})

	_, err := constructEvent(payload, signed.Header, "whsec_test_secret")
	assert.True(t, errors.Is(err, ErrInvalidSignature))

	_, err = constructEvent(payload, "", "whsec_test_secret")
	assert.True(t, errors.Is(err, ErrInvalidSignature))
}
