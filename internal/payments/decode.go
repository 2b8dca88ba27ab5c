package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// expandableID decodes a Stripe reference that is either an ID string or an
// expanded object carrying an "id" field.
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type subscriptionPayload struct {
	ID                 string            `json:"id"`
	Customer           expandableID      `json:"customer"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type checkoutSessionPayload struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          expandableID      `json:"customer"`
	Subscription      expandableID      `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type invoicePayload struct {
	ID           string       `json:"id"`
	Customer     expandableID `json:"customer"`
	Subscription expandableID `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription expandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// DecodeSubscription parses a Stripe subscription object. Period dates are
// read from the subscription itself (older API versions) or, when absent,
// from its first item (newer API versions).
func DecodeSubscription(raw []byte) (*Subscription, error) {
	var p subscriptionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: subscription: %v", ErrMalformedPayload, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: subscription without id", ErrMalformedPayload)
	}

	sub := &Subscription{
		ID:                p.ID,
		CustomerID:        string(p.Customer),
		Status:            p.Status,
		CancelAtPeriodEnd: p.CancelAtPeriodEnd,
		Metadata:          p.Metadata,
	}
	start, end := p.CurrentPeriodStart, p.CurrentPeriodEnd
	if len(p.Items.Data) > 0 {
		item := p.Items.Data[0]
		sub.PriceID = item.Price.ID
		if start == 0 {
			start = item.CurrentPeriodStart
		}
		if end == 0 {
			end = item.CurrentPeriodEnd
		}
	}
	sub.CurrentPeriodStart = unixTime(start)
	sub.CurrentPeriodEnd = unixTime(end)
	if sub.Metadata == nil {
		sub.Metadata = map[string]string{}
	}
	return sub, nil
}

// DecodeCheckoutSession parses a Stripe Checkout session object.
func DecodeCheckoutSession(raw []byte) (*CheckoutSession, error) {
	var p checkoutSessionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: checkout session: %v", ErrMalformedPayload, err)
	}
	if p.Metadata == nil {
		p.Metadata = map[string]string{}
	}
	return &CheckoutSession{
		ID:                p.ID,
		Mode:              p.Mode,
		CustomerID:        string(p.Customer),
		SubscriptionID:    string(p.Subscription),
		ClientReferenceID: p.ClientReferenceID,
		Metadata:          p.Metadata,
	}, nil
}

// DecodeInvoice parses a Stripe invoice object. The subscription reference is
// taken from "subscription" or, on newer API versions, from
// "parent.subscription_details.subscription".
func DecodeInvoice(raw []byte) (*Invoice, error) {
	var p invoicePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: invoice: %v", ErrMalformedPayload, err)
	}
	inv := &Invoice{
		ID:             p.ID,
		CustomerID:     string(p.Customer),
		SubscriptionID: string(p.Subscription),
	}
	if inv.SubscriptionID == "" && p.Parent != nil && p.Parent.SubscriptionDetails != nil {
		inv.SubscriptionID = string(p.Parent.SubscriptionDetails.Subscription)
	}
	return inv, nil
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
