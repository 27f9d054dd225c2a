package cashfree

import (
	"encoding/json"
	"fmt"
)

// Webhook event types delivered to the payment notification endpoint.
const (
	EventPaymentSuccess     = "PAYMENT_SUCCESS_WEBHOOK"
	EventPaymentFailed      = "PAYMENT_FAILED_WEBHOOK"
	EventPaymentUserDropped = "PAYMENT_USER_DROPPED_WEBHOOK"
)

// Payment statuses carried inside webhook payloads.
const (
	PaymentStatusSuccess     = "SUCCESS"
	PaymentStatusFailed      = "FAILED"
	PaymentStatusUserDropped = "USER_DROPPED"
)

// WebhookEvent is the envelope of a payment notification.
type WebhookEvent struct {
	Type      string           `json:"type"`
	EventTime string           `json:"event_time"`
	Data      WebhookEventData `json:"data"`
}

// WebhookEventData carries the order and payment referenced by the event.
type WebhookEventData struct {
	Order   WebhookOrder   `json:"order"`
	Payment WebhookPayment `json:"payment"`
}

// WebhookOrder identifies the gateway order the event belongs to.
type WebhookOrder struct {
	OrderID     string  `json:"order_id"`
	OrderAmount float64 `json:"order_amount"`
}

// WebhookPayment is the payment attempt described by the event. The gateway
// sends cf_payment_id as a bare number, so it is decoded as json.Number.
type WebhookPayment struct {
	CFPaymentID    json.Number `json:"cf_payment_id"`
	PaymentStatus  string      `json:"payment_status"`
	PaymentAmount  float64     `json:"payment_amount"`
	PaymentMessage string      `json:"payment_message"`
	PaymentTime    string      `json:"payment_time"`
}

// ParseWebhookEvent decodes a raw webhook body. Signature verification is the
// caller's job and must run on the raw bytes before parsing.
func ParseWebhookEvent(raw []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("decoding webhook payload: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("webhook payload missing type")
	}
	if event.Data.Order.OrderID == "" {
		return nil, fmt.Errorf("webhook payload missing order id")
	}
	return &event, nil
}
