package payment

import (
	"encoding/json"
	"fmt"
)

const (
	SignatureHeader = "X-Razorpay-Signature"

	EventPaymentCaptured   = "payment.captured"
	EventPaymentAuthorized = "payment.authorized"
)

type WebhookEvent struct {
	Event   string
	Payment *Payment
}

// Handled reports whether the event type should produce a booking.
func (e *WebhookEvent) Handled() bool {
	return e.Event == EventPaymentCaptured || e.Event == EventPaymentAuthorized
}

// ParseWebhook decodes a verified webhook body. Only payment entities are
// extracted; other payload kinds leave Payment nil.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var envelope struct {
		Event   string `json:"event"`
		Payload struct {
			Payment *struct {
				Entity map[string]interface{} `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("webhook: invalid json: %w", err)
	}
	if envelope.Event == "" {
		return nil, fmt.Errorf("webhook: missing event type")
	}

	event := &WebhookEvent{Event: envelope.Event}
	if envelope.Payload.Payment != nil && envelope.Payload.Payment.Entity != nil {
		p, err := DecodePayment(envelope.Payload.Payment.Entity)
		if err != nil {
			return nil, err
		}
		event.Payment = p
	}
	return event, nil
}
