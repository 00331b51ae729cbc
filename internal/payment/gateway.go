// Package payment adapts the payment gateway: order creation, order and
// payment lookup, and local signature verification.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	razorpay "github.com/razorpay/razorpay-go"
)

// Note keys attached to every order so reconciliation never depends on
// client-supplied values.
const (
	NoteEventID    = "event_id"
	NoteNumTickets = "num_tickets"
	NoteAttendeeID = "attendee_id"
	NoteEmail      = "email"
	NoteName       = "name"
	NotePhone      = "phone"
)

const (
	PaymentCaptured   = "captured"
	PaymentAuthorized = "authorized"
)

type Order struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Status   string            `json:"status,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type Payment struct {
	ID       string            `json:"id"`
	OrderID  string            `json:"order_id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Email    string            `json:"email"`
	Contact  string            `json:"contact"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// IsSettled reports whether the payment can back a booking.
func (p *Payment) IsSettled() bool {
	return p.Status == PaymentCaptured || p.Status == PaymentAuthorized
}

type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
}

// RazorpayGateway talks to Razorpay's REST API.
type RazorpayGateway struct {
	client *razorpay.Client
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	return &RazorpayGateway{
		client: razorpay.NewClient(keyID, keySecret),
	}
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}
	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay: create order: %w", err)
	}
	return decodeOrder(body)
}

func (g *RazorpayGateway) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := g.client.Order.Fetch(orderID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay: fetch order %s: %w", orderID, err)
	}
	return decodeOrder(body)
}

func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := g.client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay: fetch payment %s: %w", paymentID, err)
	}
	return DecodePayment(body)
}

func decodeOrder(body map[string]interface{}) (*Order, error) {
	order := &Order{
		ID:       stringValue(body["id"]),
		Amount:   int64Value(body["amount"]),
		Currency: stringValue(body["currency"]),
		Receipt:  stringValue(body["receipt"]),
		Status:   stringValue(body["status"]),
		Notes:    notesValue(body["notes"]),
	}
	if order.ID == "" {
		return nil, fmt.Errorf("razorpay: order response has no id")
	}
	return order, nil
}

// DecodePayment reads a payment entity as returned by the API or embedded
// in a webhook payload.
func DecodePayment(body map[string]interface{}) (*Payment, error) {
	p := &Payment{
		ID:       stringValue(body["id"]),
		OrderID:  stringValue(body["order_id"]),
		Amount:   int64Value(body["amount"]),
		Currency: stringValue(body["currency"]),
		Status:   stringValue(body["status"]),
		Email:    stringValue(body["email"]),
		Contact:  stringValue(body["contact"]),
		Notes:    notesValue(body["notes"]),
	}
	if p.ID == "" {
		return nil, fmt.Errorf("razorpay: payment entity has no id")
	}
	return p, nil
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func int64Value(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case int64:
		return t
	case json.Number:
		n, _ := t.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}

// notesValue accepts an object of notes; the API sends an empty array
// when an entity has none.
func notesValue(v interface{}) map[string]string {
	notes := map[string]string{}
	if m, ok := v.(map[string]interface{}); ok {
		for k, val := range m {
			notes[k] = stringValue(val)
		}
	}
	return notes
}
