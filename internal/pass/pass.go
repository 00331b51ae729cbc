// Package pass turns a booking into the QR payload attendees show at the
// door and renders it as a PNG.
package pass

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joshua-takyi/eventpass/internal/models"
	"github.com/skip2/go-qrcode"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ImageSize     = 256
	ImageFilename = "event-pass-qr.png"
)

var ErrInvalidFormat = errors.New("invalid pass format")

// Payload is the JSON document encoded in the QR image.
type Payload struct {
	BookingID  string `json:"bookingId"`
	Email      string `json:"email"`
	EventID    string `json:"event"`
	NumTickets int    `json:"numTickets"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
}

// Pass is a generated token together with its rendered image.
type Pass struct {
	Token string
	PNG   []byte
}

func (p *Pass) DataURL() string {
	return DataURL(p.PNG)
}

// Encoder renders passes at a fixed size and recovery level.
type Encoder struct {
	size  int
	level qrcode.RecoveryLevel
}

func NewEncoder() *Encoder {
	return &Encoder{size: ImageSize, level: qrcode.Medium}
}

// Encode builds the token for booking. The same booking always yields the
// same token.
func (e *Encoder) Encode(booking *models.Booking) (string, error) {
	if booking == nil || booking.ID.IsZero() {
		return "", fmt.Errorf("booking id is required to encode a pass")
	}
	payload := Payload{
		BookingID:  booking.ID.Hex(),
		Email:      booking.Email,
		EventID:    booking.EventID.Hex(),
		NumTickets: booking.NumTickets,
		Name:       booking.Name,
		Phone:      booking.Phone,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pass payload: %w", err)
	}
	return string(raw), nil
}

// Render draws token as a QR code PNG.
func (e *Encoder) Render(token string) ([]byte, error) {
	if token == "" {
		return nil, fmt.Errorf("empty pass token")
	}
	png, err := qrcode.Encode(token, e.level, e.size)
	if err != nil {
		return nil, fmt.Errorf("failed to render pass: %w", err)
	}
	return png, nil
}

// FromToken renders a previously stored token.
func (e *Encoder) FromToken(token string) (*Pass, error) {
	png, err := e.Render(token)
	if err != nil {
		return nil, err
	}
	return &Pass{Token: token, PNG: png}, nil
}

// Parse decodes a scanned token. Anything that is not a payload with a
// valid booking id is ErrInvalidFormat.
func Parse(token string) (*Payload, primitive.ObjectID, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(token), &payload); err != nil {
		return nil, primitive.NilObjectID, ErrInvalidFormat
	}
	id, err := primitive.ObjectIDFromHex(payload.BookingID)
	if err != nil {
		return nil, primitive.NilObjectID, ErrInvalidFormat
	}
	return &payload, id, nil
}

func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
