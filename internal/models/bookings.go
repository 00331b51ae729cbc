package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingStatus string

const (
	// StatusPending marks a booking row that exists but has no pass yet.
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
)

type Booking struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AttendeeID primitive.ObjectID `bson:"attendee_id" json:"attendee_id" validate:"required"`
	EventID    primitive.ObjectID `bson:"event_id" json:"event_id" validate:"required"`

	// Registrant details as entered at booking time; the pass uses these,
	// not the attendee record.
	Name  string `bson:"name" json:"name" validate:"required"`
	Phone string `bson:"phone" json:"phone"`
	Email string `bson:"email" json:"email" validate:"required,email"`

	NumTickets  int           `bson:"num_tickets" json:"num_tickets" validate:"min=1"`
	PassToken   string        `bson:"pass_token,omitempty" json:"pass_token,omitempty"`
	Status      BookingStatus `bson:"status" json:"status"`
	IsCheckedIn bool          `bson:"is_checked_in" json:"is_checked_in"`
	CheckedInAt *time.Time    `bson:"checked_in_at,omitempty" json:"checked_in_at,omitempty"`
	CheckedInBy string        `bson:"checked_in_by,omitempty" json:"checked_in_by,omitempty"`

	OrderID    string `bson:"order_id,omitempty" json:"order_id,omitempty"`
	PaymentID  string `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	AmountPaid int64  `bson:"amount_paid,omitempty" json:"amount_paid,omitempty"`

	// RegistrationKey is only set on free registrations and carries the
	// unique (event, email) constraint.
	RegistrationKey string `bson:"registration_key,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (b *Booking) BeforeCreate() {
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

func (b *Booking) IsConfirmed() bool {
	return b.Status == StatusConfirmed
}

type BookingRepo interface {
	// InsertBooking returns ErrDuplicateOrder or ErrDuplicateRegistration
	// when a unique index rejects the row.
	InsertBooking(ctx context.Context, booking *Booking) error
	GetBookingByID(ctx context.Context, id primitive.ObjectID) (*Booking, error)
	GetBookingByOrderID(ctx context.Context, orderID string) (*Booking, error)
	FindBookingByEmailAndEvent(ctx context.Context, email string, eventID primitive.ObjectID) (*Booking, error)
	// ConfirmBooking moves a pending booking to confirmed and stores its
	// pass token. transitioned is false when the booking was already
	// confirmed by someone else; the stored booking is returned either way.
	ConfirmBooking(ctx context.Context, id primitive.ObjectID, passToken string) (booking *Booking, transitioned bool, err error)
	// AttachPassToken stores passToken unless a token is already present,
	// and returns the booking with whichever token won.
	AttachPassToken(ctx context.Context, id primitive.ObjectID, passToken string) (*Booking, error)
	// MarkCheckedIn flips is_checked_in in a single conditional update.
	MarkCheckedIn(ctx context.Context, id primitive.ObjectID, by string, at time.Time) (*Booking, error)
	ListBookings(ctx context.Context) ([]*Booking, error)
	ListBookingsByAttendee(ctx context.Context, attendeeID primitive.ObjectID) ([]*Booking, error)
}
