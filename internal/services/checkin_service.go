package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joshua-takyi/eventpass/internal/broker"
	"github.com/joshua-takyi/eventpass/internal/helpers"
	"github.com/joshua-takyi/eventpass/internal/models"
	"github.com/joshua-takyi/eventpass/internal/pass"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CheckInResult struct {
	BookingID   string    `json:"booking_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	EventID     string    `json:"event_id"`
	NumTickets  int       `json:"num_tickets"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

type CheckInService struct {
	bookings  models.BookingRepo
	publisher broker.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewCheckInService(bookings models.BookingRepo, publisher broker.Publisher, logger *slog.Logger) *CheckInService {
	if publisher == nil {
		publisher = broker.NopPublisher{}
	}
	return &CheckInService{bookings: bookings, publisher: publisher, logger: logger, now: time.Now}
}

// CheckIn admits the holder of a scanned pass. Of any number of
// concurrent scans of one pass, exactly one succeeds.
func (s *CheckInService) CheckIn(ctx context.Context, token string, caller *helpers.Caller) (*CheckInResult, error) {
	if caller.IsAnonymous() {
		return nil, ErrUnauthenticated
	}
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}

	token = strings.TrimSpace(token)
	_, id, err := pass.Parse(token)
	if err != nil {
		return nil, ErrInvalidPass
	}
	return s.checkIn(ctx, id, token, caller)
}

func (s *CheckInService) checkIn(ctx context.Context, id primitive.ObjectID, token string, caller *helpers.Caller) (*CheckInResult, error) {
	booking, err := s.bookings.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, internal("failed to load booking", err)
	}
	if booking.PassToken != "" && booking.PassToken != token {
		s.logger.Warn("scanned pass does not match stored pass", "booking_id", booking.ID.Hex())
		return nil, ErrPassMismatch
	}

	at := s.now().UTC()
	checked, err := s.bookings.MarkCheckedIn(ctx, booking.ID, caller.SubjectID, at)
	switch {
	case errors.Is(err, models.ErrAlreadyCheckedIn):
		return nil, ErrAlreadyCheckedIn
	case errors.Is(err, models.ErrNotConfirmed):
		return nil, ErrBookingNotConfirmed
	case errors.Is(err, models.ErrNotFound):
		return nil, ErrBookingNotFound
	case err != nil:
		return nil, internal("failed to check in booking", err)
	}

	s.logger.Info("booking checked in", "booking_id", checked.ID.Hex(), "by", caller.SubjectID)
	if err := s.publisher.Publish(ctx, broker.RoutingBookingCheckedIn, broker.BookingEvent{
		BookingID:  checked.ID.Hex(),
		EventID:    checked.EventID.Hex(),
		AttendeeID: checked.AttendeeID.Hex(),
		NumTickets: checked.NumTickets,
		OrderID:    checked.OrderID,
		OccurredAt: at,
	}); err != nil {
		s.logger.Warn("booking event publish failed", "routing_key", broker.RoutingBookingCheckedIn, "booking_id", checked.ID.Hex(), "error", err)
	}

	checkedAt := at
	if checked.CheckedInAt != nil {
		checkedAt = *checked.CheckedInAt
	}
	return &CheckInResult{
		BookingID:   checked.ID.Hex(),
		Name:        checked.Name,
		Email:       checked.Email,
		EventID:     checked.EventID.Hex(),
		NumTickets:  checked.NumTickets,
		CheckedInAt: checkedAt,
	}, nil
}
