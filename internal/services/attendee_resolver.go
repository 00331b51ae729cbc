package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joshua-takyi/eventpass/internal/helpers"
	"github.com/joshua-takyi/eventpass/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ResolutionKind string

const (
	AttendeeFound   ResolutionKind = "found"
	AttendeeCreated ResolutionKind = "created"
)

type AttendeeResolution struct {
	Kind     ResolutionKind
	Attendee *models.Attendee
}

// AttendeeHint is what a flow knows about the person behind a booking.
// ID wins when it resolves; otherwise Email is looked up or created.
type AttendeeHint struct {
	ID    string
	Email string
	Name  string
	Phone string
}

type AttendeeResolver struct {
	attendees models.AttendeeRepo
	logger    *slog.Logger
}

func NewAttendeeResolver(attendees models.AttendeeRepo, logger *slog.Logger) *AttendeeResolver {
	return &AttendeeResolver{attendees: attendees, logger: logger}
}

func (r *AttendeeResolver) Resolve(ctx context.Context, hint AttendeeHint) (*AttendeeResolution, error) {
	if hint.ID != "" {
		if id, err := primitive.ObjectIDFromHex(hint.ID); err == nil {
			attendee, err := r.attendees.GetAttendeeByID(ctx, id)
			switch {
			case err == nil:
				return &AttendeeResolution{Kind: AttendeeFound, Attendee: attendee}, nil
			case !errors.Is(err, models.ErrNotFound):
				return nil, internal("failed to look up attendee", err)
			}
		}
		r.logger.Warn("attendee hint did not resolve, falling back to email", "attendee_id", hint.ID)
	}

	email := helpers.NormalizeEmail(hint.Email)
	if email == "" {
		return nil, invalidInput("an email address is required to identify the attendee")
	}
	if err := models.Validate.Var(email, "email"); err != nil {
		return nil, invalidInput("invalid email address")
	}

	attendee, created, err := r.attendees.UpsertAttendeeByEmail(ctx, &models.Attendee{
		Name:  hint.Name,
		Email: email,
		Phone: hint.Phone,
	})
	if err != nil {
		return nil, internal("failed to resolve attendee", err)
	}
	if created {
		r.logger.Info("created attendee", "attendee_id", attendee.ID.Hex(), "email", email)
		return &AttendeeResolution{Kind: AttendeeCreated, Attendee: attendee}, nil
	}
	return &AttendeeResolution{Kind: AttendeeFound, Attendee: attendee}, nil
}
