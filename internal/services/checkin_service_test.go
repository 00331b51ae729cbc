package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joshua-takyi/eventpass/internal/helpers"
	"github.com/joshua-takyi/eventpass/internal/models"
	"github.com/joshua-takyi/eventpass/internal/pass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func registered(t *testing.T, h *harness) *models.Booking {
	t.Helper()
	event := h.store.addEvent("Open Day", 0)
	res, err := h.bookings.RegisterFree(context.Background(), RegisterInput{
		EventID: event.ID.Hex(), Name: "Asha", Email: "asha@example.com", Phone: "98000", NumTickets: 2,
	}, nil)
	require.NoError(t, err)
	return res.Booking
}

func TestCheckIn(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := registered(t, h)
	admin := &helpers.Caller{SubjectID: "staff-1", Role: models.RoleAdmin}
	fixed := time.Date(2026, 10, 20, 18, 30, 0, 0, time.UTC)
	h.checkins.now = func() time.Time { return fixed }

	res, err := h.checkins.CheckIn(ctx, booking.PassToken, admin)
	require.NoError(t, err)
	assert.Equal(t, booking.ID.Hex(), res.BookingID)
	assert.Equal(t, "Asha", res.Name)
	assert.Equal(t, 2, res.NumTickets)
	assert.Equal(t, fixed, res.CheckedInAt)

	stored, err := h.store.GetBookingByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCheckedIn)
	assert.Equal(t, "staff-1", stored.CheckedInBy)
	assert.Equal(t, 1, h.publisher.count("booking.checked_in"))

	_, err = h.checkins.CheckIn(ctx, booking.PassToken, admin)
	assert.True(t, errors.Is(err, ErrAlreadyCheckedIn))
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestCheckIn_Authorization(t *testing.T) {
	h := newHarness()
	booking := registered(t, h)

	_, err := h.checkins.CheckIn(context.Background(), booking.PassToken, nil)
	assert.True(t, errors.Is(err, ErrUnauthenticated))

	_, err = h.checkins.CheckIn(context.Background(), booking.PassToken, &helpers.Caller{SubjectID: "u1", Role: models.RoleGuest})
	assert.True(t, errors.Is(err, ErrForbidden))
}

func TestCheckIn_BadPasses(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	booking := registered(t, h)
	admin := &helpers.Caller{SubjectID: "staff-1", Role: models.RoleSuperAdmin}

	_, err := h.checkins.CheckIn(ctx, "not json", admin)
	assert.True(t, errors.Is(err, ErrInvalidPass))

	ghost := *booking
	ghost.ID = primitive.NewObjectID()
	token, err := pass.NewEncoder().Encode(&ghost)
	require.NoError(t, err)
	_, err = h.checkins.CheckIn(ctx, token, admin)
	assert.True(t, errors.Is(err, ErrBookingNotFound))

	forged := *booking
	forged.NumTickets = 9
	token, err = pass.NewEncoder().Encode(&forged)
	require.NoError(t, err)
	_, err = h.checkins.CheckIn(ctx, token, admin)
	assert.True(t, errors.Is(err, ErrPassMismatch))

	pending := *booking
	pending.ID = primitive.NewObjectID()
	pending.Status = models.StatusPending
	pending.PassToken = ""
	pending.RegistrationKey = ""
	h.store.putBooking(pending)
	token, err = pass.NewEncoder().Encode(&pending)
	require.NoError(t, err)
	_, err = h.checkins.CheckIn(ctx, token, admin)
	assert.True(t, errors.Is(err, ErrBookingNotConfirmed))
}

func TestCheckIn_ConcurrentScans(t *testing.T) {
	h := newHarness()
	booking := registered(t, h)
	admin := &helpers.Caller{SubjectID: "staff-1", Role: models.RoleAdmin}

	const scanners = 16
	var (
		wg        sync.WaitGroup
		succeeded int32
		conflicts int32
	)
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.checkins.CheckIn(context.Background(), booking.PassToken, admin)
			switch {
			case err == nil:
				atomic.AddInt32(&succeeded, 1)
			case errors.Is(err, ErrAlreadyCheckedIn):
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded)
	assert.Equal(t, int32(scanners-1), conflicts)
}
