package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/joshua-takyi/eventpass/internal/broker"
	"github.com/joshua-takyi/eventpass/internal/mailer"
	"github.com/joshua-takyi/eventpass/internal/models"
	"github.com/joshua-takyi/eventpass/internal/payment"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore mirrors the mongo repo: unique order and registration keys,
// conditional updates, copies on read.
type memStore struct {
	mu        sync.Mutex
	events    map[primitive.ObjectID]models.Event
	attendees map[primitive.ObjectID]models.Attendee
	bookings  map[primitive.ObjectID]models.Booking
	insertErr error
	// confirmErr is returned by the next ConfirmBooking only.
	confirmErr error
}

func newMemStore() *memStore {
	return &memStore{
		events:    map[primitive.ObjectID]models.Event{},
		attendees: map[primitive.ObjectID]models.Attendee{},
		bookings:  map[primitive.ObjectID]models.Booking{},
	}
}

func (m *memStore) addEvent(name string, price int64) *models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := models.Event{
		ID:       primitive.NewObjectID(),
		Name:     name,
		Date:     time.Date(2026, 10, 20, 18, 0, 0, 0, time.UTC),
		Location: "City Hall",
		Price:    price,
	}
	m.events[e.ID] = e
	return &e
}

func (m *memStore) addAttendee(email, role string) *models.Attendee {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := models.Attendee{Email: email, Name: "Asha", Role: role}
	a.BeforeCreate()
	m.attendees[a.ID] = a
	return &a
}

func (m *memStore) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

// putBooking stores b as is, bypassing insert rules.
func (m *memStore) putBooking(b models.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
}

func (m *memStore) GetEventByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &e, nil
}

func (m *memStore) GetAttendeeByID(ctx context.Context, id primitive.ObjectID) (*models.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attendees[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &a, nil
}

func (m *memStore) findAttendee(email string) (*models.Attendee, bool) {
	var found *models.Attendee
	for _, a := range m.attendees {
		if a.Email != email {
			continue
		}
		if found == nil || a.CreatedAt.Before(found.CreatedAt) {
			a := a
			found = &a
		}
	}
	return found, found != nil
}

func (m *memStore) FindAttendeeByEmail(ctx context.Context, email string) (*models.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.findAttendee(email); ok {
		return a, nil
	}
	return nil, models.ErrNotFound
}

func (m *memStore) UpsertAttendeeByEmail(ctx context.Context, attendee *models.Attendee) (*models.Attendee, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.findAttendee(attendee.Email); ok {
		return a, false, nil
	}
	a := *attendee
	a.BeforeCreate()
	m.attendees[a.ID] = a
	return &a, true, nil
}

func (m *memStore) InsertBooking(ctx context.Context, booking *models.Booking) error {
	if err := models.Validate.Struct(booking); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, b := range m.bookings {
		if booking.OrderID != "" && b.OrderID == booking.OrderID {
			return models.ErrDuplicateOrder
		}
		if booking.RegistrationKey != "" && b.RegistrationKey == booking.RegistrationKey {
			return models.ErrDuplicateRegistration
		}
	}
	booking.BeforeCreate()
	m.bookings[booking.ID] = *booking
	return nil
}

func (m *memStore) GetBookingByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &b, nil
}

func (m *memStore) GetBookingByOrderID(ctx context.Context, orderID string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.OrderID == orderID {
			return &b, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) FindBookingByEmailAndEvent(ctx context.Context, email string, eventID primitive.ObjectID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Booking
	for _, b := range m.bookings {
		if b.Email != email || b.EventID != eventID {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			b := b
			latest = &b
		}
	}
	if latest == nil {
		return nil, models.ErrNotFound
	}
	return latest, nil
}

func (m *memStore) ConfirmBooking(ctx context.Context, id primitive.ObjectID, passToken string) (*models.Booking, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.confirmErr; err != nil {
		m.confirmErr = nil
		return nil, false, err
	}
	b, ok := m.bookings[id]
	if !ok {
		return nil, false, models.ErrNotFound
	}
	if b.Status != models.StatusPending {
		return &b, false, nil
	}
	b.Status = models.StatusConfirmed
	b.PassToken = passToken
	b.UpdatedAt = time.Now().UTC()
	m.bookings[id] = b
	return &b, true, nil
}

func (m *memStore) AttachPassToken(ctx context.Context, id primitive.ObjectID, passToken string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if b.PassToken == "" {
		b.PassToken = passToken
		m.bookings[id] = b
	}
	return &b, nil
}

func (m *memStore) MarkCheckedIn(ctx context.Context, id primitive.ObjectID, by string, at time.Time) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if b.IsCheckedIn {
		return nil, models.ErrAlreadyCheckedIn
	}
	if b.Status != models.StatusConfirmed {
		return nil, models.ErrNotConfirmed
	}
	b.IsCheckedIn = true
	b.CheckedInAt = &at
	b.CheckedInBy = by
	m.bookings[id] = b
	return &b, nil
}

func (m *memStore) list(keep func(models.Booking) bool) []*models.Booking {
	out := []*models.Booking{}
	for _, b := range m.bookings {
		if keep(b) {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(models.Booking) bool { return true }), nil
}

func (m *memStore) ListBookingsByAttendee(ctx context.Context, attendeeID primitive.ObjectID) ([]*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(b models.Booking) bool { return b.AttendeeID == attendeeID }), nil
}

type fakeGateway struct {
	mu       sync.Mutex
	orders   map[string]*payment.Order
	payments map[string]*payment.Payment
	seq      int
	fetchErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: map[string]*payment.Order{}, payments: map[string]*payment.Payment{}}
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	o := &payment.Order{
		ID:       "order_" + string(rune('A'+g.seq)),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
		Notes:    notes,
	}
	g.orders[o.ID] = o
	return o, nil
}

// capture records a captured payment against orderID.
func (g *fakeGateway) capture(orderID, paymentID, email string) *payment.Payment {
	g.mu.Lock()
	defer g.mu.Unlock()
	o := g.orders[orderID]
	p := &payment.Payment{
		ID:      paymentID,
		OrderID: orderID,
		Amount:  o.Amount,
		Status:  payment.PaymentCaptured,
		Email:   email,
		Contact: "+919800000000",
	}
	g.payments[paymentID] = p
	return p
}

func (g *fakeGateway) FetchOrder(ctx context.Context, orderID string) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	o, ok := g.orders[orderID]
	if !ok {
		return nil, errors.New("order not found")
	}
	cp := *o
	return &cp, nil
}

func (g *fakeGateway) FetchPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, errors.New("payment not found")
	}
	cp := *p
	return &cp, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []mailer.PassMail
	err  error
}

func (n *recordingNotifier) SendPass(ctx context.Context, mail mailer.PassMail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, mail)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string]int
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, event broker.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = map[string]int{}
	}
	p.events[routingKey]++
	return nil
}

func (p *recordingPublisher) count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[routingKey]
}

const (
	testKeySecret     = "key-secret"
	testWebhookSecret = "webhook-secret"
)

type harness struct {
	store     *memStore
	gateway   *fakeGateway
	notifier  *recordingNotifier
	publisher *recordingPublisher
	bookings  *BookingService
	checkins  *CheckInService
}

func newHarness() *harness {
	h := &harness{
		store:     newMemStore(),
		gateway:   newFakeGateway(),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
	}
	h.bookings = NewBookingService(BookingDeps{
		Bookings:  h.store,
		Events:    h.store,
		Attendees: h.store,
		Gateway:   h.gateway,
		Notifier:  h.notifier,
		Publisher: h.publisher,
		Logger:    discardLogger(),
	}, BookingConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     []byte(testKeySecret),
		WebhookSecret: []byte(testWebhookSecret),
		Currency:      "INR",
	})
	h.checkins = NewCheckInService(h.store, h.publisher, discardLogger())
	return h
}
