package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventpass/internal/broker"
	"github.com/joshua-takyi/eventpass/internal/helpers"
	"github.com/joshua-takyi/eventpass/internal/mailer"
	"github.com/joshua-takyi/eventpass/internal/models"
	"github.com/joshua-takyi/eventpass/internal/pass"
	"github.com/joshua-takyi/eventpass/internal/payment"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultPendingRecoveryAfter = 2 * time.Minute

// PassImageHost publishes a rendered pass and returns a link to it.
type PassImageHost interface {
	UploadPass(ctx context.Context, bookingID, dataURL string) (string, error)
}

type BookingConfig struct {
	KeyID         string
	KeySecret     []byte
	WebhookSecret []byte
	Currency      string
	// PendingRecoveryAfter is how long a pending booking is left to the
	// request that created it before another reconciler finishes it.
	PendingRecoveryAfter time.Duration
}

type BookingDeps struct {
	Bookings  models.BookingRepo
	Events    models.EventRepo
	Attendees models.AttendeeRepo
	Gateway   payment.Gateway
	Encoder   *pass.Encoder
	Notifier  mailer.Notifier
	Publisher broker.Publisher
	Images    PassImageHost // optional
	Logger    *slog.Logger
}

type BookingService struct {
	bookings  models.BookingRepo
	events    models.EventRepo
	resolver  *AttendeeResolver
	gateway   payment.Gateway
	encoder   *pass.Encoder
	notifier  mailer.Notifier
	publisher broker.Publisher
	images    PassImageHost
	cfg       BookingConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewBookingService(deps BookingDeps, cfg BookingConfig) *BookingService {
	if cfg.PendingRecoveryAfter <= 0 {
		cfg.PendingRecoveryAfter = DefaultPendingRecoveryAfter
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = broker.NopPublisher{}
	}
	encoder := deps.Encoder
	if encoder == nil {
		encoder = pass.NewEncoder()
	}
	return &BookingService{
		bookings:  deps.Bookings,
		events:    deps.Events,
		resolver:  NewAttendeeResolver(deps.Attendees, deps.Logger),
		gateway:   deps.Gateway,
		encoder:   encoder,
		notifier:  deps.Notifier,
		publisher: publisher,
		images:    deps.Images,
		cfg:       cfg,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

type CreateOrderInput struct {
	EventID    string `json:"event_id" validate:"required"`
	NumTickets int    `json:"num_tickets" validate:"min=1"`
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type OrderHandle struct {
	OrderID    string `json:"order_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	KeyID      string `json:"key_id"`
	EventID    string `json:"event_id"`
	NumTickets int    `json:"num_tickets"`
}

type VerifyPaymentInput struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

type RegisterInput struct {
	EventID    string `json:"event_id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required"`
	NumTickets int    `json:"num_tickets" validate:"min=1"`
}

type ResendInput struct {
	BookingID string `json:"booking_id,omitempty"`
	Email     string `json:"email,omitempty"`
	EventID   string `json:"event_id,omitempty"`
}

// BookingResult reports a reconciliation or registration. Created is true
// only for the call that inserted the booking; Notified only for the call
// that delivered the pass.
type BookingResult struct {
	BookingID   string          `json:"booking_id"`
	Success     bool            `json:"success"`
	Created     bool            `json:"created"`
	Notified    bool            `json:"email_sent"`
	NotifyError string          `json:"email_error,omitempty"`
	Booking     *models.Booking `json:"-"`
}

type WebhookOutcome string

const (
	WebhookProcessed WebhookOutcome = "processed"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
)

type WebhookResult struct {
	Outcome   WebhookOutcome `json:"outcome"`
	Reason    string         `json:"reason,omitempty"`
	BookingID string         `json:"booking_id,omitempty"`
}

func validationError(err error) *Error {
	return newError(KindInvalidInput, "invalid request", err)
}

func parseObjectID(raw, field string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, invalidInput(fmt.Sprintf("invalid %s", field))
	}
	return id, nil
}

func (s *BookingService) loadEvent(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	event, err := s.events.GetEventByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, internal("failed to load event", err)
	}
	return event, nil
}

// CreateOrder asks the gateway for an order covering the event price for
// the requested tickets. Everything needed later is stored in the order
// notes so verification never trusts the client.
func (s *BookingService) CreateOrder(ctx context.Context, in CreateOrderInput, caller *helpers.Caller) (*OrderHandle, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	eventID, err := parseObjectID(in.EventID, "event id")
	if err != nil {
		return nil, err
	}
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, newError(KindInvalidInput, "invalid event", err)
		}
		return nil, err
	}
	if event.Price <= 0 {
		return nil, ErrPriceNotConfigured
	}

	amount := event.Price * int64(in.NumTickets)
	notes := map[string]string{
		payment.NoteEventID:    event.ID.Hex(),
		payment.NoteNumTickets: strconv.Itoa(in.NumTickets),
	}
	if !caller.IsAnonymous() {
		notes[payment.NoteAttendeeID] = caller.SubjectID
		if caller.Email != "" {
			notes[payment.NoteEmail] = helpers.NormalizeEmail(caller.Email)
		}
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		notes[payment.NoteName] = name
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		notes[payment.NotePhone] = phone
	}

	receipt := "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	order, err := s.gateway.CreateOrder(ctx, amount, s.cfg.Currency, receipt, notes)
	if err != nil {
		return nil, newError(KindUpstreamFailure, "failed to create payment order", err)
	}
	if order.Amount != amount {
		return nil, newError(KindUpstreamFailure, "payment gateway returned an unexpected amount",
			fmt.Errorf("order %s: want %d, got %d", order.ID, amount, order.Amount))
	}

	s.logger.Info("payment order created",
		"order_id", order.ID,
		"event_id", event.ID.Hex(),
		"amount", amount,
		"num_tickets", in.NumTickets,
	)
	currency := order.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	return &OrderHandle{
		OrderID:    order.ID,
		Amount:     amount,
		Currency:   currency,
		KeyID:      s.cfg.KeyID,
		EventID:    event.ID.Hex(),
		NumTickets: in.NumTickets,
	}, nil
}

// VerifyPayment handles the client-side confirmation after checkout.
func (s *BookingService) VerifyPayment(ctx context.Context, in VerifyPaymentInput, caller *helpers.Caller) (*BookingResult, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if err := payment.VerifyPaymentSignature(s.cfg.KeySecret, in.OrderID, in.PaymentID, in.Signature); err != nil {
		s.logger.Warn("payment signature rejected", "order_id", in.OrderID, "payment_id", in.PaymentID, "error", err)
		return nil, ErrSignatureMismatch
	}

	order, err := s.gateway.FetchOrder(ctx, in.OrderID)
	if err != nil {
		return nil, newError(KindUpstreamFailure, "failed to fetch payment order", err)
	}
	pay, err := s.gateway.FetchPayment(ctx, in.PaymentID)
	if err != nil {
		return nil, newError(KindUpstreamFailure, "failed to fetch payment", err)
	}
	if err := checkPayment(order, pay); err != nil {
		s.logger.Warn("payment failed validation", "order_id", order.ID, "payment_id", pay.ID, "error", err)
		return nil, err
	}

	if owner := order.Notes[payment.NoteAttendeeID]; owner != "" && !caller.IsOwner(owner) && !caller.IsAdmin() {
		return nil, ErrForbidden
	}

	return s.reconcile(ctx, order, pay, "verify")
}

// HandleWebhook processes a gateway callback. The error is non-nil only
// for signature failures and for store failures worth a redelivery;
// everything else is acknowledged with an outcome.
func (s *BookingService) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if err := payment.VerifyWebhookSignature(s.cfg.WebhookSecret, body, signature); err != nil {
		s.logger.Warn("webhook signature rejected", "error", err)
		return nil, ErrSignatureMismatch
	}

	event, err := payment.ParseWebhook(body)
	if err != nil {
		s.logger.Error("webhook payload could not be parsed", "error", err)
		return s.ignore("unparseable payload"), nil
	}
	if !event.Handled() {
		s.logger.Debug("webhook event ignored", "event", event.Event)
		return s.ignore("unhandled event " + event.Event), nil
	}
	pay := event.Payment
	if pay == nil || pay.OrderID == "" {
		s.logger.Warn("webhook payment has no order", "event", event.Event)
		return s.ignore("payment has no order"), nil
	}

	order, err := s.gateway.FetchOrder(ctx, pay.OrderID)
	if err != nil {
		s.logger.Error("webhook order fetch failed", "order_id", pay.OrderID, "error", err)
		return s.ignore("order metadata unavailable"), nil
	}
	if err := checkPayment(order, pay); err != nil {
		s.logger.Warn("webhook payment failed validation", "order_id", order.ID, "payment_id", pay.ID, "error", err)
		return s.ignore(err.Error()), nil
	}

	res, err := s.reconcile(ctx, order, pay, "webhook")
	if err != nil {
		switch KindOf(err) {
		case KindInvalidInput, KindNotFound:
			s.logger.Warn("webhook could not be reconciled", "order_id", order.ID, "error", err)
			return s.ignore(err.Error()), nil
		}
		return nil, err
	}

	outcome := WebhookDuplicate
	if res.Created {
		outcome = WebhookProcessed
	}
	return &WebhookResult{Outcome: outcome, BookingID: res.BookingID}, nil
}

func (s *BookingService) ignore(reason string) *WebhookResult {
	return &WebhookResult{Outcome: WebhookIgnored, Reason: reason}
}

// checkPayment refuses gateway data that does not line up.
func checkPayment(order *payment.Order, pay *payment.Payment) error {
	if pay.OrderID != order.ID {
		return ErrPaymentMismatch
	}
	if !pay.IsSettled() {
		return ErrPaymentNotSettled
	}
	if pay.Amount <= 0 || (order.Amount > 0 && pay.Amount != order.Amount) {
		return ErrPaymentMismatch
	}
	return nil
}

func mergeNotes(order *payment.Order, pay *payment.Payment) map[string]string {
	notes := make(map[string]string, len(order.Notes)+len(pay.Notes))
	for k, v := range pay.Notes {
		notes[k] = v
	}
	for k, v := range order.Notes {
		notes[k] = v
	}
	return notes
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// reconcile turns a verified payment into exactly one booking per order.
func (s *BookingService) reconcile(ctx context.Context, order *payment.Order, pay *payment.Payment, source string) (*BookingResult, error) {
	existing, err := s.bookings.GetBookingByOrderID(ctx, order.ID)
	switch {
	case err == nil:
		return s.resume(ctx, existing, source)
	case !errors.Is(err, models.ErrNotFound):
		return nil, internal("failed to look up booking", err)
	}

	notes := mergeNotes(order, pay)
	rawEventID := notes[payment.NoteEventID]
	if rawEventID == "" {
		return nil, ErrMissingOrderMetadata
	}
	eventID, err := primitive.ObjectIDFromHex(rawEventID)
	if err != nil {
		return nil, ErrMissingOrderMetadata
	}
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	numTickets, err := strconv.Atoi(notes[payment.NoteNumTickets])
	if err != nil || numTickets < 1 {
		numTickets = 1
	}

	resolution, err := s.resolver.Resolve(ctx, AttendeeHint{
		ID:    notes[payment.NoteAttendeeID],
		Email: firstNonEmpty(pay.Email, notes[payment.NoteEmail]),
		Name:  notes[payment.NoteName],
		Phone: firstNonEmpty(pay.Contact, notes[payment.NotePhone]),
	})
	if err != nil {
		return nil, err
	}
	attendee := resolution.Attendee
	email := helpers.NormalizeEmail(firstNonEmpty(pay.Email, notes[payment.NoteEmail], attendee.Email))

	booking := &models.Booking{
		AttendeeID: attendee.ID,
		EventID:    event.ID,
		Name:       firstNonEmpty(notes[payment.NoteName], attendee.Name, email),
		Phone:      firstNonEmpty(notes[payment.NotePhone], pay.Contact, attendee.Phone),
		Email:      email,
		NumTickets: numTickets,
		OrderID:    order.ID,
		PaymentID:  pay.ID,
		AmountPaid: pay.Amount,
	}
	if err := s.bookings.InsertBooking(ctx, booking); err != nil {
		if errors.Is(err, models.ErrDuplicateOrder) {
			// Lost the race; the winner's row is authoritative.
			winner, err := s.bookings.GetBookingByOrderID(ctx, order.ID)
			if err != nil {
				return nil, internal("failed to load existing booking", err)
			}
			return s.resume(ctx, winner, source)
		}
		return nil, internal("failed to create booking", err)
	}

	s.logger.Info("booking created from payment",
		"booking_id", booking.ID.Hex(),
		"order_id", order.ID,
		"payment_id", pay.ID,
		"attendee", resolution.Kind,
		"source", source,
	)
	return s.confirmAndNotify(ctx, booking, event, true)
}

// resume handles a booking that already exists for the order. Confirmed
// and fresh pending bookings are returned untouched; a stale pending one
// is finished here.
func (s *BookingService) resume(ctx context.Context, booking *models.Booking, source string) (*BookingResult, error) {
	result := &BookingResult{BookingID: booking.ID.Hex(), Success: true, Booking: booking}
	if booking.IsConfirmed() {
		s.logger.Info("payment already reconciled", "booking_id", result.BookingID, "order_id", booking.OrderID, "source", source)
		return result, nil
	}
	if !s.isStale(booking) {
		s.logger.Info("booking confirmation in flight", "booking_id", result.BookingID, "order_id", booking.OrderID, "source", source)
		return result, nil
	}

	s.logger.Warn("completing stale pending booking", "booking_id", result.BookingID, "order_id", booking.OrderID, "source", source)
	event, err := s.loadEvent(ctx, booking.EventID)
	if err != nil {
		return nil, err
	}
	return s.confirmAndNotify(ctx, booking, event, false)
}

// isStale reports whether a pending booking has outlived the window its
// creator had to confirm it.
func (s *BookingService) isStale(booking *models.Booking) bool {
	return !booking.IsConfirmed() && s.now().Sub(booking.CreatedAt) >= s.cfg.PendingRecoveryAfter
}

// confirmAndNotify generates the pass, confirms the booking and, if this
// call made the transition, delivers the pass. A failed delivery leaves
// the booking confirmed.
func (s *BookingService) confirmAndNotify(ctx context.Context, booking *models.Booking, event *models.Event, created bool) (*BookingResult, error) {
	token := booking.PassToken
	if token == "" {
		var err error
		if token, err = s.encoder.Encode(booking); err != nil {
			return nil, internal("failed to generate pass", err)
		}
	}

	confirmed, transitioned, err := s.bookings.ConfirmBooking(ctx, booking.ID, token)
	if err != nil {
		return nil, internal("failed to confirm booking", err)
	}
	result := &BookingResult{
		BookingID: confirmed.ID.Hex(),
		Success:   true,
		Created:   created,
		Booking:   confirmed,
	}
	if !transitioned {
		return result, nil
	}

	s.publish(ctx, broker.RoutingBookingConfirmed, confirmed)

	p, err := s.encoder.FromToken(confirmed.PassToken)
	if err == nil {
		err = s.deliver(ctx, confirmed, event, p)
	}
	if err != nil {
		s.logger.Error("pass delivery failed", "booking_id", result.BookingID, "email", confirmed.Email, "error", err)
		result.NotifyError = "failed to send pass email"
		return result, nil
	}
	result.Notified = true
	return result, nil
}

func (s *BookingService) deliver(ctx context.Context, booking *models.Booking, event *models.Event, p *pass.Pass) error {
	mail := mailer.PassMail{
		To:      booking.Email,
		Subject: mailer.Subject(event),
		PNG:     p.PNG,
		Event:   event,
	}
	if s.images != nil {
		url, err := s.images.UploadPass(ctx, booking.ID.Hex(), p.DataURL())
		if err != nil {
			s.logger.Warn("pass image upload failed", "booking_id", booking.ID.Hex(), "error", err)
		} else {
			mail.ImageURL = url
		}
	}
	return s.notifier.SendPass(ctx, mail)
}

func (s *BookingService) publish(ctx context.Context, routingKey string, booking *models.Booking) {
	err := s.publisher.Publish(ctx, routingKey, broker.BookingEvent{
		BookingID:  booking.ID.Hex(),
		EventID:    booking.EventID.Hex(),
		AttendeeID: booking.AttendeeID.Hex(),
		NumTickets: booking.NumTickets,
		OrderID:    booking.OrderID,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("booking event publish failed", "routing_key", routingKey, "booking_id", booking.ID.Hex(), "error", err)
	}
}

// RegisterFree books a free event directly. A second registration for
// the same email and event is rejected by the store unless the first one
// was left pending past the recovery window.
func (s *BookingService) RegisterFree(ctx context.Context, in RegisterInput, caller *helpers.Caller) (*BookingResult, error) {
	if in.NumTickets == 0 {
		in.NumTickets = 1
	}
	if err := models.Validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	eventID, err := parseObjectID(in.EventID, "event id")
	if err != nil {
		return nil, err
	}
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsFree() {
		return nil, ErrPaymentRequired
	}

	email := helpers.NormalizeEmail(in.Email)
	hint := AttendeeHint{Email: email, Name: strings.TrimSpace(in.Name), Phone: strings.TrimSpace(in.Phone)}
	if !caller.IsAnonymous() && helpers.NormalizeEmail(caller.Email) == email {
		hint.ID = caller.SubjectID
	}
	resolution, err := s.resolver.Resolve(ctx, hint)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		AttendeeID:      resolution.Attendee.ID,
		EventID:         event.ID,
		Name:            hint.Name,
		Phone:           hint.Phone,
		Email:           email,
		NumTickets:      in.NumTickets,
		RegistrationKey: models.RegistrationKey(event.ID, email),
	}
	if err := s.bookings.InsertBooking(ctx, booking); err != nil {
		if errors.Is(err, models.ErrDuplicateRegistration) {
			return s.retryRegistration(ctx, booking.RegistrationKey, email, event)
		}
		return nil, internal("failed to create booking", err)
	}

	s.logger.Info("free registration created",
		"booking_id", booking.ID.Hex(),
		"event_id", event.ID.Hex(),
		"attendee", resolution.Kind,
	)
	return s.confirmAndNotify(ctx, booking, event, true)
}

// retryRegistration handles a second registration for the same email and
// event. A pending row whose confirmation never happened is finished here;
// anything else is a duplicate.
func (s *BookingService) retryRegistration(ctx context.Context, key, email string, event *models.Event) (*BookingResult, error) {
	existing, err := s.bookings.FindBookingByEmailAndEvent(ctx, email, event.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrAlreadyRegistered
		}
		return nil, internal("failed to load existing registration", err)
	}
	if existing.RegistrationKey != key || !s.isStale(existing) {
		return nil, ErrAlreadyRegistered
	}

	s.logger.Warn("completing stale pending registration", "booking_id", existing.ID.Hex(), "event_id", event.ID.Hex())
	return s.confirmAndNotify(ctx, existing, event, false)
}

func (s *BookingService) findForResend(ctx context.Context, in ResendInput) (*models.Booking, error) {
	var (
		booking *models.Booking
		err     error
	)
	switch {
	case strings.TrimSpace(in.BookingID) != "":
		id, perr := parseObjectID(in.BookingID, "booking id")
		if perr != nil {
			return nil, perr
		}
		booking, err = s.bookings.GetBookingByID(ctx, id)
	case strings.TrimSpace(in.Email) != "" && strings.TrimSpace(in.EventID) != "":
		eventID, perr := parseObjectID(in.EventID, "event id")
		if perr != nil {
			return nil, perr
		}
		booking, err = s.bookings.FindBookingByEmailAndEvent(ctx, helpers.NormalizeEmail(in.Email), eventID)
	default:
		return nil, invalidInput("booking_id or email and event_id are required")
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, internal("failed to load booking", err)
	}
	return booking, nil
}

func canManage(caller *helpers.Caller, booking *models.Booking) bool {
	if caller.IsAdmin() || caller.IsOwner(booking.AttendeeID.Hex()) {
		return true
	}
	return caller.Email != "" && helpers.NormalizeEmail(caller.Email) == booking.Email
}

// storedPass renders the booking's pass, attaching a token first when the
// booking predates one.
func (s *BookingService) storedPass(ctx context.Context, booking *models.Booking) (*models.Booking, *pass.Pass, error) {
	if booking.PassToken == "" {
		token, err := s.encoder.Encode(booking)
		if err != nil {
			return nil, nil, internal("failed to generate pass", err)
		}
		if booking, err = s.bookings.AttachPassToken(ctx, booking.ID, token); err != nil {
			return nil, nil, internal("failed to store pass", err)
		}
	}
	p, err := s.encoder.FromToken(booking.PassToken)
	if err != nil {
		return nil, nil, internal("failed to render pass", err)
	}
	return booking, p, nil
}

// ResendPass mails the stored pass again. Anonymous callers are always
// refused; the caller must own the booking or be an admin.
func (s *BookingService) ResendPass(ctx context.Context, in ResendInput, caller *helpers.Caller) (*BookingResult, error) {
	if caller.IsAnonymous() {
		return nil, ErrUnauthenticated
	}
	booking, err := s.findForResend(ctx, in)
	if err != nil {
		return nil, err
	}
	if !canManage(caller, booking) {
		return nil, ErrForbidden
	}
	if booking.IsCheckedIn {
		return nil, ErrAlreadyCheckedIn
	}
	event, err := s.loadEvent(ctx, booking.EventID)
	if err != nil {
		return nil, err
	}

	if !booking.IsConfirmed() {
		if !s.isStale(booking) {
			return nil, ErrBookingNotConfirmed
		}
		s.logger.Warn("completing stale pending booking on resend", "booking_id", booking.ID.Hex(), "by", caller.SubjectID)
		res, err := s.confirmAndNotify(ctx, booking, event, false)
		if err != nil {
			return nil, err
		}
		if res.NotifyError != "" {
			return nil, newError(KindUpstreamFailure, res.NotifyError, nil)
		}
		if res.Notified {
			return res, nil
		}
		// Confirmed concurrently by someone else; resend what they stored.
		booking = res.Booking
	}

	booking, p, err := s.storedPass(ctx, booking)
	if err != nil {
		return nil, err
	}
	if err := s.deliver(ctx, booking, event, p); err != nil {
		return nil, newError(KindUpstreamFailure, "failed to send pass email", err)
	}

	s.logger.Info("pass resent", "booking_id", booking.ID.Hex(), "by", caller.SubjectID)
	return &BookingResult{BookingID: booking.ID.Hex(), Success: true, Notified: true, Booking: booking}, nil
}

// PassPreview is a stored pass rendered for display. Fetching it sends no
// email.
type PassPreview struct {
	BookingID  string `json:"booking_id"`
	Token      string `json:"token"`
	DataURL    string `json:"qr_code"`
	NumTickets int    `json:"num_tickets"`
	CheckedIn  bool   `json:"is_checked_in"`
}

// PreviewPass returns the stored pass for a booking the caller may manage.
func (s *BookingService) PreviewPass(ctx context.Context, bookingID string, caller *helpers.Caller) (*PassPreview, error) {
	if caller.IsAnonymous() {
		return nil, ErrUnauthenticated
	}
	booking, err := s.findForResend(ctx, ResendInput{BookingID: bookingID})
	if err != nil {
		return nil, err
	}
	if !canManage(caller, booking) {
		return nil, ErrForbidden
	}
	if !booking.IsConfirmed() {
		return nil, ErrBookingNotConfirmed
	}

	booking, p, err := s.storedPass(ctx, booking)
	if err != nil {
		return nil, err
	}
	return &PassPreview{
		BookingID:  booking.ID.Hex(),
		Token:      p.Token,
		DataURL:    p.DataURL(),
		NumTickets: booking.NumTickets,
		CheckedIn:  booking.IsCheckedIn,
	}, nil
}

func (s *BookingService) ListBookings(ctx context.Context, caller *helpers.Caller) ([]*models.Booking, error) {
	if caller.IsAnonymous() {
		return nil, ErrUnauthenticated
	}
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	bookings, err := s.bookings.ListBookings(ctx)
	if err != nil {
		return nil, internal("failed to list bookings", err)
	}
	return bookings, nil
}

func (s *BookingService) MyBookings(ctx context.Context, caller *helpers.Caller) ([]*models.Booking, error) {
	if caller.IsAnonymous() {
		return nil, ErrUnauthenticated
	}
	id, err := primitive.ObjectIDFromHex(caller.SubjectID)
	if err != nil {
		return []*models.Booking{}, nil
	}
	bookings, err := s.bookings.ListBookingsByAttendee(ctx, id)
	if err != nil {
		return nil, internal("failed to list bookings", err)
	}
	return bookings, nil
}
