package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func bookingIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Idempotency anchor for payment reconciliation.
		{
			Keys:    bson.D{{Key: "order_id", Value: 1}},
			Options: options.Index().SetName(OrderIndexName).SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "registration_key", Value: 1}},
			Options: options.Index().SetName(RegistrationIndex).SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "attendee_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("attendee_created_at"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "event_id", Value: 1}},
			Options: options.Index().SetName("email_event"),
		},
	}
}

// RegistrationKey builds the value stored on free registrations so the
// unique index rejects a second booking for the same email and event.
func RegistrationKey(eventID primitive.ObjectID, email string) string {
	return eventID.Hex() + ":" + strings.ToLower(strings.TrimSpace(email))
}

func (mdb *MongodbRepo) InsertBooking(ctx context.Context, booking *Booking) error {
	if err := Validate.Struct(booking); err != nil {
		return fmt.Errorf("invalid booking: %w", err)
	}
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}
	booking.BeforeCreate()

	if _, err := col.InsertOne(ctx, booking); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			switch {
			case strings.Contains(err.Error(), OrderIndexName):
				return ErrDuplicateOrder
			case strings.Contains(err.Error(), RegistrationIndex):
				return ErrDuplicateRegistration
			}
		}
		return fmt.Errorf("error inserting booking: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) findOneBooking(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*Booking, error) {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	var booking Booking
	if err := col.FindOne(ctx, filter, opts...).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding booking: %w", err)
	}
	return &booking, nil
}

func (mdb *MongodbRepo) GetBookingByID(ctx context.Context, id primitive.ObjectID) (*Booking, error) {
	return mdb.findOneBooking(ctx, bson.M{"_id": id})
}

func (mdb *MongodbRepo) GetBookingByOrderID(ctx context.Context, orderID string) (*Booking, error) {
	return mdb.findOneBooking(ctx, bson.M{"order_id": orderID})
}

// FindBookingByEmailAndEvent returns the most recent booking for the pair.
func (mdb *MongodbRepo) FindBookingByEmailAndEvent(ctx context.Context, email string, eventID primitive.ObjectID) (*Booking, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return mdb.findOneBooking(ctx, bson.M{"email": email, "event_id": eventID}, opts)
}

// updateBooking runs a conditional FindOneAndUpdate. matched is false when
// the filter selected nothing.
func (mdb *MongodbRepo) updateBooking(ctx context.Context, filter, update bson.M) (*Booking, bool, error) {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return nil, false, fmt.Errorf("error getting collection: %w", err)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var booking Booking
	err = col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("error updating booking: %w", err)
	}
	return &booking, true, nil
}

func (mdb *MongodbRepo) ConfirmBooking(ctx context.Context, id primitive.ObjectID, passToken string) (*Booking, bool, error) {
	filter := bson.M{"_id": id, "status": StatusPending}
	update := bson.M{
		"$set": bson.M{
			"status":     StatusConfirmed,
			"pass_token": passToken,
			"updated_at": time.Now().UTC(),
		},
	}
	booking, matched, err := mdb.updateBooking(ctx, filter, update)
	if err != nil || matched {
		return booking, matched, err
	}

	current, err := mdb.GetBookingByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (mdb *MongodbRepo) AttachPassToken(ctx context.Context, id primitive.ObjectID, passToken string) (*Booking, error) {
	filter := bson.M{"_id": id, "pass_token": bson.M{"$exists": false}}
	update := bson.M{
		"$set": bson.M{
			"pass_token": passToken,
			"updated_at": time.Now().UTC(),
		},
	}
	booking, matched, err := mdb.updateBooking(ctx, filter, update)
	if err != nil || matched {
		return booking, err
	}
	return mdb.GetBookingByID(ctx, id)
}

func (mdb *MongodbRepo) MarkCheckedIn(ctx context.Context, id primitive.ObjectID, by string, at time.Time) (*Booking, error) {
	filter := bson.M{
		"_id":           id,
		"status":        StatusConfirmed,
		"is_checked_in": false,
	}
	update := bson.M{
		"$set": bson.M{
			"is_checked_in": true,
			"checked_in_at": at,
			"checked_in_by": by,
			"updated_at":    at,
		},
	}
	booking, matched, err := mdb.updateBooking(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if matched {
		return booking, nil
	}

	// Nothing matched: work out why.
	current, err := mdb.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsCheckedIn {
		return nil, ErrAlreadyCheckedIn
	}
	return nil, ErrNotConfirmed
}

func (mdb *MongodbRepo) findBookings(ctx context.Context, filter bson.M) ([]*Booking, error) {
	col, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := make([]*Booking, 0)
	for cursor.Next(ctx) {
		var booking Booking
		if err := cursor.Decode(&booking); err != nil {
			return nil, fmt.Errorf("error decoding booking: %w", err)
		}
		bookings = append(bookings, &booking)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return bookings, nil
}

func (mdb *MongodbRepo) ListBookings(ctx context.Context) ([]*Booking, error) {
	return mdb.findBookings(ctx, bson.M{})
}

func (mdb *MongodbRepo) ListBookingsByAttendee(ctx context.Context, attendeeID primitive.ObjectID) ([]*Booking, error) {
	return mdb.findBookings(ctx, bson.M{"attendee_id": attendeeID})
}
