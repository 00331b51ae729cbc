package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
)

var Validate = validator.New()

const (
	DefaultDbName     = "eventpass"
	AttendeesColName  = "attendees"
	EventsColName     = "events"
	BookingsColName   = "bookings"
	OrderIndexName    = "uniq_order_id"
	RegistrationIndex = "uniq_registration_key"
)

var (
	ErrNotFound              = errors.New("record not found")
	ErrDuplicateOrder        = errors.New("a booking already exists for this order")
	ErrDuplicateRegistration = errors.New("a booking already exists for this email and event")
	ErrAlreadyCheckedIn      = errors.New("booking already checked in")
	ErrNotConfirmed          = errors.New("booking is not confirmed")
)

type MongodbRepo struct {
	mongodbClient *mongo.Client
	dbName        string
}

func MongodbNewRepo(mongodbClient *mongo.Client, dbName string) *MongodbRepo {
	if dbName == "" {
		dbName = DefaultDbName
	}
	return &MongodbRepo{
		mongodbClient: mongodbClient,
		dbName:        dbName,
	}
}

func (mdb *MongodbRepo) GetCollection(ctx context.Context, colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}

// EnsureIndexes creates the indexes the booking flow relies on for
// uniqueness. It is safe to call on every start.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	bookings, err := mdb.GetCollection(ctx, BookingsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}
	if _, err := bookings.Indexes().CreateMany(ctx, bookingIndexes()); err != nil {
		return fmt.Errorf("error creating booking indexes: %w", err)
	}

	attendees, err := mdb.GetCollection(ctx, AttendeesColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}
	if _, err := attendees.Indexes().CreateMany(ctx, attendeeIndexes()); err != nil {
		return fmt.Errorf("error creating attendee indexes: %w", err)
	}
	return nil
}
