package models

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AttendeeRepo interface {
	GetAttendeeByID(ctx context.Context, id primitive.ObjectID) (*Attendee, error)
	FindAttendeeByEmail(ctx context.Context, email string) (*Attendee, error)
	// UpsertAttendeeByEmail returns the attendee stored for attendee.Email,
	// inserting attendee when none exists. created reports the insert.
	UpsertAttendeeByEmail(ctx context.Context, attendee *Attendee) (stored *Attendee, created bool, err error)
}

func attendeeIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("email_created_at"),
		},
	}
}

func (mdb *MongodbRepo) GetAttendeeByID(ctx context.Context, id primitive.ObjectID) (*Attendee, error) {
	col, err := mdb.GetCollection(ctx, AttendeesColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	var attendee Attendee
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&attendee); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding attendee: %w", err)
	}
	return &attendee, nil
}

// FindAttendeeByEmail returns the oldest attendee registered with email.
func (mdb *MongodbRepo) FindAttendeeByEmail(ctx context.Context, email string) (*Attendee, error) {
	col, err := mdb.GetCollection(ctx, AttendeesColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
	var attendee Attendee
	if err := col.FindOne(ctx, bson.M{"email": email}, opts).Decode(&attendee); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding attendee by email: %w", err)
	}
	return &attendee, nil
}

func (mdb *MongodbRepo) UpsertAttendeeByEmail(ctx context.Context, attendee *Attendee) (*Attendee, bool, error) {
	col, err := mdb.GetCollection(ctx, AttendeesColName)
	if err != nil {
		return nil, false, fmt.Errorf("error getting collection: %w", err)
	}
	attendee.BeforeCreate()

	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        attendee.ID,
			"name":       attendee.Name,
			"phone":      attendee.Phone,
			"role":       attendee.Role,
			"created_at": attendee.CreatedAt,
			"updated_at": attendee.UpdatedAt,
		},
	}
	res, err := col.UpdateOne(ctx, bson.M{"email": attendee.Email}, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, false, fmt.Errorf("error upserting attendee: %w", err)
	}
	if res.UpsertedID != nil {
		return attendee, true, nil
	}

	stored, err := mdb.FindAttendeeByEmail(ctx, attendee.Email)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}
