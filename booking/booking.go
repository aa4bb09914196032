package booking

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const dateLayout = "2006-01-02"

// Slot is one tailoring appointment window on a given day.
type Slot struct {
	ID        string    `json:"id" bson:"id"`
	Date      string    `json:"date" bson:"date"`
	Start     string    `json:"start" bson:"start"`
	End       string    `json:"end,omitempty" bson:"end,omitempty"`
	Capacity  int       `json:"capacity" bson:"capacity"`
	Label     string    `json:"label,omitempty" bson:"label,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type Booking struct {
	ID        string    `json:"id" bson:"id"`
	SlotID    string    `json:"slotId" bson:"slotId"`
	UserID    string    `json:"userId" bson:"userId"`
	Date      string    `json:"date" bson:"date"`
	Start     string    `json:"start" bson:"start"`
	End       string    `json:"end,omitempty" bson:"end,omitempty"`
	Notes     string    `json:"notes,omitempty" bson:"notes,omitempty"`
	Status    string    `json:"status" bson:"status"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// BookingFilter narrows the admin listing; empty fields match everything.
type BookingFilter struct {
	UserID string
	Date   string
	Status string
}

var ErrNotFound = errors.New("not found")

type Repository interface {
	InsertSlots(ctx context.Context, slots []Slot) error
	GetSlot(ctx context.Context, id string) (*Slot, error)
	ListSlots(ctx context.Context, date string) ([]Slot, error)
	DeleteSlot(ctx context.Context, id string) error

	InsertBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, id string) (*Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]Booking, error)
	CountActiveForSlot(ctx context.Context, slotID string) (int, error)
	HasActiveOn(ctx context.Context, userID, date string) (bool, error)
	SetStatus(ctx context.Context, id, status string) (*Booking, error)
}

type mongoRepository struct {
	slots    *mongo.Collection
	bookings *mongo.Collection
}

func NewMongoRepository(slots, bookings *mongo.Collection) Repository {
	return &mongoRepository{slots: slots, bookings: bookings}
}

var active = bson.M{"$ne": StatusCancelled}

func (r *mongoRepository) InsertSlots(ctx context.Context, slots []Slot) error {
	if len(slots) == 0 {
		return nil
	}
	docs := make([]interface{}, len(slots))
	for i, s := range slots {
		docs[i] = s
	}
	_, err := r.slots.InsertMany(ctx, docs)
	return err
}

func (r *mongoRepository) GetSlot(ctx context.Context, id string) (*Slot, error) {
	var s Slot
	err := r.slots.FindOne(ctx, bson.M{"id": id}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *mongoRepository) ListSlots(ctx context.Context, date string) ([]Slot, error) {
	filter := bson.M{}
	if date != "" {
		filter["date"] = date
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "start", Value: 1}})
	cur, err := r.slots.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	slots := []Slot{}
	if err := cur.All(ctx, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// DeleteSlot also cancels the bookings that pointed at it.
func (r *mongoRepository) DeleteSlot(ctx context.Context, id string) error {
	res, err := r.slots.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	_, err = r.bookings.UpdateMany(ctx,
		bson.M{"slotId": id, "status": active},
		bson.M{"$set": bson.M{"status": StatusCancelled, "updatedAt": time.Now()}},
	)
	return err
}

func (r *mongoRepository) InsertBooking(ctx context.Context, b *Booking) error {
	_, err := r.bookings.InsertOne(ctx, b)
	return err
}

func (r *mongoRepository) GetBooking(ctx context.Context, id string) (*Booking, error) {
	var b Booking
	err := r.bookings.FindOne(ctx, bson.M{"id": id}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *mongoRepository) ListBookings(ctx context.Context, f BookingFilter) ([]Booking, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.Date != "" {
		filter["date"] = f.Date
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "start", Value: 1}})
	cur, err := r.bookings.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	list := []Booking{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *mongoRepository) CountActiveForSlot(ctx context.Context, slotID string) (int, error) {
	n, err := r.bookings.CountDocuments(ctx, bson.M{"slotId": slotID, "status": active})
	return int(n), err
}

func (r *mongoRepository) HasActiveOn(ctx context.Context, userID, date string) (bool, error) {
	n, err := r.bookings.CountDocuments(ctx, bson.M{"userId": userID, "date": date, "status": active})
	return n > 0, err
}

func (r *mongoRepository) SetStatus(ctx context.Context, id, status string) (*Booking, error) {
	res := r.bookings.FindOneAndUpdate(ctx,
		bson.M{"id": id},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var updated Booking
	if err := res.Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}
