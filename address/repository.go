package address

import (
	"context"
	"errors"
	"fmt"

	"atelier/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("address not found")

type Repository interface {
	List(ctx context.Context, userID string) ([]models.Address, error)
	Get(ctx context.Context, userID, id string) (*models.Address, error)
	Insert(ctx context.Context, a *models.Address) error
	Delete(ctx context.Context, userID, id string) error
	SetDefault(ctx context.Context, userID, id string) error
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(collection *mongo.Collection) Repository {
	return &mongoRepository{collection: collection}
}

// List returns the user's addresses, newest first.
func (m *mongoRepository) List(ctx context.Context, userID string) ([]models.Address, error) {
	cursor, err := m.collection.Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer cursor.Close(ctx)

	out := []models.Address{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *mongoRepository) Get(ctx context.Context, userID, id string) (*models.Address, error) {
	var a models.Address
	err := m.collection.FindOne(ctx, bson.M{"userId": userID, "id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (m *mongoRepository) Insert(ctx context.Context, a *models.Address) error {
	_, err := m.collection.InsertOne(ctx, a)
	return err
}

func (m *mongoRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"userId": userID, "id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDefault flags id as the default and clears the flag everywhere else.
func (m *mongoRepository) SetDefault(ctx context.Context, userID, id string) error {
	res, err := m.collection.UpdateOne(ctx, bson.M{"userId": userID, "id": id}, bson.M{"$set": bson.M{"isDefault": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	_, err = m.collection.UpdateMany(ctx,
		bson.M{"userId": userID, "id": bson.M{"$ne": id}},
		bson.M{"$set": bson.M{"isDefault": false}},
	)
	return err
}
