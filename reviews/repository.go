package reviews

import (
	"context"
	"errors"
	"time"

	"atelier/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound        = errors.New("review not found")
	ErrAlreadyReviewed = errors.New("you have already reviewed this product")
)

type Repository interface {
	Insert(ctx context.Context, r *models.Review) error
	Get(ctx context.Context, reviewID string) (*models.Review, error)
	List(ctx context.Context, productID string, skip, limit int64) ([]models.Review, error)
	Update(ctx context.Context, reviewID string, rating int, comment string) (*models.Review, error)
	Delete(ctx context.Context, reviewID string) error
	// Stats returns the mean rating and number of reviews for a product.
	Stats(ctx context.Context, productID string) (float64, int, error)
}

type mongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(coll *mongo.Collection) Repository {
	return &mongoRepository{coll: coll}
}

func (m *mongoRepository) Insert(ctx context.Context, r *models.Review) error {
	_, err := m.coll.InsertOne(ctx, r)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyReviewed
	}
	return err
}

func (m *mongoRepository) Get(ctx context.Context, reviewID string) (*models.Review, error) {
	var r models.Review
	err := m.coll.FindOne(ctx, bson.M{"reviewid": reviewID}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (m *mongoRepository) List(ctx context.Context, productID string, skip, limit int64) ([]models.Review, error) {
	opts := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := m.coll.Find(ctx, bson.M{"productId": productID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	list := []models.Review{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *mongoRepository) Update(ctx context.Context, reviewID string, rating int, comment string) (*models.Review, error) {
	res := m.coll.FindOneAndUpdate(ctx,
		bson.M{"reviewid": reviewID},
		bson.M{"$set": bson.M{"rating": rating, "comment": comment, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var r models.Review
	if err := res.Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (m *mongoRepository) Delete(ctx context.Context, reviewID string) error {
	res, err := m.coll.DeleteOne(ctx, bson.M{"reviewid": reviewID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *mongoRepository) Stats(ctx context.Context, productID string) (float64, int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"productId": productID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"avg":   bson.M{"$avg": "$rating"},
			"count": bson.M{"$sum": 1},
		}}},
	}
	cur, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, err
	}
	defer cur.Close(ctx)

	var out []struct {
		Avg   float64 `bson:"avg"`
		Count int     `bson:"count"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return 0, 0, err
	}
	if len(out) == 0 {
		return 0, 0, nil
	}
	return out[0].Avg, out[0].Count, nil
}
