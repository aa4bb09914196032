package products

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"atelier/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ListQuery narrows the catalog listing.
type ListQuery struct {
	Category        string `json:"category,omitempty"`
	Search          string `json:"search,omitempty"`
	Skip            int64  `json:"skip"`
	Limit           int64  `json:"limit"`
	IncludeInactive bool   `json:"includeInactive,omitempty"`
}

type Repository interface {
	List(ctx context.Context, q ListQuery) ([]models.Product, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	FindMany(ctx context.Context, ids []string) ([]models.Product, error)
	Insert(ctx context.Context, p *models.Product) error
	Replace(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id string) error
	IncStock(ctx context.Context, id string, delta int) (*models.Product, error)
	SetRating(ctx context.Context, id string, rating float64, count int) error
	LowStock(ctx context.Context, threshold int) ([]models.Product, error)
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(collection *mongo.Collection) Repository {
	return &mongoRepository{collection: collection}
}

func listFilter(q ListQuery) bson.M {
	filter := bson.M{}
	if !q.IncludeInactive {
		filter["active"] = true
	}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.Search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(q.Search), "$options": "i"}
	}
	return filter
}

func (m *mongoRepository) List(ctx context.Context, q ListQuery) ([]models.Product, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(q.Skip).
		SetLimit(q.Limit)

	cursor, err := m.collection.Find(ctx, listFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer cursor.Close(ctx)

	out := []models.Product{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return out, nil
}

func (m *mongoRepository) Get(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := m.collection.FindOne(ctx, bson.M{"productid": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *mongoRepository) FindMany(ctx context.Context, ids []string) ([]models.Product, error) {
	cursor, err := m.collection.Find(ctx, bson.M{"productid": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Product
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *mongoRepository) Insert(ctx context.Context, p *models.Product) error {
	_, err := m.collection.InsertOne(ctx, p)
	return err
}

func (m *mongoRepository) Replace(ctx context.Context, p *models.Product) error {
	res, err := m.collection.ReplaceOne(ctx, bson.M{"productid": p.ProductID}, p)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *mongoRepository) Delete(ctx context.Context, id string) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"productid": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncStock adds delta to the stock. A decrement never takes stock below 0.
func (m *mongoRepository) IncStock(ctx context.Context, id string, delta int) (*models.Product, error) {
	filter := bson.M{"productid": id}
	if delta < 0 {
		filter["stock"] = bson.M{"$gte": -delta}
	}
	update := bson.M{
		"$inc": bson.M{"stock": delta},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p models.Product
	err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := m.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInsufficientStock
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *mongoRepository) SetRating(ctx context.Context, id string, rating float64, count int) error {
	_, err := m.collection.UpdateOne(ctx, bson.M{"productid": id}, bson.M{"$set": bson.M{
		"rating":      rating,
		"reviewCount": count,
	}})
	return err
}

func (m *mongoRepository) LowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	cursor, err := m.collection.Find(ctx, bson.M{"active": true, "stock": bson.M{"$lte": threshold}},
		options.Find().SetSort(bson.D{{Key: "stock", Value: 1}}).SetLimit(50))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.Product{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
