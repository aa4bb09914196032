package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atelier/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrCartNotFound = errors.New("cart not found")

type Repository interface {
	Get(ctx context.Context, userID string) (*models.Cart, error)
	Save(ctx context.Context, c *models.Cart) error
	RemoveItem(ctx context.Context, userID, key string) error
	Clear(ctx context.Context, userID string) error
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(collection *mongo.Collection) Repository {
	return &mongoRepository{collection: collection}
}

// storedCart keeps lines loose so carts written by older clients, with the
// product id under other keys, still load.
type storedCart struct {
	UserID    string    `bson:"userId"`
	Items     []bson.M  `bson:"items"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (m *mongoRepository) Get(ctx context.Context, userID string) (*models.Cart, error) {
	var doc storedCart
	err := m.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	c := &models.Cart{UserID: doc.UserID, UpdatedAt: doc.UpdatedAt, Items: make([]models.CartItem, 0, len(doc.Items))}
	for _, raw := range doc.Items {
		c.Items = append(c.Items, models.NormalizeCartItem(raw))
	}
	return c, nil
}

func (m *mongoRepository) Save(ctx context.Context, c *models.Cart) error {
	c.UpdatedAt = time.Now()
	update := bson.M{"$set": bson.M{"items": c.Items, "updatedAt": c.UpdatedAt}}
	_, err := m.collection.UpdateOne(ctx, bson.M{"userId": c.UserID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// RemoveItem pulls the line with key. A missing cart or line is not an error.
func (m *mongoRepository) RemoveItem(ctx context.Context, userID, key string) error {
	update := bson.M{
		"$pull": bson.M{"items": lineFilter(key)},
		"$set":  bson.M{"updatedAt": time.Now()},
	}
	if _, err := m.collection.UpdateOne(ctx, bson.M{"userId": userID}, update); err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

func (m *mongoRepository) Clear(ctx context.Context, userID string) error {
	update := bson.M{"$set": bson.M{"items": bson.A{}, "updatedAt": time.Now()}}
	if _, err := m.collection.UpdateOne(ctx, bson.M{"userId": userID}, update); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// lineFilter matches one cart line. Empty variant fields also match lines
// where the field was never written.
func lineFilter(key string) bson.M {
	productID, size, color := models.SplitItemKey(key)
	return bson.M{
		"productId": optional(productID),
		"size":      optional(size),
		"color":     optional(color),
	}
}

func optional(v string) interface{} {
	if v == "" {
		return bson.M{"$in": bson.A{nil, ""}}
	}
	return v
}
