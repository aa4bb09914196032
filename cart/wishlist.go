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

type WishlistStore interface {
	Get(ctx context.Context, userID string) (*models.Wishlist, error)
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
}

type mongoWishlist struct {
	collection *mongo.Collection
}

func NewMongoWishlist(collection *mongo.Collection) WishlistStore {
	return &mongoWishlist{collection: collection}
}

func (m *mongoWishlist) Get(ctx context.Context, userID string) (*models.Wishlist, error) {
	var wl models.Wishlist
	err := m.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&wl)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.Wishlist{UserID: userID, ProductIDs: []string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wishlist: %w", err)
	}
	return &wl, nil
}

func (m *mongoWishlist) Add(ctx context.Context, userID, productID string) error {
	update := bson.M{
		"$addToSet": bson.M{"productIds": productID},
		"$set":      bson.M{"updatedAt": time.Now()},
	}
	_, err := m.collection.UpdateOne(ctx, bson.M{"userId": userID}, update, options.Update().SetUpsert(true))
	return err
}

func (m *mongoWishlist) Remove(ctx context.Context, userID, productID string) error {
	update := bson.M{
		"$pull": bson.M{"productIds": productID},
		"$set":  bson.M{"updatedAt": time.Now()},
	}
	_, err := m.collection.UpdateOne(ctx, bson.M{"userId": userID}, update)
	return err
}

type Wishlists struct {
	store    WishlistStore
	products Products
	carts    *Service
}

func NewWishlists(store WishlistStore, products Products, carts *Service) *Wishlists {
	return &Wishlists{store: store, products: products, carts: carts}
}

// List returns the wished products that still exist in the catalog.
func (w *Wishlists) List(ctx context.Context, userID string) ([]models.Product, error) {
	wl, err := w.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Product, 0, len(wl.ProductIDs))
	for _, id := range wl.ProductIDs {
		p, err := w.products.Get(ctx, id)
		if err != nil || p == nil {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (w *Wishlists) Add(ctx context.Context, userID, productID string) error {
	if productID == "" {
		return ErrMissingProductID
	}
	if p, err := w.products.Get(ctx, productID); err != nil || p == nil {
		return ErrUnknownProduct
	}
	return w.store.Add(ctx, userID, productID)
}

func (w *Wishlists) Remove(ctx context.Context, userID, productID string) error {
	return w.store.Remove(ctx, userID, productID)
}

// MoveToCart adds one unit to the cart and drops the product from the
// wishlist. The wishlist is left alone if the cart refuses the line.
func (w *Wishlists) MoveToCart(ctx context.Context, userID, productID, size, color string) (*models.Cart, error) {
	c, err := w.carts.Add(ctx, userID, map[string]any{
		"productId": productID,
		"size":      size,
		"color":     color,
		"quantity":  1,
	})
	if err != nil {
		return nil, err
	}
	if err := w.store.Remove(ctx, userID, productID); err != nil {
		return nil, err
	}
	return c, nil
}
