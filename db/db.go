package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store groups the collections used by the storefront. It is built once in
// main and handed to each feature package.
type Store struct {
	Client *mongo.Client

	ProductsCollection    *mongo.Collection
	CartsCollection       *mongo.Collection
	WishlistsCollection   *mongo.Collection
	AddressesCollection   *mongo.Collection
	OrdersCollection      *mongo.Collection
	SlotCollection        *mongo.Collection
	BookingsCollection    *mongo.Collection
	ReviewsCollection     *mongo.Collection
	MessagesCollection    *mongo.Collection
	ChatCollection        *mongo.Collection
	CouponCollection      *mongo.Collection
	BannerCollection      *mongo.Collection
	IdempotencyCollection *mongo.Collection
}

// Connect dials MongoDB, pings it and binds every collection.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return bind(client, database), nil
}

func bind(client *mongo.Client, database string) *Store {
	d := client.Database(database)
	return &Store{
		Client:                client,
		ProductsCollection:    d.Collection("products"),
		CartsCollection:       d.Collection("carts"),
		WishlistsCollection:   d.Collection("wishlists"),
		AddressesCollection:   d.Collection("addresses"),
		OrdersCollection:      d.Collection("orders"),
		SlotCollection:        d.Collection("slots"),
		BookingsCollection:    d.Collection("bookings"),
		ReviewsCollection:     d.Collection("reviews"),
		MessagesCollection:    d.Collection("messages"),
		ChatCollection:        d.Collection("chatmessages"),
		CouponCollection:      d.Collection("coupons"),
		BannerCollection:      d.Collection("banners"),
		IdempotencyCollection: d.Collection("idempotency"),
	}
}

// EnsureIndexes creates the unique and TTL indexes the repositories rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.ProductsCollection, []mongo.IndexModel{
			{Keys: bson.M{"productid": 1}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
		{s.CartsCollection, []mongo.IndexModel{
			{Keys: bson.M{"userId": 1}, Options: options.Index().SetUnique(true)},
		}},
		{s.WishlistsCollection, []mongo.IndexModel{
			{Keys: bson.M{"userId": 1}, Options: options.Index().SetUnique(true)},
		}},
		{s.AddressesCollection, []mongo.IndexModel{
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
		{s.OrdersCollection, []mongo.IndexModel{
			{Keys: bson.M{"orderId": 1}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			// one gateway order settles at most one order
			{Keys: bson.M{"gateway.orderId": 1}, Options: options.Index().SetUnique(true).SetSparse(true)},
		}},
		{s.SlotCollection, []mongo.IndexModel{
			{Keys: bson.M{"id": 1}, Options: options.Index().SetUnique(true)},
			{Keys: bson.M{"date": 1}},
		}},
		{s.BookingsCollection, []mongo.IndexModel{
			{Keys: bson.M{"id": 1}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: 1}}},
		}},
		{s.ReviewsCollection, []mongo.IndexModel{
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "productId", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{s.MessagesCollection, []mongo.IndexModel{
			{Keys: bson.M{"id": 1}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "read", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
		{s.ChatCollection, []mongo.IndexModel{
			{Keys: bson.D{{Key: "room", Value: 1}, {Key: "timestamp", Value: -1}}},
		}},
		{s.CouponCollection, []mongo.IndexModel{
			{Keys: bson.M{"code": 1}, Options: options.Index().SetUnique(true)},
		}},
		{s.BannerCollection, []mongo.IndexModel{
			{Keys: bson.M{"id": 1}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "position", Value: 1}}},
		}},
		{s.IdempotencyCollection, []mongo.IndexModel{
			{Keys: bson.M{"key": 1}, Options: options.Index().SetUnique(true).SetName("unique_key")},
			{Keys: bson.M{"expires_at": 1}, Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at")},
		}},
	}

	for _, ix := range indexes {
		if _, err := ix.coll.Indexes().CreateMany(ctx, ix.models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", ix.coll.Name(), err)
		}
	}
	return nil
}

// Disconnect closes the underlying client.
func (s *Store) Disconnect(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

// IsDuplicateKey reports whether err is a Mongo unique-index violation.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
