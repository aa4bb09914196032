package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"atelier/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound         = errors.New("order not found")
	ErrStatusChanged    = errors.New("order status changed concurrently")
	ErrDuplicateID      = errors.New("order id already taken")
	ErrGatewayOrderUsed = errors.New("gateway order already settled an order")
)

type Repository interface {
	Insert(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, orderID string) (*models.Order, error)
	List(ctx context.Context, filter Filter) ([]models.Order, error)
	Transition(ctx context.Context, orderID, from string, change models.StatusChange) error
	FindByGatewayOrder(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	SetPayment(ctx context.Context, orderID, status, settledBy, paymentID string) error
}

// Filter selects orders for listing. Empty fields match everything.
type Filter struct {
	UserID string
	Status string
	Skip   int64
	Limit  int64
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(collection *mongo.Collection) Repository {
	return &mongoRepository{collection: collection}
}

func (m *mongoRepository) Insert(ctx context.Context, o *models.Order) error {
	_, err := m.collection.InsertOne(ctx, o)
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "gateway.orderId"):
		return ErrGatewayOrderUsed
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicateID
	}
	return fmt.Errorf("insert order: %w", err)
}

func (m *mongoRepository) Get(ctx context.Context, orderID string) (*models.Order, error) {
	return m.findOne(ctx, bson.M{"orderId": orderID})
}

func (m *mongoRepository) FindByGatewayOrder(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return m.findOne(ctx, bson.M{"gateway.orderId": gatewayOrderID})
}

func (m *mongoRepository) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var o models.Order
	err := m.collection.FindOne(ctx, filter).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (m *mongoRepository) List(ctx context.Context, f Filter) ([]models.Order, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(f.Skip).
		SetLimit(f.Limit)

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer cursor.Close(ctx)

	out := []models.Order{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Transition moves the order to change.Status only if it is still in from.
func (m *mongoRepository) Transition(ctx context.Context, orderID, from string, change models.StatusChange) error {
	res, err := m.collection.UpdateOne(ctx,
		bson.M{"orderId": orderID, "status": from},
		bson.M{
			"$set":  bson.M{"status": change.Status, "updatedAt": change.At},
			"$push": bson.M{"history": change},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (m *mongoRepository) SetPayment(ctx context.Context, orderID, status, settledBy, paymentID string) error {
	set := bson.M{"paymentStatus": status, "updatedAt": time.Now()}
	if settledBy != "" {
		set["settledBy"] = settledBy
	}
	if paymentID != "" {
		set["gateway.paymentId"] = paymentID
	}
	_, err := m.collection.UpdateOne(ctx, bson.M{"orderId": orderID}, bson.M{"$set": set})
	return err
}
