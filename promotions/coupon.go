package promotions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidCoupon = errors.New("invalid coupon")
	ErrDuplicateCode = errors.New("coupon code already exists")
)

type Coupon struct {
	Code        string    `bson:"code" json:"code"`
	Discount    float64   `bson:"discount" json:"discount"` // % value e.g. 10 means 10%
	MinOrder    float64   `bson:"minOrder,omitempty" json:"minOrder,omitempty"`
	MaxDiscount float64   `bson:"maxDiscount,omitempty" json:"maxDiscount,omitempty"`
	ExpiresAt   time.Time `bson:"expiresAt" json:"expiresAt"`
	Active      bool      `bson:"active" json:"active"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

type CouponRequest struct {
	Code string  `json:"code"`
	Cart float64 `json:"cart"` // cart subtotal
}

type CouponResponse struct {
	Valid    bool    `json:"valid"`
	Discount float64 `json:"discount"` // absolute amount, not %
	Message  string  `json:"message"`
}

type CouponStore interface {
	Get(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Insert(ctx context.Context, c *Coupon) error
	Replace(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, code string) error
}

type mongoCoupons struct {
	coll *mongo.Collection
}

func NewMongoCoupons(coll *mongo.Collection) CouponStore {
	return &mongoCoupons{coll: coll}
}

func (m *mongoCoupons) Get(ctx context.Context, code string) (*Coupon, error) {
	var c Coupon
	err := m.coll.FindOne(ctx, bson.M{"code": code}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (m *mongoCoupons) List(ctx context.Context) ([]Coupon, error) {
	cur, err := m.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	list := []Coupon{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *mongoCoupons) Insert(ctx context.Context, c *Coupon) error {
	_, err := m.coll.InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateCode
	}
	return err
}

func (m *mongoCoupons) Replace(ctx context.Context, c *Coupon) error {
	res, err := m.coll.ReplaceOne(ctx, bson.M{"code": c.Code}, c)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *mongoCoupons) Delete(ctx context.Context, code string) error {
	res, err := m.coll.DeleteOne(ctx, bson.M{"code": code})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.TrimSpace(strings.ToLower(code))
}

type Coupons struct {
	store CouponStore
	now   func() time.Time
}

func NewCoupons(store CouponStore) *Coupons {
	return &Coupons{store: store, now: time.Now}
}

// Validate never fails for a bad code; the reason goes in the response
// message so the cart page can show it.
func (s *Coupons) Validate(ctx context.Context, req CouponRequest) (CouponResponse, error) {
	code := normalizeCode(req.Code)
	if code == "" {
		return CouponResponse{Valid: false, Message: "No coupon provided"}, nil
	}

	coupon, err := s.store.Get(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return CouponResponse{Valid: false, Message: "Coupon not found"}, nil
	}
	if err != nil {
		return CouponResponse{}, err
	}

	switch {
	case !coupon.Active:
		return CouponResponse{Valid: false, Message: "Coupon inactive"}, nil
	case s.now().After(coupon.ExpiresAt):
		return CouponResponse{Valid: false, Message: "Coupon expired"}, nil
	case req.Cart < coupon.MinOrder:
		return CouponResponse{Valid: false, Message: fmt.Sprintf("Add items worth %.2f more to use this coupon", coupon.MinOrder-req.Cart)}, nil
	}

	discount := decimal.Zero
	if req.Cart > 0 {
		discount = decimal.NewFromFloat(req.Cart).
			Mul(decimal.NewFromFloat(coupon.Discount)).
			Div(decimal.NewFromInt(100)).
			Round(2)
	}
	if coupon.MaxDiscount > 0 {
		discount = decimal.Min(discount, decimal.NewFromFloat(coupon.MaxDiscount))
	}

	return CouponResponse{
		Valid:    true,
		Discount: discount.InexactFloat64(),
		Message:  "Coupon applied successfully",
	}, nil
}

func (s *Coupons) check(c *Coupon) error {
	c.Code = normalizeCode(c.Code)
	if c.Code == "" || c.Discount <= 0 || c.Discount > 100 || c.MinOrder < 0 || c.MaxDiscount < 0 {
		return fmt.Errorf("%w: code and a discount between 0 and 100 are required", ErrInvalidCoupon)
	}
	if c.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: expiresAt is required", ErrInvalidCoupon)
	}
	return nil
}

func (s *Coupons) List(ctx context.Context) ([]Coupon, error) {
	return s.store.List(ctx)
}

func (s *Coupons) Create(ctx context.Context, c Coupon) (*Coupon, error) {
	if err := s.check(&c); err != nil {
		return nil, err
	}
	c.CreatedAt = s.now()
	if err := s.store.Insert(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Update replaces the coupon named by code; the code itself cannot change.
func (s *Coupons) Update(ctx context.Context, code string, c Coupon) (*Coupon, error) {
	existing, err := s.store.Get(ctx, normalizeCode(code))
	if err != nil {
		return nil, err
	}
	c.Code = existing.Code
	if err := s.check(&c); err != nil {
		return nil, err
	}
	c.CreatedAt = existing.CreatedAt
	if err := s.store.Replace(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Coupons) Delete(ctx context.Context, code string) error {
	return s.store.Delete(ctx, normalizeCode(code))
}
