package promotions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"atelier/utils"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrInvalidBanner = errors.New("invalid banner")

type Banner struct {
	ID        string    `json:"id" bson:"id"`
	Title     string    `json:"title" bson:"title"`
	Subtitle  string    `json:"subtitle,omitempty" bson:"subtitle,omitempty"`
	ImageURL  string    `json:"imageUrl" bson:"imageUrl"`
	Link      string    `json:"link,omitempty" bson:"link,omitempty"`
	Position  int       `json:"position" bson:"position"`
	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

type BannerStore interface {
	List(ctx context.Context, activeOnly bool) ([]Banner, error)
	Get(ctx context.Context, id string) (*Banner, error)
	Insert(ctx context.Context, b *Banner) error
	Replace(ctx context.Context, b *Banner) error
	Delete(ctx context.Context, id string) error
}

type mongoBanners struct {
	coll *mongo.Collection
}

func NewMongoBanners(coll *mongo.Collection) BannerStore {
	return &mongoBanners{coll: coll}
}

func (m *mongoBanners) List(ctx context.Context, activeOnly bool) ([]Banner, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "createdAt", Value: -1}})
	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	list := []Banner{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *mongoBanners) Get(ctx context.Context, id string) (*Banner, error) {
	var b Banner
	err := m.coll.FindOne(ctx, bson.M{"id": id}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (m *mongoBanners) Insert(ctx context.Context, b *Banner) error {
	_, err := m.coll.InsertOne(ctx, b)
	return err
}

func (m *mongoBanners) Replace(ctx context.Context, b *Banner) error {
	res, err := m.coll.ReplaceOne(ctx, bson.M{"id": b.ID}, b)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *mongoBanners) Delete(ctx context.Context, id string) error {
	res, err := m.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

const activeBannersKey = "banners:active"

// Banners serves the home page carousel. The public list is cached in Redis
// and dropped on every admin change.
type Banners struct {
	store BannerStore
	cache *redis.Client
	ttl   time.Duration
}

func NewBanners(store BannerStore, cache *redis.Client, ttl time.Duration) *Banners {
	return &Banners{store: store, cache: cache, ttl: ttl}
}

func (s *Banners) Active(ctx context.Context) ([]Banner, error) {
	if data, err := s.cache.Get(ctx, activeBannersKey).Bytes(); err == nil {
		var list []Banner
		if json.Unmarshal(data, &list) == nil {
			return list, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("banner cache read failed: %v", err)
	}

	list, err := s.store.List(ctx, true)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(list); err == nil {
		if err := s.cache.Set(ctx, activeBannersKey, data, s.ttl).Err(); err != nil {
			log.Printf("banner cache write failed: %v", err)
		}
	}
	return list, nil
}

func (s *Banners) All(ctx context.Context) ([]Banner, error) {
	return s.store.List(ctx, false)
}

func (s *Banners) invalidate(ctx context.Context) {
	if err := s.cache.Del(ctx, activeBannersKey).Err(); err != nil {
		log.Printf("banner cache invalidate failed: %v", err)
	}
}

func checkBanner(b *Banner) error {
	b.Title = strings.TrimSpace(b.Title)
	b.ImageURL = strings.TrimSpace(b.ImageURL)
	if b.Title == "" || b.ImageURL == "" {
		return fmt.Errorf("%w: title and imageUrl are required", ErrInvalidBanner)
	}
	if b.Position < 0 {
		return fmt.Errorf("%w: position must not be negative", ErrInvalidBanner)
	}
	return nil
}

func (s *Banners) Create(ctx context.Context, b Banner) (*Banner, error) {
	if err := checkBanner(&b); err != nil {
		return nil, err
	}
	now := time.Now()
	b.ID = utils.GetUUID()
	b.CreatedAt, b.UpdatedAt = now, now
	if err := s.store.Insert(ctx, &b); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return &b, nil
}

func (s *Banners) Update(ctx context.Context, id string, b Banner) (*Banner, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkBanner(&b); err != nil {
		return nil, err
	}
	b.ID = existing.ID
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = time.Now()
	if err := s.store.Replace(ctx, &b); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return &b, nil
}

func (s *Banners) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}
