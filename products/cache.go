package products

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"atelier/models"

	"github.com/redis/go-redis/v9"
)

const versionKey = "products:version"

// Cache holds catalog listings and single products. Listings are keyed by a
// version counter, so one INCR retires every cached page at once.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) listKey(ctx context.Context, q ListQuery) (string, error) {
	version, err := c.client.Get(ctx, versionKey).Result()
	if errors.Is(err, redis.Nil) {
		version = "0"
	} else if err != nil {
		return "", err
	}
	raw, _ := json.Marshal(q)
	sum := sha1.Sum(raw)
	return fmt.Sprintf("products:list:%s:%s", version, hex.EncodeToString(sum[:8])), nil
}

func (c *Cache) GetList(ctx context.Context, q ListQuery) ([]models.Product, bool) {
	key, err := c.listKey(ctx, q)
	if err != nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var out []models.Product
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (c *Cache) SetList(ctx context.Context, q ListQuery, list []models.Product) error {
	key, err := c.listKey(ctx, q)
	if err != nil {
		return err
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func productKey(id string) string {
	return "product:" + id
}

func (c *Cache) GetProduct(ctx context.Context, id string) (*models.Product, bool) {
	data, err := c.client.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var p models.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false
	}
	return &p, true
}

func (c *Cache) SetProduct(ctx context.Context, p *models.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, productKey(p.ProductID), data, c.ttl).Err()
}

// Invalidate drops the product and every cached listing.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	pipe := c.client.TxPipeline()
	if id != "" {
		pipe.Del(ctx, productKey(id))
	}
	pipe.Incr(ctx, versionKey)
	_, err := pipe.Exec(ctx)
	return err
}
