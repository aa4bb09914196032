package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"atelier/models"
	"atelier/utils"
)

var (
	ErrMissingProductID = errors.New("product id is required")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrUnknownProduct   = errors.New("product not available")
	ErrInvalidVariant   = errors.New("size or colour not offered")
	ErrOutOfStock       = errors.New("not enough stock")
	ErrItemNotFound     = errors.New("item not found in cart")
)

// Products is the catalog view the cart needs.
type Products interface {
	Get(ctx context.Context, id string) (*models.Product, error)
}

// Service owns the cart of each user. Reads are cache-aside; every write
// drops the cached copy.
type Service struct {
	repo     Repository
	cache    Cache
	products Products
}

func NewService(repo Repository, cache Cache, products Products) *Service {
	return &Service{repo: repo, cache: cache, products: products}
}

func (s *Service) Get(ctx context.Context, userID string) (*models.Cart, error) {
	if c, err := s.cache.Get(ctx, userID); err == nil {
		return c, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		log.Printf("cart cache get %s: %v", userID, err)
	}

	c, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, c); err != nil {
		log.Printf("cart cache set %s: %v", userID, err)
	}
	return c, nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cart cache delete %s: %v", userID, err)
	}
}

func (s *Service) save(ctx context.Context, c *models.Cart) (*models.Cart, error) {
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	s.invalidate(ctx, c.UserID)
	return c, nil
}

// Add puts a line in the cart, or adds to the quantity of an identical line.
// Price, name and tax are snapshotted from the catalog, not taken from the
// client.
func (s *Service) Add(ctx context.Context, userID string, raw map[string]any) (*models.Cart, error) {
	item := models.NormalizeCartItem(raw)
	if item.ProductID == "" {
		return nil, ErrMissingProductID
	}
	if _, present := raw["quantity"]; !present {
		item.Quantity = 1
	}
	if item.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.Get(ctx, item.ProductID)
	if err != nil || p == nil || !p.Active {
		return nil, ErrUnknownProduct
	}
	if !offered(p.Sizes, item.Size) || !offered(p.Colors, item.Color) {
		return nil, ErrInvalidVariant
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	qty := item.Quantity
	if i := c.Find(item.Key()); i >= 0 {
		qty += c.Items[i].Quantity
		if qty > p.Stock {
			return nil, ErrOutOfStock
		}
		c.Items[i].Quantity = qty
		c.Items[i].Price = p.Price
		c.Items[i].Tax = p.Tax
	} else {
		if qty > p.Stock {
			return nil, ErrOutOfStock
		}
		c.Items = append(c.Items, models.CartItem{
			ProductID: p.ProductID,
			Name:      p.Name,
			Image:     p.Thumbnail(),
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  qty,
			Price:     p.Price,
			Tax:       p.Tax,
			AddedAt:   time.Now(),
		})
	}
	return s.save(ctx, c)
}

func offered(options []string, v string) bool {
	if len(options) == 0 {
		return v == ""
	}
	return v != "" && utils.Contains(options, v)
}

// SetQuantity changes the quantity of a line; 0 removes it.
func (s *Service) SetQuantity(ctx context.Context, userID, key string, qty int) (*models.Cart, error) {
	if qty < 0 {
		return nil, ErrInvalidQuantity
	}
	if qty == 0 {
		return s.Remove(ctx, userID, key)
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := c.Find(key)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	if p, err := s.products.Get(ctx, c.Items[i].ProductID); err == nil && p != nil && qty > p.Stock {
		return nil, ErrOutOfStock
	}
	c.Items[i].Quantity = qty
	return s.save(ctx, c)
}

// Remove drops one line and returns what is left. Removing a line that is
// not there is a no-op.
func (s *Service) Remove(ctx context.Context, userID, key string) (*models.Cart, error) {
	if err := s.RemoveItem(ctx, userID, key); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *Service) RemoveItem(ctx context.Context, userID, key string) error {
	if err := s.repo.RemoveItem(ctx, userID, key); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Merge folds a cart kept by a signed-out browser into the user's cart.
// Lines that cannot be added are skipped and counted.
func (s *Service) Merge(ctx context.Context, userID string, raws []map[string]any) (*models.Cart, int, error) {
	skipped := 0
	for _, raw := range raws {
		if _, err := s.Add(ctx, userID, raw); err != nil {
			if errors.Is(err, ErrMissingProductID) || errors.Is(err, ErrInvalidQuantity) ||
				errors.Is(err, ErrUnknownProduct) || errors.Is(err, ErrInvalidVariant) || errors.Is(err, ErrOutOfStock) {
				skipped++
				continue
			}
			return nil, skipped, fmt.Errorf("merge cart: %w", err)
		}
	}
	c, err := s.Get(ctx, userID)
	return c, skipped, err
}
