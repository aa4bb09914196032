package products

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"atelier/models"
	"atelier/utils"
)

var ErrInvalidProduct = errors.New("invalid product")

type Service struct {
	repo  Repository
	cache *Cache
}

func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]models.Product, error) {
	if list, ok := s.cache.GetList(ctx, q); ok {
		return list, nil
	}
	list, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetList(ctx, q, list); err != nil {
		log.Printf("products cache set: %v", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Product, error) {
	if p, ok := s.cache.GetProduct(ctx, id); ok {
		return p, nil
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetProduct(ctx, p); err != nil {
		log.Printf("product cache set %s: %v", id, err)
	}
	return p, nil
}

// Lookup returns the products with the given ids keyed by id. Unknown ids are
// simply absent.
func (s *Service) Lookup(ctx context.Context, ids []string) (map[string]models.Product, error) {
	out := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := s.repo.FindMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		out[p.ProductID] = p
	}
	return out, nil
}

func validate(p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case p.Price <= 0:
		return fmt.Errorf("%w: price must be positive", ErrInvalidProduct)
	case p.Tax < 0:
		return fmt.Errorf("%w: tax cannot be negative", ErrInvalidProduct)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidProduct)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p models.Product) (*models.Product, error) {
	if err := validate(&p); err != nil {
		return nil, err
	}
	now := time.Now()
	p.ProductID = utils.GenerateRandomString(14)
	p.Rating, p.ReviewCount = 0, 0
	p.CreatedAt, p.UpdatedAt = now, now
	if err := s.repo.Insert(ctx, &p); err != nil {
		return nil, err
	}
	s.invalidate(ctx, "")
	return &p, nil
}

// Update replaces the editable fields. Ratings and creation time are kept.
func (s *Service) Update(ctx context.Context, id string, in models.Product) (*models.Product, error) {
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validate(&in); err != nil {
		return nil, err
	}
	in.ProductID = cur.ProductID
	in.Rating, in.ReviewCount = cur.Rating, cur.ReviewCount
	in.CreatedAt = cur.CreatedAt
	in.UpdatedAt = time.Now()
	if err := s.repo.Replace(ctx, &in); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return &in, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (*models.Product, error) {
	p, err := s.repo.IncStock(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return p, nil
}

func (s *Service) SetRating(ctx context.Context, id string, rating float64, count int) error {
	if err := s.repo.SetRating(ctx, id, rating, count); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) LowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	return s.repo.LowStock(ctx, threshold)
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		log.Printf("products cache invalidate %s: %v", id, err)
	}
}
