package reviews

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"atelier/models"
	"atelier/mq"
	"atelier/utils"
)

var (
	ErrInvalidReview = errors.New("rating must be 1-5 and comment must not be empty")
	ErrForbidden     = errors.New("not your review")
)

const maxCommentLen = 2000

// Products is the part of the catalog reviews need.
type Products interface {
	Get(ctx context.Context, id string) (*models.Product, error)
	SetRating(ctx context.Context, id string, rating float64, count int) error
}

type Service struct {
	repo     Repository
	products Products
	events   mq.Emitter
}

func NewService(repo Repository, products Products, events mq.Emitter) *Service {
	return &Service{repo: repo, products: products, events: events}
}

func validate(rating int, comment string) (string, error) {
	comment = strings.TrimSpace(comment)
	if rating < 1 || rating > 5 || comment == "" {
		return "", ErrInvalidReview
	}
	if len(comment) > maxCommentLen {
		return "", fmt.Errorf("%w: comment too long", ErrInvalidReview)
	}
	return comment, nil
}

func (s *Service) List(ctx context.Context, productID string, skip, limit int64) ([]models.Review, error) {
	return s.repo.List(ctx, productID, skip, limit)
}

func (s *Service) Add(ctx context.Context, userID, username, productID string, rating int, comment string) (*models.Review, error) {
	comment, err := validate(rating, comment)
	if err != nil {
		return nil, err
	}
	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, err
	}

	now := time.Now()
	r := &models.Review{
		ReviewID:  utils.GetUUID(),
		ProductID: productID,
		UserID:    userID,
		Username:  username,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, r); err != nil {
		return nil, err
	}
	s.emit(ctx, "POST", r)
	return r, nil
}

func (s *Service) Edit(ctx context.Context, userID, reviewID string, rating int, comment string) (*models.Review, error) {
	comment, err := validate(rating, comment)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, ErrForbidden
	}
	updated, err := s.repo.Update(ctx, reviewID, rating, comment)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, "PUT", updated)
	return updated, nil
}

// Delete removes a review owned by userID, or any review when asAdmin is set.
func (s *Service) Delete(ctx context.Context, userID, reviewID string, asAdmin bool) error {
	existing, err := s.repo.Get(ctx, reviewID)
	if err != nil {
		return err
	}
	if existing.UserID != userID && !asAdmin {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, reviewID); err != nil {
		return err
	}
	s.emit(ctx, "DELETE", existing)
	return nil
}

func (s *Service) emit(ctx context.Context, method string, r *models.Review) {
	s.events.Emit(ctx, mq.ReviewEvents, models.Index{
		EntityType: "review",
		Method:     method,
		EntityId:   r.ReviewID,
		ItemId:     r.ProductID,
		ItemType:   "product",
		UserID:     r.UserID,
	})
}

// RecomputeRating refreshes the product's cached rating and review count.
// The mq review worker calls it after every review change.
func (s *Service) RecomputeRating(ctx context.Context, productID string) error {
	avg, count, err := s.repo.Stats(ctx, productID)
	if err != nil {
		return err
	}
	return s.products.SetRating(ctx, productID, math.Round(avg*10)/10, count)
}
