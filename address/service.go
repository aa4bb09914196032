package address

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"atelier/models"
	"atelier/utils"
)

var ErrInvalidAddress = errors.New("invalid address")

var (
	phoneRe  = regexp.MustCompile(`^[0-9]{10}$`)
	postalRe = regexp.MustCompile(`^[0-9]{6}$`)
)

// Validate checks the required fields of a normalized address.
func Validate(a models.Address) error {
	required := []struct{ field, value string }{
		{"fullName", a.FullName},
		{"phone", a.Phone},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidAddress, r.field)
		}
	}
	if !phoneRe.MatchString(a.Phone) {
		return fmt.Errorf("%w: phone must be 10 digits", ErrInvalidAddress)
	}
	if !postalRe.MatchString(a.PostalCode) {
		return fmt.Errorf("%w: postal code must be 6 digits", ErrInvalidAddress)
	}
	return nil
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, userID string) ([]models.Address, error) {
	return s.repo.List(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, id string) (*models.Address, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return s.repo.Get(ctx, userID, id)
}

// Default returns the default address, or the newest one if none is flagged.
func (s *Service) Default(ctx context.Context, userID string) (*models.Address, error) {
	list, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	for _, a := range list {
		if a.IsDefault {
			return &a, nil
		}
	}
	return &list[0], nil
}

// Create stores a new address from either field naming. The first address
// of a user becomes the default; so does any address created with
// isDefault set.
func (s *Service) Create(ctx context.Context, userID string, raw map[string]any) (*models.Address, error) {
	a := models.NormalizeAddress(raw)
	if err := Validate(a); err != nil {
		return nil, err
	}

	existing, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	wantDefault, _ := raw["isDefault"].(bool)

	a.ID = utils.GetUUID()
	a.UserID = userID
	a.IsDefault = false
	a.CreatedAt = time.Now()
	if err := s.repo.Insert(ctx, &a); err != nil {
		return nil, err
	}
	if len(existing) == 0 || wantDefault {
		if err := s.repo.SetDefault(ctx, userID, a.ID); err != nil {
			return nil, err
		}
		a.IsDefault = true
	}
	return &a, nil
}

// Delete removes an address. If it was the default, the newest remaining
// address takes over.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	a, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	if !a.IsDefault {
		return nil
	}
	rest, err := s.repo.List(ctx, userID)
	if err != nil || len(rest) == 0 {
		return err
	}
	return s.repo.SetDefault(ctx, userID, rest[0].ID)
}

func (s *Service) SetDefault(ctx context.Context, userID, id string) (*models.Address, error) {
	if err := s.repo.SetDefault(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID, id)
}
