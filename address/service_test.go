package address

import (
	"context"
	"testing"

	"atelier/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo keeps addresses newest first, like the Mongo listing.
type memRepo struct {
	list []models.Address
}

func (m *memRepo) List(_ context.Context, userID string) ([]models.Address, error) {
	out := []models.Address{}
	for _, a := range m.list {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) Get(_ context.Context, userID, id string) (*models.Address, error) {
	for _, a := range m.list {
		if a.UserID == userID && a.ID == id {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) Insert(_ context.Context, a *models.Address) error {
	m.list = append([]models.Address{*a}, m.list...)
	return nil
}

func (m *memRepo) Delete(_ context.Context, userID, id string) error {
	for i, a := range m.list {
		if a.UserID == userID && a.ID == id {
			m.list = append(m.list[:i], m.list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memRepo) SetDefault(_ context.Context, userID, id string) error {
	if _, err := m.Get(context.Background(), userID, id); err != nil {
		return err
	}
	for i := range m.list {
		if m.list[i].UserID == userID {
			m.list[i].IsDefault = m.list[i].ID == id
		}
	}
	return nil
}

func form(street string) map[string]any {
	return map[string]any{
		"fullName": "Asha Rao", "phone": "9876543210", "street": street,
		"city": "Pune", "state": "MH", "postalCode": "411001",
	}
}

func defaults(t *testing.T, repo *memRepo) []string {
	t.Helper()
	var ids []string
	for _, a := range repo.list {
		if a.IsDefault {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func TestValidate(t *testing.T) {
	ok := models.NormalizeAddress(form("12 MG Road"))
	require.NoError(t, Validate(ok))

	tests := map[string]func(a *models.Address){
		"missing name":   func(a *models.Address) { a.FullName = "" },
		"missing street": func(a *models.Address) { a.Street = " " },
		"short phone":    func(a *models.Address) { a.Phone = "98765" },
		"alpha phone":    func(a *models.Address) { a.Phone = "98765abcde" },
		"5 digit postal": func(a *models.Address) { a.PostalCode = "41100" },
		"missing state":  func(a *models.Address) { a.State = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			a := ok
			mutate(&a)
			assert.ErrorIs(t, Validate(a), ErrInvalidAddress)
		})
	}
}

func TestCreate_FirstIsDefaultAndBackendNamesAccepted(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.Create(ctx, "u1", form("1 First St"))
	require.NoError(t, err)
	assert.True(t, first.IsDefault)

	second, err := svc.Create(ctx, "u1", map[string]any{
		"name": "Asha Rao", "phone": "9876543210", "addressLine1": "2 Second St",
		"city": "Pune", "state": "MH", "pincode": "411002",
	})
	require.NoError(t, err)
	assert.False(t, second.IsDefault)
	assert.Equal(t, "2 Second St", second.Street)
	assert.Equal(t, []string{first.ID}, defaults(t, repo))

	third, err := svc.Create(ctx, "u1", func() map[string]any { f := form("3 Third St"); f["isDefault"] = true; return f }())
	require.NoError(t, err)
	assert.True(t, third.IsDefault)
	assert.Equal(t, []string{third.ID}, defaults(t, repo))

	_, err = svc.Create(ctx, "u1", map[string]any{"fullName": "x"})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestDelete_DefaultPromotesNewest(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	a, _ := svc.Create(ctx, "u1", form("A"))
	b, _ := svc.Create(ctx, "u1", form("B"))
	c, _ := svc.Create(ctx, "u1", form("C"))
	require.True(t, a.IsDefault)

	require.NoError(t, svc.Delete(ctx, "u1", a.ID))
	assert.Equal(t, []string{c.ID}, defaults(t, repo))

	require.NoError(t, svc.Delete(ctx, "u1", b.ID))
	assert.Equal(t, []string{c.ID}, defaults(t, repo))

	assert.ErrorIs(t, svc.Delete(ctx, "u1", b.ID), ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "u2", c.ID), ErrNotFound)
}

func TestSetDefaultAndDefault(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Default(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	a, _ := svc.Create(ctx, "u1", form("A"))
	b, _ := svc.Create(ctx, "u1", form("B"))

	got, err := svc.SetDefault(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)
	assert.Equal(t, []string{b.ID}, defaults(t, repo))

	def, err := svc.Default(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, def.ID)
	assert.NotEqual(t, a.ID, def.ID)

	_, err = svc.SetDefault(ctx, "u1", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
