package products

import (
	"context"
	"testing"
	"time"

	"atelier/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type memRepo struct {
	byID  map[string]models.Product
	lists int
}

func (m *memRepo) List(_ context.Context, q ListQuery) ([]models.Product, error) {
	m.lists++
	out := []models.Product{}
	for _, p := range m.byID {
		if (q.IncludeInactive || p.Active) && (q.Category == "" || p.Category == q.Category) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) Get(_ context.Context, id string) (*models.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *memRepo) FindMany(_ context.Context, ids []string) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) Insert(_ context.Context, p *models.Product) error {
	m.byID[p.ProductID] = *p
	return nil
}

func (m *memRepo) Replace(_ context.Context, p *models.Product) error {
	if _, ok := m.byID[p.ProductID]; !ok {
		return ErrNotFound
	}
	m.byID[p.ProductID] = *p
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memRepo) IncStock(_ context.Context, id string, delta int) (*models.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Stock+delta < 0 {
		return nil, ErrInsufficientStock
	}
	p.Stock += delta
	m.byID[id] = p
	return &p, nil
}

func (m *memRepo) SetRating(_ context.Context, id string, rating float64, count int) error {
	p := m.byID[id]
	p.Rating, p.ReviewCount = rating, count
	m.byID[id] = p
	return nil
}

func (m *memRepo) LowStock(_ context.Context, threshold int) ([]models.Product, error) {
	var out []models.Product
	for _, p := range m.byID {
		if p.Stock <= threshold {
			out = append(out, p)
		}
	}
	return out, nil
}

func newService(t *testing.T) (*Service, *memRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	repo := &memRepo{byID: map[string]models.Product{
		"p1": {ProductID: "p1", Name: "Kurta", Category: "ethnic", Price: 500, Tax: 20, Stock: 3, Active: true},
		"p2": {ProductID: "p2", Name: "Blazer", Category: "formal", Price: 2500, Tax: 125, Stock: 1, Active: false},
	}}
	return NewService(repo, NewCache(client, time.Minute)), repo
}

func TestList_CachedUntilWrite(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	q := ListQuery{Limit: 10}

	list, err := svc.List(ctx, q)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = svc.List(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lists)

	_, err = svc.Create(ctx, models.Product{Name: "Saree", Price: 1200, Tax: 60, Stock: 4, Active: true})
	require.NoError(t, err)

	list, err = svc.List(ctx, q)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, repo.lists)
}

func TestGet_CachedAndInvalidatedOnStockChange(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, err := svc.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	_, err = svc.AdjustStock(ctx, "p1", -2)
	require.NoError(t, err)
	p, err = svc.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)

	_, err = svc.AdjustStock(ctx, "p1", -2)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestLookup(t *testing.T) {
	svc, _ := newService(t)
	got, err := svc.Lookup(context.Background(), []string{"p1", "ghost", "p2"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 20.0, got["p1"].Tax)

	empty, err := svc.Lookup(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCreateAndUpdate_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.Product{Name: " ", Price: 10})
	assert.ErrorIs(t, err, ErrInvalidProduct)
	_, err = svc.Create(ctx, models.Product{Name: "Stole", Price: 0})
	assert.ErrorIs(t, err, ErrInvalidProduct)

	require.NoError(t, svc.SetRating(ctx, "p1", 4.5, 2))
	updated, err := svc.Update(ctx, "p1", models.Product{Name: "Kurta (cotton)", Price: 550, Tax: 22, Stock: 3, Active: true})
	require.NoError(t, err)
	assert.Equal(t, "p1", updated.ProductID)
	assert.Equal(t, 4.5, updated.Rating, "ratings survive edits")

	_, err = svc.Update(ctx, "ghost", models.Product{Name: "x", Price: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFilter(t *testing.T) {
	assert.Equal(t, bson.M{
		"active":   true,
		"category": "ethnic",
		"name":     bson.M{"$regex": `silk\.`, "$options": "i"},
	}, listFilter(ListQuery{Category: "ethnic", Search: "silk."}))

	assert.Equal(t, bson.M{}, listFilter(ListQuery{IncludeInactive: true}))
}
