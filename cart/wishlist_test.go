package cart

import (
	"context"
	"testing"

	"atelier/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWishlist struct {
	ids map[string][]string
}

func (m *memWishlist) Get(_ context.Context, userID string) (*models.Wishlist, error) {
	return &models.Wishlist{UserID: userID, ProductIDs: append([]string{}, m.ids[userID]...)}, nil
}

func (m *memWishlist) Add(_ context.Context, userID, productID string) error {
	for _, id := range m.ids[userID] {
		if id == productID {
			return nil
		}
	}
	m.ids[userID] = append(m.ids[userID], productID)
	return nil
}

func (m *memWishlist) Remove(_ context.Context, userID, productID string) error {
	var out []string
	for _, id := range m.ids[userID] {
		if id != productID {
			out = append(out, id)
		}
	}
	m.ids[userID] = out
	return nil
}

func TestWishlist_AddListMove(t *testing.T) {
	svc, _, _ := newService(t)
	store := &memWishlist{ids: map[string][]string{}}
	wl := NewWishlists(store, catalog(), svc)
	ctx := context.Background()

	require.NoError(t, wl.Add(ctx, "u1", "kurta"))
	require.NoError(t, wl.Add(ctx, "u1", "kurta"))
	require.NoError(t, wl.Add(ctx, "u1", "dupatta"))
	assert.ErrorIs(t, wl.Add(ctx, "u1", "ghost"), ErrUnknownProduct)

	products, err := wl.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, products, 2)

	// kurta needs a size: the move fails and the wish stays
	_, err = wl.MoveToCart(ctx, "u1", "kurta", "", "")
	assert.ErrorIs(t, err, ErrInvalidVariant)
	assert.Equal(t, []string{"kurta", "dupatta"}, store.ids["u1"])

	c, err := wl.MoveToCart(ctx, "u1", "kurta", "M", "")
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
	assert.Equal(t, []string{"dupatta"}, store.ids["u1"])

	require.NoError(t, wl.Remove(ctx, "u1", "dupatta"))
	require.NoError(t, wl.Remove(ctx, "u1", "dupatta"))
	assert.Empty(t, store.ids["u1"])
}
