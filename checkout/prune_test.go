package checkout

import (
	"context"
	"errors"
	"testing"

	"atelier/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCart struct {
	items     []models.CartItem
	removals  int
	clears    int
	failOn    string
	getErr    error
	getCalled int
}

func (m *memCart) Get(_ context.Context, userID string) (*models.Cart, error) {
	m.getCalled++
	if m.getErr != nil {
		return nil, m.getErr
	}
	items := make([]models.CartItem, len(m.items))
	copy(items, m.items)
	return &models.Cart{UserID: userID, Items: items}, nil
}

func (m *memCart) RemoveItem(_ context.Context, _ string, key string) error {
	m.removals++
	if key == m.failOn {
		return errors.New("boom")
	}
	out := m.items[:0]
	for _, it := range m.items {
		if it.Key() != key {
			out = append(out, it)
		}
	}
	m.items = out
	return nil
}

func (m *memCart) Clear(context.Context, string) error {
	m.clears++
	m.items = nil
	return nil
}

func fourLines() []models.CartItem {
	return []models.CartItem{
		{ProductID: "a", Quantity: 1},
		{ProductID: "b", Quantity: 1},
		{ProductID: "c", Quantity: 1, Size: "S"},
		{ProductID: "d", Quantity: 1},
	}
}

func TestPrune_SubsetLeavesComplementInOrder(t *testing.T) {
	lines := fourLines()
	cart := &memCart{items: append([]models.CartItem(nil), lines...)}

	failed := Prune(context.Background(), cart, "u1", lines, []models.CartItem{lines[1], lines[3]})

	assert.Zero(t, failed)
	assert.Zero(t, cart.clears)
	assert.Equal(t, []models.CartItem{lines[0], lines[2]}, cart.items)
}

func TestPrune_WholeCartClears(t *testing.T) {
	lines := fourLines()
	cart := &memCart{items: append([]models.CartItem(nil), lines...)}

	Prune(context.Background(), cart, "u1", lines, lines)

	assert.Equal(t, 1, cart.clears)
	assert.Zero(t, cart.removals)
	assert.Empty(t, cart.items)
}

func TestPrune_IdempotentUnderRetry(t *testing.T) {
	lines := fourLines()
	cart := &memCart{items: append([]models.CartItem(nil), lines...)}
	ordered := []models.CartItem{lines[0]}

	require.Zero(t, Prune(context.Background(), cart, "u1", lines, ordered))
	require.Zero(t, Prune(context.Background(), cart, "u1", lines, ordered))
	assert.Equal(t, lines[1:], cart.items)
}

func TestPrune_FailuresAreCountedNotFatal(t *testing.T) {
	lines := fourLines()
	cart := &memCart{items: append([]models.CartItem(nil), lines...), failOn: lines[0].Key()}

	failed := Prune(context.Background(), cart, "u1", lines, []models.CartItem{lines[0], lines[1]})

	assert.Equal(t, 1, failed)
	assert.Equal(t, []models.CartItem{lines[0], lines[2], lines[3]}, cart.items)
}
