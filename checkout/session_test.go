package checkout

import (
	"context"
	"testing"
	"time"

	"atelier/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestSession_Transitions(t *testing.T) {
	s := NewSession()
	assert.Equal(t, StepAddress, s.Step)

	assert.ErrorIs(t, s.Back(), ErrInvalidStep)
	assert.ErrorIs(t, s.Complete("o1"), ErrInvalidStep)
	assert.ErrorIs(t, s.Quote("order_1", 100, "x"), ErrInvalidStep)

	require.NoError(t, s.ChooseAddress("a1"))
	assert.Equal(t, StepPayment, s.Step)
	require.NoError(t, s.Quote("order_1", 145000, "x"))

	require.NoError(t, s.Back())
	assert.Equal(t, StepAddress, s.Step)
	assert.Empty(t, s.GatewayOrderID, "going back drops the quote")
	assert.Empty(t, s.Lines)

	require.NoError(t, s.ChooseAddress("a2"))
	require.NoError(t, s.Complete("ORD1"))
	assert.Equal(t, StepDone, s.Step)

	assert.ErrorIs(t, s.Back(), ErrInvalidStep)
	assert.ErrorIs(t, s.ChooseAddress("a1"), ErrInvalidStep)
}

func TestSessionStore_RoundTripAndRestart(t *testing.T) {
	_, client := newRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	sess, err := store.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StepAddress, sess.Step)

	require.NoError(t, sess.ChooseAddress("a1"))
	require.NoError(t, store.Save(ctx, "u1", sess))

	got, err := store.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StepPayment, got.Step)
	assert.Equal(t, "a1", got.AddressID)

	require.NoError(t, got.Complete("ORD1"))
	require.NoError(t, store.Save(ctx, "u1", got))

	done, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ORD1", done.OrderID)

	fresh, err := store.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StepAddress, fresh.Step)
}

func TestSessionStore_Drop(t *testing.T) {
	_, client := newRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	sess := NewSession()
	require.NoError(t, sess.ChooseAddress("a1"))
	require.NoError(t, sess.Quote("order_1", 145000, "x"))
	require.NoError(t, store.Save(ctx, "u1", sess))

	require.NoError(t, store.Drop(ctx, "u1"))
	got, err := store.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StepAddress, got.Step)
	assert.Empty(t, got.GatewayOrderID)

	assert.NoError(t, store.Drop(ctx, "nobody"))
}

func TestFingerprint(t *testing.T) {
	items := sampleCart()
	swapped := []models.CartItem{items[1], items[0]}
	assert.Equal(t, Fingerprint(items), Fingerprint(swapped))

	other := sampleCart()
	other[1].Color = "blue"
	assert.NotEqual(t, Fingerprint(items), Fingerprint(other))

	more := sampleCart()
	more[0].Quantity = 3
	assert.NotEqual(t, Fingerprint(items), Fingerprint(more))
}

func TestSelectionStore(t *testing.T) {
	_, client := newRedis(t)
	store := NewSelectionStore(client, time.Hour)
	ctx := context.Background()
	items := sampleCart()

	sel, err := store.Load(ctx, "u1", items)
	require.NoError(t, err)
	assert.Equal(t, []string{items[0].Key(), items[1].Key()}, sel.Keys(items), "defaults to everything")

	_, err = store.Save(ctx, "u1", items, []string{items[1].Key(), "stale|x|"})
	require.NoError(t, err)

	sel, err = store.Load(ctx, "u1", items)
	require.NoError(t, err)
	assert.Equal(t, []string{items[1].Key()}, sel.Keys(items))

	// a new line resets the selection to all lines
	grown := append(items, models.CartItem{ProductID: "p9", Quantity: 1})
	sel, err = store.Load(ctx, "u1", grown)
	require.NoError(t, err)
	assert.Len(t, sel.Keys(grown), 3)
}
