package checkout

import (
	"context"
	"log"

	"atelier/models"
)

// CartRemover is the part of the cart store the pruner needs. Removing a
// line that is not there must succeed.
type CartRemover interface {
	RemoveItem(ctx context.Context, userID, key string) error
	Clear(ctx context.Context, userID string) error
}

// Prune drops the ordered lines from the cart after an order is stored. When
// the order covers the whole cart it clears the cart in one call. Failures
// are logged and otherwise ignored: the order stands either way.
func Prune(ctx context.Context, carts CartRemover, userID string, cart, ordered []models.CartItem) int {
	orderedKeys := SelectAll(ordered)
	if coversAll(cart, orderedKeys) {
		if err := carts.Clear(ctx, userID); err != nil {
			log.Printf("Prune: clear cart for %s failed: %v", userID, err)
			return 1
		}
		return 0
	}

	failed := 0
	for _, it := range ordered {
		if err := carts.RemoveItem(ctx, userID, it.Key()); err != nil {
			log.Printf("Prune: remove %s for %s failed: %v", it.Key(), userID, err)
			failed++
		}
	}
	return failed
}

func coversAll(cart []models.CartItem, sel Selection) bool {
	if len(cart) == 0 {
		return false
	}
	for _, it := range cart {
		if !sel.Has(it.Key()) {
			return false
		}
	}
	return true
}
