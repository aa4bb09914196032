package models

import (
	"strings"
	"time"
)

// CartItem is one product/variant line in a user's cart.
type CartItem struct {
	ProductID string    `json:"productId" bson:"productId"`
	Name      string    `json:"name" bson:"name"`
	Image     string    `json:"image,omitempty" bson:"image,omitempty"`
	Size      string    `json:"size,omitempty" bson:"size,omitempty"`
	Color     string    `json:"color,omitempty" bson:"color,omitempty"`
	Quantity  int       `json:"quantity" bson:"quantity"`
	Price     float64   `json:"price" bson:"price"`
	Tax       float64   `json:"tax,omitempty" bson:"tax,omitempty"`
	AddedAt   time.Time `json:"addedAt" bson:"addedAt"`
}

// Key identifies the line within a cart: the same product in another size or
// colour is a different line.
func (c CartItem) Key() string {
	return ItemKey(c.ProductID, c.Size, c.Color)
}

func ItemKey(productID, size, color string) string {
	return strings.Join([]string{productID, size, color}, "|")
}

type Cart struct {
	UserID    string     `json:"userId" bson:"userId"`
	Items     []CartItem `json:"items" bson:"items"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Find returns the index of the line with key, or -1.
func (c *Cart) Find(key string) int {
	for i, it := range c.Items {
		if it.Key() == key {
			return i
		}
	}
	return -1
}

type Wishlist struct {
	UserID     string    `json:"userId" bson:"userId"`
	ProductIDs []string  `json:"productIds" bson:"productIds"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

// SplitItemKey is the inverse of ItemKey.
func SplitItemKey(key string) (productID, size, color string) {
	parts := strings.SplitN(key, "|", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return parts[0], parts[1], parts[2]
}
