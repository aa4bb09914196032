package models

import "time"

const (
	OrderPlaced    = "placed"
	OrderConfirmed = "confirmed"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
)

var orderTransitions = map[string][]string{
	OrderPlaced:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderShipped, OrderCancelled},
	OrderShipped:   {OrderDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ValidOrderStatus(s string) bool {
	switch s {
	case OrderPlaced, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type OrderItem struct {
	ID        string  `json:"id" bson:"id"` // cart line key
	ProductID string  `json:"productId" bson:"productId"`
	Name      string  `json:"name" bson:"name"`
	Image     string  `json:"image,omitempty" bson:"image,omitempty"`
	Price     float64 `json:"price" bson:"price"`
	Quantity  int     `json:"quantity" bson:"quantity"`
	Size      string  `json:"size,omitempty" bson:"size,omitempty"`
	Color     string  `json:"color,omitempty" bson:"color,omitempty"`
}

// GatewayRef holds the transaction references returned by the payment gateway.
type GatewayRef struct {
	OrderID   string `json:"orderId" bson:"orderId"`
	PaymentID string `json:"paymentId" bson:"paymentId"`
	Signature string `json:"signature,omitempty" bson:"signature,omitempty"`
}

// Settlement sources recorded on paid orders.
const (
	SettledByClientSignature = "client-signature"
	SettledByWebhook         = "webhook"
)

// OrderPayload is the body accepted by order creation.
type OrderPayload struct {
	Items           []OrderItem     `json:"items" bson:"items"`
	ShippingAddress ShippingAddress `json:"shippingAddress" bson:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod" bson:"paymentMethod"`
	PaymentStatus   string          `json:"paymentStatus" bson:"paymentStatus"`
	SettledBy       string          `json:"settledBy,omitempty" bson:"settledBy,omitempty"`
	Subtotal        float64         `json:"subtotal" bson:"subtotal"`
	Tax             float64         `json:"tax" bson:"tax"`
	Shipping        float64         `json:"shipping" bson:"shipping"`
	Total           float64         `json:"total" bson:"total"`
	Gateway         *GatewayRef     `json:"gateway,omitempty" bson:"gateway,omitempty"`
}

type StatusChange struct {
	Status string    `json:"status" bson:"status"`
	At     time.Time `json:"at" bson:"at"`
	By     string    `json:"by,omitempty" bson:"by,omitempty"`
}

type Order struct {
	OrderID      string `json:"orderId" bson:"orderId"`
	UserID       string `json:"userId" bson:"userId"`
	OrderPayload `bson:",inline"`
	Status       string         `json:"status" bson:"status"`
	History      []StatusChange `json:"history" bson:"history"`
	CreatedAt    time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// ItemCount is the number of units across all lines.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}
