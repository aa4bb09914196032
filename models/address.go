package models

import "time"

// Address is a saved shipping destination of a user.
type Address struct {
	ID         string    `json:"id" bson:"id"`
	UserID     string    `json:"userId" bson:"userId"`
	FullName   string    `json:"fullName" bson:"fullName"`
	Phone      string    `json:"phone" bson:"phone"`
	Street     string    `json:"street" bson:"street"`
	City       string    `json:"city" bson:"city"`
	State      string    `json:"state" bson:"state"`
	PostalCode string    `json:"postalCode" bson:"postalCode"`
	Landmark   string    `json:"landmark,omitempty" bson:"landmark,omitempty"`
	Label      string    `json:"label,omitempty" bson:"label,omitempty"`
	IsDefault  bool      `json:"isDefault" bson:"isDefault"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// ShippingAddress is the address as stored on an order.
type ShippingAddress struct {
	Name         string `json:"name" bson:"name"`
	Phone        string `json:"phone" bson:"phone"`
	AddressLine1 string `json:"addressLine1" bson:"addressLine1"`
	City         string `json:"city" bson:"city"`
	State        string `json:"state" bson:"state"`
	Pincode      string `json:"pincode" bson:"pincode"`
	Landmark     string `json:"landmark,omitempty" bson:"landmark,omitempty"`
}

func (a Address) Shipping() ShippingAddress {
	return ShippingAddress{
		Name:         a.FullName,
		Phone:        a.Phone,
		AddressLine1: a.Street,
		City:         a.City,
		State:        a.State,
		Pincode:      a.PostalCode,
		Landmark:     a.Landmark,
	}
}
