package models

import "time"

type Product struct {
	ProductID   string    `json:"id" bson:"productid"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Category    string    `json:"category" bson:"category"`
	Price       float64   `json:"price" bson:"price"`
	Tax         float64   `json:"tax" bson:"tax"` // per unit, absolute
	Sizes       []string  `json:"sizes,omitempty" bson:"sizes,omitempty"`
	Colors      []string  `json:"colors,omitempty" bson:"colors,omitempty"`
	Images      []string  `json:"images,omitempty" bson:"images,omitempty"`
	Stock       int       `json:"stock" bson:"stock"`
	Active      bool      `json:"active" bson:"active"`
	Rating      float64   `json:"rating" bson:"rating"`
	ReviewCount int       `json:"reviewCount" bson:"reviewCount"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Thumbnail is the first image, if any.
func (p Product) Thumbnail() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
