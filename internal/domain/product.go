package domain

import "time"

type Category string

const (
	CategoryRed       Category = "Red"
	CategoryWhite     Category = "White"
	CategoryRose      Category = "Rose"
	CategorySparkling Category = "Sparkling"
	CategoryDessert   Category = "Dessert"
	CategoryFortified Category = "Fortified"
)

type Product struct {
	ProductID     string    `json:"productId" dynamodbav:"productId"`
	Name          string    `json:"name" dynamodbav:"name"`
	Description   string    `json:"description" dynamodbav:"description"`
	Category      Category  `json:"category" dynamodbav:"category"`
	UnitPrice     int64     `json:"unitPrice" dynamodbav:"unitPrice"`
	ImageRef      string    `json:"imageRef" dynamodbav:"imageRef"`
	StockQuantity int       `json:"stockQuantity" dynamodbav:"stockQuantity"`
	InStock       bool      `json:"inStock" dynamodbav:"inStock"`
	CreatedAt     time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

type StockLevel struct {
	ProductID      string `json:"productId"`
	RemainingStock int    `json:"remainingStock"`
	InStock        bool   `json:"inStock"`
}

// ProductPatch lists the product fields that may be changed after creation.
// Nil fields are left untouched.
type ProductPatch struct {
	Name          *string   `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description   *string   `json:"description,omitempty" validate:"omitempty,max=4000"`
	Category      *Category `json:"category,omitempty" validate:"omitempty,oneof=Red White Rose Sparkling Dessert Fortified"`
	UnitPrice     *int64    `json:"unitPrice,omitempty" validate:"omitempty,gte=0"`
	ImageRef      *string   `json:"imageRef,omitempty" validate:"omitempty,max=1024"`
	StockQuantity *int      `json:"stockQuantity,omitempty" validate:"omitempty,gte=0,max=1000000"`
}

func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Category == nil &&
		p.UnitPrice == nil && p.ImageRef == nil && p.StockQuantity == nil
}

// Apply merges the patch into product and keeps InStock in line with the
// resulting stock quantity.
func (p ProductPatch) Apply(product *Product, now time.Time) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.UnitPrice != nil {
		product.UnitPrice = *p.UnitPrice
	}
	if p.ImageRef != nil {
		product.ImageRef = *p.ImageRef
	}
	if p.StockQuantity != nil {
		product.StockQuantity = *p.StockQuantity
	}
	product.InStock = product.StockQuantity > 0
	product.UpdatedAt = now
}
