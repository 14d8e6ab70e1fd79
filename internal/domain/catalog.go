package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	CreatedBy   primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NormalizeCategoryName trims and lowercases so "Shoes " and "shoes" collide.
func NormalizeCategoryName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Price       decimal.Decimal    `bson:"price" json:"price"`
	Stock       int                `bson:"stock" json:"stock"`
	Images      []string           `bson:"images" json:"images"`
	Category    primitive.ObjectID `bson:"category" json:"category"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	AvgRating   float64            `bson:"avgRating" json:"avgRating"`
	RatingCnt   int                `bson:"ratingCnt" json:"ratingCnt"`
	CreatedBy   primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ProductSummary is the populated form of a product reference in carts and orders.
type ProductSummary struct {
	ID       primitive.ObjectID `json:"id"`
	Name     string             `json:"name"`
	Price    decimal.Decimal    `json:"price"`
	Image    string             `json:"image,omitempty"`
	Stock    int                `json:"stock"`
	IsActive bool               `json:"isActive"`
}

func (p *Product) Summary() ProductSummary {
	s := ProductSummary{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock, IsActive: p.IsActive}
	if len(p.Images) > 0 {
		s.Image = p.Images[0]
	}
	return s
}

// ProductChanges is a partial product update. Nil fields are left untouched
// in storage, so stock moved by orders is never overwritten by an edit.
type ProductChanges struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Images      []string
	Category    *primitive.ObjectID
}

// Apply copies the set fields onto p.
func (c ProductChanges) Apply(p *Product) {
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.Description != nil {
		p.Description = *c.Description
	}
	if c.Price != nil {
		p.Price = *c.Price
	}
	if c.Stock != nil {
		p.Stock = *c.Stock
	}
	if c.Images != nil {
		p.Images = c.Images
	}
	if c.Category != nil {
		p.Category = *c.Category
	}
}

// ProductFilter narrows product listings. Nil fields do not filter.
type ProductFilter struct {
	Category *primitive.ObjectID
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

type RatingStats struct {
	AvgRating float64 `bson:"avgRating"`
	RatingCnt int     `bson:"ratingCnt"`
}
