package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Cart struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User       primitive.ObjectID `bson:"user" json:"user"`
	Items      []CartItem         `bson:"items" json:"items"`
	TotalPrice decimal.Decimal    `bson:"totalPrice" json:"totalPrice"`
	Version    int64              `bson:"version" json:"version"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type CartItem struct {
	Product         primitive.ObjectID `bson:"product" json:"product"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	PriceAtThatTime decimal.Decimal    `bson:"priceAtThatTime" json:"priceAtThatTime"`
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.PriceAtThatTime.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// IndexOf returns the position of productID in the cart, or -1.
func (c *Cart) IndexOf(productID primitive.ObjectID) int {
	for i, item := range c.Items {
		if item.Product == productID {
			return i
		}
	}
	return -1
}

// Recalculate keeps TotalPrice equal to the sum of item subtotals.
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	c.TotalPrice = total
}

func (c *Cart) ProductIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.Product)
	}
	return ids
}

// CartView is a cart with product references populated.
type CartView struct {
	ID         primitive.ObjectID `json:"id"`
	User       primitive.ObjectID `json:"user"`
	Items      []CartItemView     `json:"items"`
	TotalPrice decimal.Decimal    `json:"totalPrice"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

type CartItemView struct {
	Product         ProductSummary  `json:"product"`
	Quantity        int             `json:"quantity"`
	PriceAtThatTime decimal.Decimal `json:"priceAtThatTime"`
}
