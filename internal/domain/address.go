package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Address is a saved shipping address. Orders copy it into a ShippingAddress
// so later edits do not rewrite history.
type Address struct {
	ShippingAddress `bson:",inline"`

	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	IsDefault bool               `bson:"isDefault" json:"isDefault"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
