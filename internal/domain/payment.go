package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultCurrency = "INR"

type Payment struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User              primitive.ObjectID `bson:"user" json:"user"`
	Order             primitive.ObjectID `bson:"order" json:"order"`
	Provider          PaymentProvider    `bson:"paymentProvider" json:"paymentProvider"`
	Amount            decimal.Decimal    `bson:"amount" json:"amount"`
	Currency          string             `bson:"currency" json:"currency"`
	Status            PaymentStatus      `bson:"status" json:"status"`
	ProviderPaymentID string             `bson:"providerPaymentId" json:"providerPaymentId"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}
