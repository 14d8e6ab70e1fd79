package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User            primitive.ObjectID `bson:"user" json:"user"`
	OrderItems      []OrderItem        `bson:"orderItems" json:"orderItems"`
	ShippingAddress ShippingAddress    `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod   PaymentMethod      `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus   PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	OrderStatus     OrderStatus        `bson:"orderStatus" json:"orderStatus"`
	TotalAmount     decimal.Decimal    `bson:"totalAmount" json:"totalAmount"`
	IsPaid          bool               `bson:"isPaid" json:"isPaid"`
	PaidAt          *time.Time         `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	DeliveredAt     *time.Time         `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time         `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type OrderItem struct {
	Product         primitive.ObjectID `bson:"product" json:"product"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	PriceAtThatTime decimal.Decimal    `bson:"priceAtThatTime" json:"priceAtThatTime"`
}

type ShippingAddress struct {
	FullName    string `bson:"fullName" json:"fullName"`
	PhoneNumber string `bson:"phoneNumber" json:"phoneNumber"`
	Street      string `bson:"street" json:"street"`
	City        string `bson:"city" json:"city"`
	State       string `bson:"state" json:"state"`
	Pincode     string `bson:"pincode" json:"pincode"`
	Country     string `bson:"country" json:"country"`
}

// Missing lists the names of blank fields.
func (a ShippingAddress) Missing() []string {
	fields := []struct {
		name, value string
	}{
		{"fullName", a.FullName},
		{"phoneNumber", a.PhoneNumber},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"pincode", a.Pincode},
		{"country", a.Country},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// OrderView is an order with its customer and products populated, as shown to admins.
type OrderView struct {
	*Order
	Customer *UserSummary     `json:"customer,omitempty"`
	Products []ProductSummary `json:"products"`
}
