package domain

import (
	"time"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderCancelled     = "order.cancelled"
	EventOrderStatusChanged = "order.status_changed"
	EventPaymentSucceeded   = "payment.succeeded"
)

// OutboxEvent is written in the same transaction as the change it describes
// and relayed to Kafka afterwards.
type OutboxEvent struct {
	ID          string     `bson:"_id"`
	AggregateID string     `bson:"aggregateId"`
	EventType   string     `bson:"eventType"`
	Payload     []byte     `bson:"payload"`
	CreatedAt   time.Time  `bson:"createdAt"`
	ProcessedAt *time.Time `bson:"processedAt,omitempty"`
}

// OrderEvent is the JSON payload of every order.* and payment.* event.
type OrderEvent struct {
	OrderID    string           `json:"orderId"`
	UserID     string           `json:"userId"`
	Status     string           `json:"status"`
	Items      []OrderEventItem `json:"items,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
}

type OrderEventItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}
