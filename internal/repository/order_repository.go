package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type orderRepository struct {
	collection *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) OrderRepository {
	return &orderRepository{collection: db.Collection("orders")}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	now := time.Now().UTC()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	order.CreatedAt, order.UpdatedAt = now, now

	if _, err := r.collection.InsertOne(ctx, order); err != nil {
		return insertErr(err, "order")
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	return findOne[domain.Order](ctx, r.collection, bson.M{"_id": id}, "order")
}

func (r *orderRepository) GetForUser(ctx context.Context, id, userID primitive.ObjectID) (*domain.Order, error) {
	return findOne[domain.Order](ctx, r.collection, bson.M{"_id": id, "user": userID}, "order")
}

func (r *orderRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return findAll[domain.Order](ctx, r.collection, bson.M{"user": userID}, "orders", opts)
}

func (r *orderRepository) List(ctx context.Context, q domain.PageQuery) ([]domain.Order, int64, error) {
	return findPage[domain.Order](ctx, r.collection, bson.M{}, q, "orders")
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to domain.OrderStatus, at time.Time) error {
	set := bson.M{"orderStatus": to, "updatedAt": at}
	switch to {
	case domain.OrderStatusDelivered:
		set["deliveredAt"] = at
	case domain.OrderStatusCancelled:
		set["cancelledAt"] = at
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "orderStatus": from}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrStaleWrite
	}
	return nil
}

func (r *orderRepository) SetPaymentStatus(ctx context.Context, id primitive.ObjectID, status domain.PaymentStatus) error {
	return r.set(ctx, id, bson.M{"paymentStatus": status})
}

func (r *orderRepository) MarkPaid(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return r.set(ctx, id, bson.M{
		"paymentStatus": domain.PaymentStatusSuccess,
		"isPaid":        true,
		"paidAt":        at,
	})
}

func (r *orderRepository) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updatedAt"] = time.Now().UTC()
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
