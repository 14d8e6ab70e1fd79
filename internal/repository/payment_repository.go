package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type paymentRepository struct {
	collection *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) PaymentRepository {
	return &paymentRepository{collection: db.Collection("payments")}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	now := time.Now().UTC()
	if payment.ID.IsZero() {
		payment.ID = primitive.NewObjectID()
	}
	payment.CreatedAt, payment.UpdatedAt = now, now

	if _, err := r.collection.InsertOne(ctx, payment); err != nil {
		return insertErr(err, "payment")
	}
	return nil
}

func (r *paymentRepository) GetByOrder(ctx context.Context, orderID primitive.ObjectID) (*domain.Payment, error) {
	return findOne[domain.Payment](ctx, r.collection, bson.M{"order": orderID}, "payment")
}

func (r *paymentRepository) GetForUser(ctx context.Context, id, userID primitive.ObjectID) (*domain.Payment, error) {
	return findOne[domain.Payment](ctx, r.collection, bson.M{"_id": id, "user": userID}, "payment")
}

func (r *paymentRepository) FindForVerification(ctx context.Context, orderID, userID primitive.ObjectID, providerPaymentID string) (*domain.Payment, error) {
	filter := bson.M{
		"order":             orderID,
		"user":              userID,
		"providerPaymentId": providerPaymentID,
	}
	return findOne[domain.Payment](ctx, r.collection, filter, "payment")
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to domain.PaymentStatus) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrStaleWrite
	}
	return nil
}

func (r *paymentRepository) Reinitiate(ctx context.Context, payment *domain.Payment) error {
	payment.UpdatedAt = time.Now().UTC()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": payment.ID, "status": domain.PaymentStatusFailed},
		bson.M{"$set": bson.M{
			"status":            domain.PaymentStatusPending,
			"paymentProvider":   payment.Provider,
			"amount":            payment.Amount,
			"currency":          payment.Currency,
			"providerPaymentId": payment.ProviderPaymentID,
			"updatedAt":         payment.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to reinitiate payment: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrStaleWrite
	}
	payment.Status = domain.PaymentStatusPending
	return nil
}
