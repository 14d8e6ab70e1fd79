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

type cartRepository struct {
	collection *mongo.Collection
}

func NewCartRepository(db *mongo.Database) CartRepository {
	return &cartRepository{collection: db.Collection("carts")}
}

func (r *cartRepository) GetByUser(ctx context.Context, userID primitive.ObjectID) (*domain.Cart, error) {
	return findOne[domain.Cart](ctx, r.collection, bson.M{"user": userID}, "cart")
}

func (r *cartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	now := time.Now().UTC()

	if cart.ID.IsZero() {
		cart.ID = primitive.NewObjectID()
		cart.CreatedAt, cart.UpdatedAt = now, now
		cart.Version = 1
		if _, err := r.collection.InsertOne(ctx, cart); err != nil {
			cart.ID, cart.Version = primitive.NilObjectID, 0
			if mongo.IsDuplicateKeyError(err) {
				// another request created the user's cart first
				return ErrStaleWrite
			}
			return fmt.Errorf("failed to create cart: %w", err)
		}
		return nil
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": cart.ID, "version": cart.Version},
		bson.M{
			"$set": bson.M{
				"items":      cart.Items,
				"totalPrice": cart.TotalPrice,
				"updatedAt":  now,
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to update cart: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrStaleWrite
	}

	cart.Version++
	cart.UpdatedAt = now
	return nil
}

func (r *cartRepository) Delete(ctx context.Context, cart *domain.Cart) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": cart.ID, "version": cart.Version})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrStaleWrite
	}
	return nil
}
