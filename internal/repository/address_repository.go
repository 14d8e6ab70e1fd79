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

type addressRepository struct {
	collection *mongo.Collection
}

func NewAddressRepository(db *mongo.Database) AddressRepository {
	return &addressRepository{collection: db.Collection("addresses")}
}

func (r *addressRepository) Create(ctx context.Context, addr *domain.Address) error {
	now := time.Now().UTC()
	if addr.ID.IsZero() {
		addr.ID = primitive.NewObjectID()
	}
	addr.CreatedAt, addr.UpdatedAt = now, now

	if _, err := r.collection.InsertOne(ctx, addr); err != nil {
		return insertErr(err, "address")
	}
	return nil
}

func (r *addressRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Address, error) {
	opts := options.Find().SetSort(bson.D{{Key: "isDefault", Value: -1}, {Key: "createdAt", Value: -1}})
	return findAll[domain.Address](ctx, r.collection, bson.M{"user": userID}, "addresses", opts)
}

func (r *addressRepository) GetForUser(ctx context.Context, id, userID primitive.ObjectID) (*domain.Address, error) {
	return findOne[domain.Address](ctx, r.collection, bson.M{"_id": id, "user": userID}, "address")
}

func (r *addressRepository) Update(ctx context.Context, addr *domain.Address) error {
	addr.UpdatedAt = time.Now().UTC()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": addr.ID, "user": addr.User},
		bson.M{"$set": bson.M{
			"fullName":    addr.FullName,
			"phoneNumber": addr.PhoneNumber,
			"street":      addr.Street,
			"city":        addr.City,
			"state":       addr.State,
			"pincode":     addr.Pincode,
			"country":     addr.Country,
			"updatedAt":   addr.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update address: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *addressRepository) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "user": userID})
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *addressRepository) ClearDefault(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"user": userID, "isDefault": true},
		bson.M{"$set": bson.M{"isDefault": false, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to clear default address: %w", err)
	}
	return nil
}

func (r *addressRepository) SetDefault(ctx context.Context, id, userID primitive.ObjectID) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "user": userID},
		bson.M{"$set": bson.M{"isDefault": true, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to set default address: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
