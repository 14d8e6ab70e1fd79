package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ratingRepository struct {
	collection *mongo.Collection
}

func NewRatingRepository(db *mongo.Database) RatingRepository {
	return &ratingRepository{collection: db.Collection("ratings")}
}

func (r *ratingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	now := time.Now().UTC()
	if rating.ID.IsZero() {
		rating.ID = primitive.NewObjectID()
	}
	rating.CreatedAt, rating.UpdatedAt = now, now

	if _, err := r.collection.InsertOne(ctx, rating); err != nil {
		return insertErr(err, "rating")
	}
	return nil
}

func (r *ratingRepository) GetForUser(ctx context.Context, id, userID primitive.ObjectID) (*domain.Rating, error) {
	return findOne[domain.Rating](ctx, r.collection, bson.M{"_id": id, "user": userID}, "rating")
}

func (r *ratingRepository) Update(ctx context.Context, rating *domain.Rating) error {
	rating.UpdatedAt = time.Now().UTC()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": rating.ID, "user": rating.User},
		bson.M{"$set": bson.M{
			"rating":    rating.Rating,
			"review":    rating.Review,
			"updatedAt": rating.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update rating: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ratingRepository) Delete(ctx context.Context, id, userID primitive.ObjectID) (*domain.Rating, error) {
	var rating domain.Rating
	err := r.collection.FindOneAndDelete(ctx, bson.M{"_id": id, "user": userID}).Decode(&rating)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete rating: %w", err)
	}
	return &rating, nil
}

func (r *ratingRepository) ListByProduct(ctx context.Context, productID primitive.ObjectID) ([]domain.Rating, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return findAll[domain.Rating](ctx, r.collection, bson.M{"product": productID}, "ratings", opts)
}

// Stats recomputes the product aggregate; a product with no ratings yields zeroes.
func (r *ratingRepository) Stats(ctx context.Context, productID primitive.ObjectID) (domain.RatingStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"product": productID}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$product",
			"avgRating": bson.M{"$avg": "$rating"},
			"ratingCnt": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.RatingStats{}, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	var rows []domain.RatingStats
	if err := cursor.All(ctx, &rows); err != nil {
		return domain.RatingStats{}, fmt.Errorf("failed to decode rating stats: %w", err)
	}
	if len(rows) == 0 {
		return domain.RatingStats{}, nil
	}

	return rows[0], nil
}
