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

type productRepository struct {
	collection *mongo.Collection
}

func NewProductRepository(db *mongo.Database) ProductRepository {
	return &productRepository{collection: db.Collection("products")}
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	now := time.Now().UTC()
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	product.IsActive = true
	product.CreatedAt, product.UpdatedAt = now, now

	if _, err := r.collection.InsertOne(ctx, product); err != nil {
		return insertErr(err, "product")
	}
	return nil
}

func (r *productRepository) GetActive(ctx context.Context, id primitive.ObjectID) (*domain.Product, error) {
	return findOne[domain.Product](ctx, r.collection, bson.M{"_id": id, "isActive": true}, "product")
}

func (r *productRepository) GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*domain.Product, error) {
	out := make(map[primitive.ObjectID]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	products, err := findAll[domain.Product](ctx, r.collection, bson.M{"_id": bson.M{"$in": ids}}, "products")
	if err != nil {
		return nil, err
	}
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

func (r *productRepository) List(ctx context.Context, f domain.ProductFilter, q domain.PageQuery) ([]domain.Product, int64, error) {
	filter := bson.M{"isActive": true}
	if f.Category != nil {
		filter["category"] = *f.Category
	}
	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		filter["price"] = price
	}

	return findPage[domain.Product](ctx, r.collection, filter, q, "products")
}

func (r *productRepository) Update(ctx context.Context, id primitive.ObjectID, changes domain.ProductChanges) (*domain.Product, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if changes.Name != nil {
		set["name"] = *changes.Name
	}
	if changes.Description != nil {
		set["description"] = *changes.Description
	}
	if changes.Price != nil {
		set["price"] = *changes.Price
	}
	if changes.Stock != nil {
		set["stock"] = *changes.Stock
	}
	if changes.Images != nil {
		set["images"] = changes.Images
	}
	if changes.Category != nil {
		set["category"] = *changes.Category
	}

	var product domain.Product
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "isActive": true},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &product, nil
}

func (r *productRepository) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "isActive": true},
		bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productRepository) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "isActive": true, "stock": bson.M{"$gte": qty}},
		bson.M{
			"$inc": bson.M{"stock": -qty},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// IncrementStock restores stock even for deactivated products.
func (r *productRepository) IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"stock": qty},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productRepository) SetRatingStats(ctx context.Context, id primitive.ObjectID, stats domain.RatingStats) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"avgRating": stats.AvgRating,
			"ratingCnt": stats.RatingCnt,
			"updatedAt": time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update rating stats: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
