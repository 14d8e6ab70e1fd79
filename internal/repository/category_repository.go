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

type categoryRepository struct {
	collection *mongo.Collection
}

func NewCategoryRepository(db *mongo.Database) CategoryRepository {
	return &categoryRepository{collection: db.Collection("categories")}
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	now := time.Now().UTC()
	if category.ID.IsZero() {
		category.ID = primitive.NewObjectID()
	}
	category.IsActive = true
	category.CreatedAt, category.UpdatedAt = now, now

	if _, err := r.collection.InsertOne(ctx, category); err != nil {
		return insertErr(err, "category")
	}
	return nil
}

func (r *categoryRepository) GetActive(ctx context.Context, id primitive.ObjectID) (*domain.Category, error) {
	return findOne[domain.Category](ctx, r.collection, bson.M{"_id": id, "isActive": true}, "category")
}

func (r *categoryRepository) FindActiveByName(ctx context.Context, name string) (*domain.Category, error) {
	return findOne[domain.Category](ctx, r.collection, bson.M{"name": name, "isActive": true}, "category")
}

func (r *categoryRepository) List(ctx context.Context, q domain.PageQuery) ([]domain.Category, int64, error) {
	return findPage[domain.Category](ctx, r.collection, bson.M{"isActive": true}, q, "categories")
}

func (r *categoryRepository) Update(ctx context.Context, category *domain.Category) error {
	category.UpdatedAt = time.Now().UTC()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": category.ID, "isActive": true},
		bson.M{"$set": bson.M{
			"name":        category.Name,
			"description": category.Description,
			"updatedAt":   category.UpdatedAt,
		}},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update category: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *categoryRepository) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "isActive": true},
		bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
