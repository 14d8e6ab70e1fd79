package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any, what string, opts ...*options.FindOneOptions) (*T, error) {
	var doc T
	err := coll.FindOne(ctx, filter, opts...).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	return &doc, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, what string, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", what, err)
	}
	docs := []T{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", what, err)
	}
	return docs, nil
}

// findPage runs a paged find and the matching count.
func findPage[T any](ctx context.Context, coll *mongo.Collection, filter any, q domain.PageQuery, what string) ([]T, int64, error) {
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", what, err)
	}

	opts := options.Find().
		SetSort(sortSpec(q)).
		SetSkip(q.Skip()).
		SetLimit(int64(q.Limit))

	docs, err := findAll[T](ctx, coll, filter, what, opts)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// sortSpec orders by the requested field with _id as a stable tiebreaker.
func sortSpec(q domain.PageQuery) bson.D {
	field, dir := q.SortField, 1
	if field == "" {
		field, dir = "createdAt", -1
	} else if q.SortDesc {
		dir = -1
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}
}

func insertErr(err error, what string) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return fmt.Errorf("failed to insert %s: %w", what, err)
}
