package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type outboxRepository struct {
	collection *mongo.Collection
}

func NewOutboxRepository(db *mongo.Database) OutboxRepository {
	return &outboxRepository{collection: db.Collection("outbox")}
}

func (r *outboxRepository) Insert(ctx context.Context, event *domain.OutboxEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		return insertErr(err, "outbox event")
	}
	return nil
}

// GetUnprocessed returns the oldest unpublished events first.
func (r *outboxRepository) GetUnprocessed(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))
	return findAll[*domain.OutboxEvent](ctx, r.collection, bson.M{"processedAt": nil}, "outbox events", opts)
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"processedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *outboxRepository) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"processedAt": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("failed to purge outbox: %w", err)
	}
	return result.DeletedCount, nil
}
