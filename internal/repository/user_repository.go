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

type userRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{collection: db.Collection("users")}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt, user.UpdatedAt = now, now

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		return insertErr(err, "user")
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return findOne[domain.User](ctx, r.collection, bson.M{"_id": id}, "user")
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return findOne[domain.User](ctx, r.collection, bson.M{"email": email}, "user")
}

func (r *userRepository) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.UserSummary, error) {
	out := make(map[primitive.ObjectID]domain.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	opts := options.Find().SetProjection(bson.M{"fullName": 1, "email": 1})
	summaries, err := findAll[domain.UserSummary](ctx, r.collection, bson.M{"_id": bson.M{"$in": ids}}, "users", opts)
	if err != nil {
		return nil, err
	}
	for _, s := range summaries {
		out[s.ID] = s
	}
	return out, nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	return r.set(ctx, id, bson.M{"passwordHash": hash})
}

func (r *userRepository) UpdateFullName(ctx context.Context, id primitive.ObjectID, fullName string) (*domain.User, error) {
	var user domain.User
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"fullName": fullName, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) MarkEmailVerified(ctx context.Context, id primitive.ObjectID) error {
	return r.set(ctx, id, bson.M{"isEmailVerified": true})
}

func (r *userRepository) BumpRefreshVersion(ctx context.Context, id primitive.ObjectID) (int64, error) {
	return r.incVersion(ctx, bson.M{"_id": id})
}

func (r *userRepository) RotateRefreshVersion(ctx context.Context, id primitive.ObjectID, expected int64) (int64, error) {
	v, err := r.incVersion(ctx, bson.M{"_id": id, "refreshTokenVersion": expected})
	if errors.Is(err, ErrNotFound) {
		return 0, ErrStaleWrite
	}
	return v, err
}

func (r *userRepository) incVersion(ctx context.Context, filter bson.M) (int64, error) {
	var user domain.User
	err := r.collection.FindOneAndUpdate(ctx, filter,
		bson.M{
			"$inc": bson.M{"refreshTokenVersion": 1},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"refreshTokenVersion": 1}),
	).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to bump refresh version: %w", err)
	}
	return user.RefreshTokenVersion, nil
}

func (r *userRepository) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updatedAt"] = time.Now().UTC()
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
