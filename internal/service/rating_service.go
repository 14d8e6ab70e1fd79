package service

import (
	"context"
	"errors"
	"strings"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RatingService struct {
	tx           repository.TxRunner
	ratings      repository.RatingRepository
	products     repository.ProductRepository
	users        repository.UserRepository
	productCache cache.ProductCache
}

func NewRatingService(tx repository.TxRunner, ratings repository.RatingRepository, products repository.ProductRepository, users repository.UserRepository, productCache cache.ProductCache) *RatingService {
	return &RatingService{
		tx:           tx,
		ratings:      ratings,
		products:     products,
		users:        users,
		productCache: productCache,
	}
}

type ReviewInput struct {
	Rating int
	Review string
}

type ReviewPatch struct {
	Rating *int
	Review *string
}

func (s *RatingService) AddReview(ctx context.Context, userID, productID primitive.ObjectID, in ReviewInput) (*domain.Rating, error) {
	review := strings.TrimSpace(in.Review)
	if !domain.ValidRating(in.Rating) {
		return nil, domain.InvalidInput("rating must be between %d and %d", domain.MinRating, domain.MaxRating)
	}
	if review == "" {
		return nil, domain.InvalidInput("review is required")
	}
	if _, err := s.products.GetActive(ctx, productID); err != nil {
		return nil, notFound(err, "product not found")
	}

	rating := &domain.Rating{User: userID, Product: productID, Rating: in.Rating, Review: review}
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		rating.ID = primitive.NilObjectID
		if err := s.ratings.Create(ctx, rating); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return domain.Conflict("you have already reviewed this product")
			}
			return err
		}
		return s.refreshStats(ctx, productID)
	})
	if err != nil {
		return nil, err
	}
	invalidateCache(s.productCache, productID.Hex())
	return rating, nil
}

func (s *RatingService) UpdateReview(ctx context.Context, userID, ratingID primitive.ObjectID, patch ReviewPatch) (*domain.Rating, error) {
	if patch.Rating != nil && !domain.ValidRating(*patch.Rating) {
		return nil, domain.InvalidInput("rating must be between %d and %d", domain.MinRating, domain.MaxRating)
	}
	if patch.Review != nil && strings.TrimSpace(*patch.Review) == "" {
		return nil, domain.InvalidInput("review cannot be empty")
	}

	var rating *domain.Rating
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if rating, err = s.ratings.GetForUser(ctx, ratingID, userID); err != nil {
			return notFound(err, "review not found")
		}
		if patch.Rating != nil {
			rating.Rating = *patch.Rating
		}
		if patch.Review != nil {
			rating.Review = strings.TrimSpace(*patch.Review)
		}
		if err := s.ratings.Update(ctx, rating); err != nil {
			return notFound(err, "review not found")
		}
		return s.refreshStats(ctx, rating.Product)
	})
	if err != nil {
		return nil, err
	}
	invalidateCache(s.productCache, rating.Product.Hex())
	return rating, nil
}

func (s *RatingService) DeleteReview(ctx context.Context, userID, ratingID primitive.ObjectID) (*domain.Rating, error) {
	var rating *domain.Rating
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if rating, err = s.ratings.Delete(ctx, ratingID, userID); err != nil {
			return notFound(err, "review not found")
		}
		return s.refreshStats(ctx, rating.Product)
	})
	if err != nil {
		return nil, err
	}
	invalidateCache(s.productCache, rating.Product.Hex())
	return rating, nil
}

// GetProductReviews lists reviews newest first with reviewers populated.
func (s *RatingService) GetProductReviews(ctx context.Context, productID primitive.ObjectID) ([]domain.RatingView, error) {
	ratings, err := s.ratings.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]primitive.ObjectID, 0, len(ratings))
	for _, r := range ratings {
		userIDs = append(userIDs, r.User)
	}
	users, err := s.users.Summaries(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	views := make([]domain.RatingView, 0, len(ratings))
	for _, r := range ratings {
		view := domain.RatingView{Rating: r}
		if u, ok := users[r.User]; ok {
			view.Reviewer = &u
		}
		views = append(views, view)
	}
	return views, nil
}

// refreshStats must run inside the transaction of the rating write.
func (s *RatingService) refreshStats(ctx context.Context, productID primitive.ObjectID) error {
	stats, err := s.ratings.Stats(ctx, productID)
	if err != nil {
		return err
	}
	if err := s.products.SetRatingStats(ctx, productID, stats); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}
