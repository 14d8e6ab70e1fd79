package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RatingService interface {
	AddReview(ctx context.Context, userID, productID primitive.ObjectID, in service.ReviewInput) (*domain.Rating, error)
	UpdateReview(ctx context.Context, userID, ratingID primitive.ObjectID, patch service.ReviewPatch) (*domain.Rating, error)
	DeleteReview(ctx context.Context, userID, ratingID primitive.ObjectID) (*domain.Rating, error)
	GetProductReviews(ctx context.Context, productID primitive.ObjectID) ([]domain.RatingView, error)
}

type RatingHandler struct {
	svc     RatingService
	timeout time.Duration
}

func NewRatingHandler(svc RatingService, timeout time.Duration) *RatingHandler {
	return &RatingHandler{svc: svc, timeout: timeout}
}

type ReviewRequestDTO struct {
	Rating *int    `json:"rating"`
	Review *string `json:"review"`
}

func (h *RatingHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, err := pathID(r, "productId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var req ReviewRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	rating, err := h.svc.AddReview(ctx, identityFrom(r.Context()).UserID, productID, service.ReviewInput{
		Rating: deref(req.Rating),
		Review: deref(req.Review),
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, "Review added successfully", rating)
}

func (h *RatingHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ratingID, err := pathID(r, "ratingId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var req ReviewRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	rating, err := h.svc.UpdateReview(ctx, identityFrom(r.Context()).UserID, ratingID, service.ReviewPatch{Rating: req.Rating, Review: req.Review})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Review updated successfully", rating)
}

func (h *RatingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ratingID, err := pathID(r, "ratingId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	rating, err := h.svc.DeleteReview(ctx, identityFrom(r.Context()).UserID, ratingID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Review deleted successfully", rating)
}

func (h *RatingHandler) ListForProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, err := pathID(r, "productId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	reviews, err := h.svc.GetProductReviews(ctx, productID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Product reviews fetched successfully", reviews)
}
