package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CartService interface {
	AddToCart(ctx context.Context, userID, productID primitive.ObjectID, quantity int) (*domain.Cart, error)
	UpdateCart(ctx context.Context, userID, productID primitive.ObjectID, quantity int) (*domain.Cart, error)
	RemoveFromCart(ctx context.Context, userID, productID primitive.ObjectID) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID primitive.ObjectID) error
	GetCart(ctx context.Context, userID primitive.ObjectID) (*domain.CartView, error)
}

type CartHandler struct {
	svc     CartService
	timeout time.Duration
}

func NewCartHandler(svc CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{svc: svc, timeout: timeout}
}

type CartItemRequestDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CartItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	productID, err := parseID(req.ProductID, "productId")
	if err != nil {
		respondErr(w, r, err)
		return
	}

	cart, err := h.svc.AddToCart(ctx, identityFrom(r.Context()).UserID, productID, req.Quantity)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, "Product added to cart", cart)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.svc.GetCart(ctx, identityFrom(r.Context()).UserID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Cart fetched successfully", cart)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CartItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	productID, err := parseID(req.ProductID, "productId")
	if err != nil {
		respondErr(w, r, err)
		return
	}

	cart, err := h.svc.UpdateCart(ctx, identityFrom(r.Context()).UserID, productID, req.Quantity)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Cart updated successfully", cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, err := pathID(r, "productId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	cart, err := h.svc.RemoveFromCart(ctx, identityFrom(r.Context()).UserID, productID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Product removed from cart", cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.svc.ClearCart(ctx, identityFrom(r.Context()).UserID); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Cart cleared successfully", nil)
}
