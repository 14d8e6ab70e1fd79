package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AddressService interface {
	AddAddress(ctx context.Context, userID primitive.ObjectID, in domain.ShippingAddress, makeDefault bool) (*domain.Address, error)
	ListAddresses(ctx context.Context, userID primitive.ObjectID) ([]domain.Address, error)
	UpdateAddress(ctx context.Context, userID, addressID primitive.ObjectID, in domain.ShippingAddress) (*domain.Address, error)
	DeleteAddress(ctx context.Context, userID, addressID primitive.ObjectID) error
	SetDefaultAddress(ctx context.Context, userID, addressID primitive.ObjectID) (*domain.Address, error)
}

type AddressHandler struct {
	svc     AddressService
	timeout time.Duration
}

func NewAddressHandler(svc AddressService, timeout time.Duration) *AddressHandler {
	return &AddressHandler{svc: svc, timeout: timeout}
}

type AddressRequestDTO struct {
	domain.ShippingAddress
	IsDefault bool `json:"isDefault"`
}

func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddressRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	addr, err := h.svc.AddAddress(ctx, identityFrom(r.Context()).UserID, req.ShippingAddress, req.IsDefault)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, "Address created successfully", addr)
}

func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	addrs, err := h.svc.ListAddresses(ctx, identityFrom(r.Context()).UserID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if addrs == nil {
		addrs = []domain.Address{}
	}
	respondJSON(w, http.StatusOK, "Addresses fetched successfully", addrs)
}

func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	addressID, err := pathID(r, "addressId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var req AddressRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	addr, err := h.svc.UpdateAddress(ctx, identityFrom(r.Context()).UserID, addressID, req.ShippingAddress)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Address updated successfully", addr)
}

func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	addressID, err := pathID(r, "addressId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := h.svc.DeleteAddress(ctx, identityFrom(r.Context()).UserID, addressID); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Address deleted successfully", nil)
}

func (h *AddressHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	addressID, err := pathID(r, "addressId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	addr, err := h.svc.SetDefaultAddress(ctx, identityFrom(r.Context()).UserID, addressID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Address set as default successfully", addr)
}
