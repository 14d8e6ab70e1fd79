package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentService interface {
	InitiatePayment(ctx context.Context, userID, orderID primitive.ObjectID, in service.InitiatePaymentInput) (*domain.Payment, error)
	VerifyPayment(ctx context.Context, userID, orderID primitive.ObjectID, in service.VerifyPaymentInput) (*domain.Payment, error)
	GetPaymentStatus(ctx context.Context, userID, paymentID primitive.ObjectID) (domain.PaymentStatus, error)
}

type PaymentHandler struct {
	svc     PaymentService
	timeout time.Duration
}

func NewPaymentHandler(svc PaymentService, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{svc: svc, timeout: timeout}
}

type InitiatePaymentRequestDTO struct {
	PaymentProvider domain.PaymentProvider `json:"paymentProvider"`
	Currency        string                 `json:"currency"`
}

type VerifyPaymentRequestDTO struct {
	ProviderPaymentID string `json:"providerPaymentId"`
	ProviderOrderID   string `json:"providerOrderId"`
	Signature         string `json:"signature"`
}

type PaymentStatusResponseDTO struct {
	PaymentID primitive.ObjectID   `json:"paymentId"`
	Status    domain.PaymentStatus `json:"status"`
}

func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := pathID(r, "orderId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var req InitiatePaymentRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	payment, err := h.svc.InitiatePayment(ctx, identityFrom(r.Context()).UserID, orderID, service.InitiatePaymentInput{
		Provider: req.PaymentProvider,
		Currency: req.Currency,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, "Payment initiated successfully", payment)
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := pathID(r, "orderId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var req VerifyPaymentRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	payment, err := h.svc.VerifyPayment(ctx, identityFrom(r.Context()).UserID, orderID, service.VerifyPaymentInput{
		ProviderPaymentID: req.ProviderPaymentID,
		ProviderOrderID:   req.ProviderOrderID,
		Signature:         req.Signature,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Payment verified successfully", payment)
}

func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	paymentID, err := pathID(r, "paymentId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	status, err := h.svc.GetPaymentStatus(ctx, identityFrom(r.Context()).UserID, paymentID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Payment status fetched successfully", PaymentStatusResponseDTO{PaymentID: paymentID, Status: status})
}
