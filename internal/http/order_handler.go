package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderService interface {
	CreateOrder(ctx context.Context, userID primitive.ObjectID, in service.CreateOrderInput) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID primitive.ObjectID) ([]domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID primitive.ObjectID) (*domain.Order, error)
	ListAllOrders(ctx context.Context, q domain.PageQuery) (*domain.PageResult[domain.OrderView], error)
	UpdateOrderStatus(ctx context.Context, orderID primitive.ObjectID, status domain.OrderStatus) (*domain.Order, error)
	CancelOrder(ctx context.Context, userID, orderID primitive.ObjectID) (*domain.Order, error)
}

type OrdersHandler struct {
	svc     OrderService
	timeout time.Duration
}

func NewOrdersHandler(svc OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{svc: svc, timeout: timeout}
}

type CreateOrderRequestDTO struct {
	ShippingAddress *domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   domain.PaymentMethod    `json:"paymentMethod"`
}

type OrderStatusRequestDTO struct {
	OrderStatus domain.OrderStatus `json:"orderStatus"`
}

func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateOrderRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	order, err := h.svc.CreateOrder(ctx, identityFrom(r.Context()).UserID, service.CreateOrderInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, "Order created successfully", order)
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.svc.ListUserOrders(ctx, identityFrom(r.Context()).UserID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if len(orders) == 0 {
		respondJSON(w, http.StatusOK, "No orders found", []domain.Order{})
		return
	}
	respondJSON(w, http.StatusOK, "Orders fetched successfully", orders)
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := pathID(r, "orderId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	order, err := h.svc.GetOrder(ctx, identityFrom(r.Context()).UserID, orderID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Order fetched successfully", order)
}

func (h *OrdersHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q, err := parsePage(r, orderSorts)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	page, err := h.svc.ListAllOrders(ctx, q)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Orders fetched successfully", page)
}

func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := pathID(r, "orderId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var req OrderStatusRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	order, err := h.svc.UpdateOrderStatus(ctx, orderID, req.OrderStatus)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Order status updated successfully", order)
}

func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := pathID(r, "orderId")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	order, err := h.svc.CancelOrder(ctx, identityFrom(r.Context()).UserID, orderID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Order cancelled successfully", order)
}
