package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderService struct {
	tx           repository.TxRunner
	carts        repository.CartRepository
	products     repository.ProductRepository
	orders       repository.OrderRepository
	users        repository.UserRepository
	outbox       repository.OutboxRepository
	cartCache    cache.CartCache
	productCache cache.ProductCache
	now          func() time.Time
}

type OrderDeps struct {
	Tx           repository.TxRunner
	Carts        repository.CartRepository
	Products     repository.ProductRepository
	Orders       repository.OrderRepository
	Users        repository.UserRepository
	Outbox       repository.OutboxRepository
	CartCache    cache.CartCache
	ProductCache cache.ProductCache
}

func NewOrderService(d OrderDeps) *OrderService {
	return &OrderService{
		tx:           d.Tx,
		carts:        d.Carts,
		products:     d.Products,
		orders:       d.Orders,
		users:        d.Users,
		outbox:       d.Outbox,
		cartCache:    d.CartCache,
		productCache: d.ProductCache,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type CreateOrderInput struct {
	ShippingAddress *domain.ShippingAddress
	PaymentMethod   domain.PaymentMethod
}

// CreateOrder converts the user's cart into an order. Order insert, stock
// decrements, cart removal and the order.created event commit together.
func (s *OrderService) CreateOrder(ctx context.Context, userID primitive.ObjectID, in CreateOrderInput) (*domain.Order, error) {
	cart, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, "cart not found")
	}
	if len(cart.Items) == 0 {
		return nil, domain.InvalidInput("cart is empty, nothing to order")
	}

	if in.ShippingAddress == nil || in.PaymentMethod == "" {
		return nil, domain.InvalidInput("shippingAddress and paymentMethod are required")
	}
	address := trimAddress(*in.ShippingAddress)
	if missing := address.Missing(); len(missing) > 0 {
		return nil, domain.InvalidInput("shipping address is incomplete").WithDetails(missing...)
	}
	if !in.PaymentMethod.IsValid() {
		return nil, domain.InvalidInput("unsupported payment method %q, accepted values are %v", in.PaymentMethod, domain.PaymentMethods)
	}

	products, err := s.products.GetMany(ctx, cart.ProductIDs())
	if err != nil {
		return nil, err
	}
	for _, item := range cart.Items {
		p, ok := products[item.Product]
		if !ok || !p.IsActive {
			return nil, domain.NotFound("product %s is no longer available", item.Product.Hex())
		}
		if p.Stock < item.Quantity {
			return nil, domain.InsufficientStock("insufficient stock for product %s", p.Name)
		}
	}

	now := s.now()
	order := &domain.Order{
		ID:              primitive.NewObjectID(),
		User:            userID,
		OrderItems:      make([]domain.OrderItem, 0, len(cart.Items)),
		ShippingAddress: address,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   domain.PaymentStatusPending,
		OrderStatus:     domain.OrderStatusPending,
		TotalAmount:     cart.TotalPrice,
	}
	for _, item := range cart.Items {
		order.OrderItems = append(order.OrderItems, domain.OrderItem(item))
	}

	event, err := orderEvent(domain.EventOrderCreated, order, true, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}
		for _, item := range order.OrderItems {
			if err := s.products.DecrementStock(ctx, item.Product, item.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return domain.InsufficientStock("insufficient stock for product %s", products[item.Product].Name)
				}
				return err
			}
		}
		if err := s.carts.Delete(ctx, cart); err != nil {
			if errors.Is(err, repository.ErrStaleWrite) {
				return domain.Conflict("cart changed while placing the order, review it and try again")
			}
			return err
		}
		return s.outbox.Insert(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	invalidateCache(s.cartCache, userID.Hex())
	for _, item := range order.OrderItems {
		invalidateCache(s.productCache, item.Product.Hex())
	}
	slog.InfoContext(ctx, "order created", "order_id", order.ID.Hex(), "user_id", userID.Hex(), "total", order.TotalAmount.String())
	return order, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID primitive.ObjectID) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID primitive.ObjectID) (*domain.Order, error) {
	order, err := s.orders.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	return order, nil
}

// ListAllOrders is the admin view with customers and products populated.
func (s *OrderService) ListAllOrders(ctx context.Context, q domain.PageQuery) (*domain.PageResult[domain.OrderView], error) {
	orders, total, err := s.orders.List(ctx, q)
	if err != nil {
		return nil, err
	}

	userIDs := make([]primitive.ObjectID, 0, len(orders))
	var productIDs []primitive.ObjectID
	for _, o := range orders {
		userIDs = append(userIDs, o.User)
		for _, item := range o.OrderItems {
			productIDs = append(productIDs, item.Product)
		}
	}
	users, err := s.users.Summaries(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	products, err := s.products.GetMany(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	views := make([]domain.OrderView, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		view := domain.OrderView{Order: o, Products: make([]domain.ProductSummary, 0, len(o.OrderItems))}
		if u, ok := users[o.User]; ok {
			view.Customer = &u
		}
		for _, item := range o.OrderItems {
			if p, ok := products[item.Product]; ok {
				view.Products = append(view.Products, p.Summary())
			} else {
				view.Products = append(view.Products, domain.ProductSummary{ID: item.Product})
			}
		}
		views = append(views, view)
	}
	return domain.NewPageResult(views, total, q), nil
}

// UpdateOrderStatus applies an admin transition. Cancelling restocks like CancelOrder.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID primitive.ObjectID, status domain.OrderStatus) (*domain.Order, error) {
	if !status.IsValid() {
		return nil, domain.InvalidInput("invalid order status %q", status)
	}

	var order *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.orders.GetByID(ctx, orderID); err != nil {
			return notFound(err, "order not found")
		}
		if !order.OrderStatus.CanTransitionTo(status) {
			return domain.InvalidTransition("cannot move order from %s to %s", order.OrderStatus, status)
		}
		return s.transition(ctx, order, status)
	})
	if err != nil {
		return nil, err
	}
	s.evictProducts(order, status)
	return order, nil
}

// CancelOrder cancels the caller's own PENDING or SHIPPED order and returns its items to stock.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID primitive.ObjectID) (*domain.Order, error) {
	var order *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.orders.GetForUser(ctx, orderID, userID); err != nil {
			return notFound(err, "order not found")
		}
		if order.OrderStatus.IsTerminal() {
			return domain.Conflict("order is already %s", order.OrderStatus)
		}
		return s.transition(ctx, order, domain.OrderStatusCancelled)
	})
	if err != nil {
		return nil, err
	}
	s.evictProducts(order, domain.OrderStatusCancelled)
	return order, nil
}

// transition must run inside a transaction.
func (s *OrderService) transition(ctx context.Context, order *domain.Order, to domain.OrderStatus) error {
	now := s.now()
	if err := s.orders.UpdateStatus(ctx, order.ID, order.OrderStatus, to, now); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return domain.Conflict("order was modified concurrently, try again")
		}
		return err
	}

	order.OrderStatus = to
	order.UpdatedAt = now
	eventType := domain.EventOrderStatusChanged
	switch to {
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusCancelled:
		order.CancelledAt = &now
		eventType = domain.EventOrderCancelled
		for _, item := range order.OrderItems {
			if err := s.products.IncrementStock(ctx, item.Product, item.Quantity); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("restock %s: %w", item.Product.Hex(), err)
			}
		}
	}

	event, err := orderEvent(eventType, order, to == domain.OrderStatusCancelled, now)
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, event)
}

func (s *OrderService) evictProducts(order *domain.Order, status domain.OrderStatus) {
	if status != domain.OrderStatusCancelled {
		return
	}
	for _, item := range order.OrderItems {
		invalidateCache(s.productCache, item.Product.Hex())
	}
}
