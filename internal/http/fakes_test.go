package http

import (
	"context"
	"sync"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	adminID    = primitive.NewObjectID()
	customerID = primitive.NewObjectID()
)

// tokenAuth maps the literal tokens "admin" and "customer" to identities.
type tokenAuth struct{}

func (tokenAuth) Authenticate(_ context.Context, token string) (*domain.Identity, error) {
	switch token {
	case "admin":
		return &domain.Identity{UserID: adminID, Role: domain.RoleAdmin}, nil
	case "customer":
		return &domain.Identity{UserID: customerID, Role: domain.RoleCustomer}, nil
	}
	return nil, domain.Unauthorized("invalid access token")
}

// Each fake embeds its interface so that only the methods a test needs are
// implemented; anything else panics and surfaces as a 500.

type fakeCatalog struct {
	CatalogService
	mu         sync.Mutex
	categories []service.CategoryInput
	products   *domain.PageResult[domain.Product]
	filter     domain.ProductFilter
	query      domain.PageQuery
	err        error
}

func (f *fakeCatalog) CreateCategory(_ context.Context, actor primitive.ObjectID, in service.CategoryInput) (*domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.categories = append(f.categories, in)
	return &domain.Category{ID: primitive.NewObjectID(), Name: in.Name, Description: in.Description, IsActive: true, CreatedBy: actor}, nil
}

func (f *fakeCatalog) ListProducts(_ context.Context, filter domain.ProductFilter, q domain.PageQuery) (*domain.PageResult[domain.Product], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter, f.query = filter, q
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

type fakeCarts struct {
	CartService
	mu       sync.Mutex
	added    []primitive.ObjectID
	quantity int
	err      error
}

func (f *fakeCarts) AddToCart(_ context.Context, userID, productID primitive.ObjectID, quantity int) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.added = append(f.added, productID)
	f.quantity = quantity
	return &domain.Cart{ID: primitive.NewObjectID(), User: userID}, nil
}

func (f *fakeCarts) ClearCart(context.Context, primitive.ObjectID) error {
	return f.err
}

type fakeOrders struct {
	OrderService
	orders  []domain.Order
	updated domain.OrderStatus
	err     error
}

func (f *fakeOrders) ListUserOrders(context.Context, primitive.ObjectID) ([]domain.Order, error) {
	return f.orders, f.err
}

func (f *fakeOrders) ListAllOrders(_ context.Context, q domain.PageQuery) (*domain.PageResult[domain.OrderView], error) {
	if f.err != nil {
		return nil, f.err
	}
	return domain.NewPageResult[domain.OrderView](nil, 0, q), nil
}

func (f *fakeOrders) UpdateOrderStatus(_ context.Context, orderID primitive.ObjectID, status domain.OrderStatus) (*domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updated = status
	return &domain.Order{ID: orderID, OrderStatus: status}, nil
}

type fakePayments struct {
	PaymentService
	status domain.PaymentStatus
	owner  primitive.ObjectID
	verify service.VerifyPaymentInput
	err    error
}

func (f *fakePayments) GetPaymentStatus(_ context.Context, userID, _ primitive.ObjectID) (domain.PaymentStatus, error) {
	if f.err != nil {
		return "", f.err
	}
	if userID != f.owner {
		return "", domain.NotFound("payment not found")
	}
	return f.status, nil
}

func (f *fakePayments) VerifyPayment(_ context.Context, _, orderID primitive.ObjectID, in service.VerifyPaymentInput) (*domain.Payment, error) {
	f.verify = in
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Payment{ID: primitive.NewObjectID(), Order: orderID, Status: domain.PaymentStatusSuccess}, nil
}

type fakeUsers struct {
	UserService
	session      *service.Session
	refreshToken string
	err          error
}

func (f *fakeUsers) Login(context.Context, string, string) (*service.Session, error) {
	return f.session, f.err
}

func (f *fakeUsers) Refresh(_ context.Context, token string) (*service.Session, error) {
	f.refreshToken = token
	return f.session, f.err
}

func (f *fakeUsers) Logout(context.Context, primitive.ObjectID) error {
	return f.err
}
