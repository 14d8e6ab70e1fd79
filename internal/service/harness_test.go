package service

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var testPaymentSecret = []byte("payment-secret")

type testEnv struct {
	db           *memDB
	cartCache    *mapCache[domain.Cart]
	productCache *mapCache[domain.Product]
	mail         *recordingSender
	tokens       *auth.TokenManager

	users     *UserService
	addresses *AddressService
	catalog   *CatalogService
	carts     *CartService
	orders    *OrderService
	payments  *PaymentService
	ratings   *RatingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newMemDB()
	env := &testEnv{
		db:           db,
		cartCache:    newMapCache[domain.Cart](),
		productCache: newMapCache[domain.Product](),
		mail:         &recordingSender{},
		tokens: auth.NewTokenManager(auth.TokenConfig{
			AccessSecret:  []byte("access-secret"),
			RefreshSecret: []byte("refresh-secret"),
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    time.Hour,
		}),
	}

	users, products := fakeUsers{db}, fakeProducts{db}
	env.users = NewUserService(users, env.tokens, auth.NewPasswordHasher(4), env.mail, "http://shop.test/api/v1/users/verify-email")
	env.addresses = NewAddressService(db, fakeAddresses{db})
	env.catalog = NewCatalogService(fakeCategories{db}, products, env.productCache)
	env.carts = NewCartService(fakeCarts{db}, products, env.cartCache)
	env.orders = NewOrderService(OrderDeps{
		Tx:           db,
		Carts:        fakeCarts{db},
		Products:     products,
		Orders:       fakeOrders{db},
		Users:        users,
		Outbox:       fakeOutbox{db},
		CartCache:    env.cartCache,
		ProductCache: env.productCache,
	})
	env.payments = NewPaymentService(db, fakeOrders{db}, fakePayments{db}, fakeOutbox{db}, testPaymentSecret)
	env.ratings = NewRatingService(db, fakeRatings{db}, products, users, env.productCache)
	return env
}

// seedUser stores a user directly, bypassing registration.
func (e *testEnv) seedUser(t *testing.T, email string, role domain.Role, verified bool) *domain.User {
	t.Helper()
	hash, err := auth.NewPasswordHasher(4).Hash("secret")
	require.NoError(t, err)
	u := &domain.User{FullName: "Test User", Email: email, PasswordHash: hash, Role: role, IsEmailVerified: verified}
	require.NoError(t, fakeUsers{e.db}.Create(context.Background(), u))
	return u
}

func (e *testEnv) seedCategory(t *testing.T, name string) *domain.Category {
	t.Helper()
	c, err := e.catalog.CreateCategory(context.Background(), primitive.NewObjectID(), CategoryInput{Name: name, Description: name + " things"})
	require.NoError(t, err)
	return c
}

func (e *testEnv) seedProduct(t *testing.T, category primitive.ObjectID, name, price string, stock int) *domain.Product {
	t.Helper()
	p, err := e.catalog.CreateProduct(context.Background(), primitive.NewObjectID(), ProductInput{
		Name:        name,
		Description: "a " + name,
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		Images:      []string{"https://img.test/" + name + ".png"},
		Category:    category,
	})
	require.NoError(t, err)
	return p
}

func testAddress() *domain.ShippingAddress {
	return &domain.ShippingAddress{
		FullName:    "Asha Rao",
		PhoneNumber: "9999999999",
		Street:      "12 MG Road",
		City:        "Pune",
		State:       "MH",
		Pincode:     "411001",
		Country:     "IN",
	}
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, domain.KindOf(err), "unexpected error: %v", err)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
