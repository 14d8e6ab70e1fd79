package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrDuplicate         = errors.New("duplicate key")
	ErrStaleWrite        = errors.New("document changed since it was read")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// TxRunner runs fn inside a multi-document transaction. Every repository
// call made with the ctx passed to fn joins the transaction; fn may be
// re-run on transient errors.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.UserSummary, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error
	UpdateFullName(ctx context.Context, id primitive.ObjectID, fullName string) (*domain.User, error)
	MarkEmailVerified(ctx context.Context, id primitive.ObjectID) error
	// BumpRefreshVersion unconditionally increments the refresh token version.
	BumpRefreshVersion(ctx context.Context, id primitive.ObjectID) (int64, error)
	// RotateRefreshVersion increments the version only if it still equals
	// expected, returning ErrStaleWrite otherwise.
	RotateRefreshVersion(ctx context.Context, id primitive.ObjectID, expected int64) (int64, error)
}

type AddressRepository interface {
	Create(ctx context.Context, addr *domain.Address) error
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Address, error)
	GetForUser(ctx context.Context, id, userID primitive.ObjectID) (*domain.Address, error)
	Update(ctx context.Context, addr *domain.Address) error
	Delete(ctx context.Context, id, userID primitive.ObjectID) error
	ClearDefault(ctx context.Context, userID primitive.ObjectID) error
	SetDefault(ctx context.Context, id, userID primitive.ObjectID) error
}

type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetActive(ctx context.Context, id primitive.ObjectID) (*domain.Category, error)
	FindActiveByName(ctx context.Context, name string) (*domain.Category, error)
	List(ctx context.Context, q domain.PageQuery) ([]domain.Category, int64, error)
	Update(ctx context.Context, category *domain.Category) error
	Deactivate(ctx context.Context, id primitive.ObjectID) error
}

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetActive(ctx context.Context, id primitive.ObjectID) (*domain.Product, error)
	// GetMany returns products by id regardless of isActive; missing ids are absent from the map.
	GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*domain.Product, error)
	List(ctx context.Context, f domain.ProductFilter, q domain.PageQuery) ([]domain.Product, int64, error)
	// Update sets only the fields present in changes and returns the stored product.
	Update(ctx context.Context, id primitive.ObjectID, changes domain.ProductChanges) (*domain.Product, error)
	Deactivate(ctx context.Context, id primitive.ObjectID) error
	// DecrementStock fails with ErrInsufficientStock when stock < qty or the product is inactive.
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error
	IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error
	SetRatingStats(ctx context.Context, id primitive.ObjectID, stats domain.RatingStats) error
}

type CartRepository interface {
	GetByUser(ctx context.Context, userID primitive.ObjectID) (*domain.Cart, error)
	// Save inserts a new cart or updates one whose Version still matches,
	// returning ErrStaleWrite on a lost race. Version is incremented on success.
	Save(ctx context.Context, cart *domain.Cart) error
	// Delete removes the cart only if its version still matches.
	Delete(ctx context.Context, cart *domain.Cart) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Order, error)
	GetForUser(ctx context.Context, id, userID primitive.ObjectID) (*domain.Order, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Order, error)
	List(ctx context.Context, q domain.PageQuery) ([]domain.Order, int64, error)
	// UpdateStatus moves the order from -> to, returning ErrStaleWrite if it is no longer in from.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to domain.OrderStatus, at time.Time) error
	SetPaymentStatus(ctx context.Context, id primitive.ObjectID, status domain.PaymentStatus) error
	MarkPaid(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByOrder(ctx context.Context, orderID primitive.ObjectID) (*domain.Payment, error)
	GetForUser(ctx context.Context, id, userID primitive.ObjectID) (*domain.Payment, error)
	FindForVerification(ctx context.Context, orderID, userID primitive.ObjectID, providerPaymentID string) (*domain.Payment, error)
	// UpdateStatus returns ErrStaleWrite if the payment is no longer in from.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to domain.PaymentStatus) error
	// Reinitiate resets a FAILED payment to PENDING under a new provider id.
	Reinitiate(ctx context.Context, payment *domain.Payment) error
}

type RatingRepository interface {
	Create(ctx context.Context, rating *domain.Rating) error
	GetForUser(ctx context.Context, id, userID primitive.ObjectID) (*domain.Rating, error)
	Update(ctx context.Context, rating *domain.Rating) error
	Delete(ctx context.Context, id, userID primitive.ObjectID) (*domain.Rating, error)
	ListByProduct(ctx context.Context, productID primitive.ObjectID) ([]domain.Rating, error)
	Stats(ctx context.Context, productID primitive.ObjectID) (domain.RatingStats, error)
}

type OutboxRepository interface {
	Insert(ctx context.Context, event *domain.OutboxEvent) error
	GetUnprocessed(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id string) error
	PurgeProcessed(ctx context.Context, before time.Time) (int64, error)
}
