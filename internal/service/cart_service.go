package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/singleflight"
)

// maxCartAttempts bounds retries when two requests modify the same cart.
const maxCartAttempts = 3

type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	cache    cache.CartCache
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository, cartCache cache.CartCache) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		cache:    cartCache,
	}
}

// AddToCart adds quantity of a product at its current price, or increments
// the existing line item. The line item keeps the price it was first added at.
func (s *CartService) AddToCart(ctx context.Context, userID, productID primitive.ObjectID, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.InvalidInput("quantity must be at least 1")
	}
	product, err := s.products.GetActive(ctx, productID)
	if err != nil {
		return nil, notFound(err, "product not found")
	}

	return s.mutate(ctx, userID, true, func(cart *domain.Cart) error {
		if i := cart.IndexOf(productID); i >= 0 {
			cart.Items[i].Quantity += quantity
			return nil
		}
		cart.Items = append(cart.Items, domain.CartItem{
			Product:         productID,
			Quantity:        quantity,
			PriceAtThatTime: product.Price,
		})
		return nil
	})
}

func (s *CartService) UpdateCart(ctx context.Context, userID, productID primitive.ObjectID, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.InvalidInput("quantity must be at least 1")
	}
	return s.mutate(ctx, userID, false, func(cart *domain.Cart) error {
		i := cart.IndexOf(productID)
		if i < 0 {
			return domain.NotFound("product not found in cart")
		}
		cart.Items[i].Quantity = quantity
		return nil
	})
}

func (s *CartService) RemoveFromCart(ctx context.Context, userID, productID primitive.ObjectID) (*domain.Cart, error) {
	return s.mutate(ctx, userID, false, func(cart *domain.Cart) error {
		i := cart.IndexOf(productID)
		if i < 0 {
			return domain.NotFound("product not found in cart")
		}
		cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
		return nil
	})
}

func (s *CartService) ClearCart(ctx context.Context, userID primitive.ObjectID) error {
	defer invalidateCache(s.cache, userID.Hex())

	for attempt := 1; ; attempt++ {
		cart, err := s.carts.GetByUser(ctx, userID)
		if err != nil {
			return notFound(err, "cart not found")
		}
		err = s.carts.Delete(ctx, cart)
		if !errors.Is(err, repository.ErrStaleWrite) {
			return err
		}
		if attempt == maxCartAttempts {
			return domain.Conflict("cart is being modified, try again")
		}
	}
}

func (s *CartService) GetCart(ctx context.Context, userID primitive.ObjectID) (*domain.CartView, error) {
	key := userID.Hex()
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		if cached := readCache(ctx, s.cache, key); cached != nil {
			return cached, nil
		}

		gen, cacheable := cacheGeneration(ctx, s.cache, key)
		cart, err := s.carts.GetByUser(ctx, userID)
		if err != nil {
			return nil, notFound(err, "cart not found")
		}
		if cacheable {
			fillCache(s.cache, key, gen, cart)
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, v.(*domain.Cart))
}

// mutate loads the user's cart, applies fn, recomputes the total and saves
// with an optimistic version check, retrying when another request won the race.
func (s *CartService) mutate(ctx context.Context, userID primitive.ObjectID, create bool, fn func(*domain.Cart) error) (*domain.Cart, error) {
	defer invalidateCache(s.cache, userID.Hex())

	for attempt := 1; ; attempt++ {
		cart, err := s.carts.GetByUser(ctx, userID)
		switch {
		case errors.Is(err, repository.ErrNotFound) && create:
			cart = &domain.Cart{User: userID}
		case err != nil:
			return nil, notFound(err, "cart not found")
		}

		if err := fn(cart); err != nil {
			return nil, err
		}
		cart.Recalculate()

		err = s.carts.Save(ctx, cart)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, repository.ErrStaleWrite) {
			return nil, fmt.Errorf("save cart: %w", err)
		}
		if attempt == maxCartAttempts {
			return nil, domain.Conflict("cart is being modified, try again")
		}
	}
}

func (s *CartService) populate(ctx context.Context, cart *domain.Cart) (*domain.CartView, error) {
	products, err := s.products.GetMany(ctx, cart.ProductIDs())
	if err != nil {
		return nil, err
	}

	view := &domain.CartView{
		ID:         cart.ID,
		User:       cart.User,
		Items:      make([]domain.CartItemView, 0, len(cart.Items)),
		TotalPrice: cart.TotalPrice,
		UpdatedAt:  cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		summary := domain.ProductSummary{ID: item.Product}
		if p, ok := products[item.Product]; ok {
			summary = p.Summary()
		}
		view.Items = append(view.Items, domain.CartItemView{
			Product:         summary,
			Quantity:        item.Quantity,
			PriceAtThatTime: item.PriceAtThatTime,
		})
	}
	return view, nil
}
