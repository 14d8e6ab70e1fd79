package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
)

const cacheOpTimeout = time.Second

// notFound turns repository.ErrNotFound into a NotFound domain error and
// passes any other error through.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound(format, args...)
	}
	return err
}

func invalidateCache[T any](c cache.Cache[T], key string) {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := c.Delete(ctx, key); err != nil {
		slog.Warn("cache invalidate error", "key", key, "error", err)
	}
}

// cacheGeneration must be read before loading the value from the store. ok is
// false when the cache is unavailable and the fill should be skipped.
func cacheGeneration[T any](ctx context.Context, c cache.Cache[T], key string) (gen int64, ok bool) {
	if c == nil {
		return 0, false
	}
	gen, err := c.Generation(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "cache generation error", "key", key, "error", err)
		return 0, false
	}
	return gen, true
}

func fillCache[T any](c cache.Cache[T], key string, gen int64, value *T) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	err := c.Set(ctx, key, gen, value)
	switch {
	case errors.Is(err, cache.ErrStaleGeneration):
		slog.Debug("cache fill skipped, key invalidated during read", "key", key)
	case err != nil:
		slog.Warn("cache set error", "key", key, "error", err)
	}
}

// readCache returns the cached value or nil. Errors other than a miss are logged.
func readCache[T any](ctx context.Context, c cache.Cache[T], key string) *T {
	if c == nil {
		return nil
	}
	v, err := c.Get(ctx, key)
	if err == nil {
		return v
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		slog.WarnContext(ctx, "cache get error", "key", key, "error", err)
	}
	return nil
}

func orderEvent(eventType string, order *domain.Order, withItems bool, at time.Time) (*domain.OutboxEvent, error) {
	payload := domain.OrderEvent{
		OrderID:    order.ID.Hex(),
		UserID:     order.User.Hex(),
		Status:     string(order.OrderStatus),
		OccurredAt: at,
	}
	if eventType == domain.EventPaymentSucceeded {
		payload.Status = string(domain.PaymentStatusSuccess)
	}
	if withItems {
		for _, item := range order.OrderItems {
			payload.Items = append(payload.Items, domain.OrderEventItem{ProductID: item.Product.Hex(), Quantity: item.Quantity})
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return &domain.OutboxEvent{
		AggregateID: order.ID.Hex(),
		EventType:   eventType,
		Payload:     data,
		CreatedAt:   at,
	}, nil
}
