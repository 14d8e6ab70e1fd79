package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerCache trips after consecutive Redis failures so a dead cache costs
// one fast error per call instead of a network timeout. Misses count as success.
type BreakerCache[T any] struct {
	next Cache[T]
	cb   *gobreaker.CircuitBreaker[*T]
}

func NewBreakerCache[T any](name string, next Cache[T], failures uint32, openFor time.Duration) *BreakerCache[T] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrStaleGeneration)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("cache circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerCache[T]{next: next, cb: gobreaker.NewCircuitBreaker[*T](settings)}
}

func (b *BreakerCache[T]) Get(ctx context.Context, key string) (*T, error) {
	return b.cb.Execute(func() (*T, error) {
		return b.next.Get(ctx, key)
	})
}

func (b *BreakerCache[T]) Generation(ctx context.Context, key string) (int64, error) {
	var gen int64
	_, err := b.cb.Execute(func() (*T, error) {
		var err error
		gen, err = b.next.Generation(ctx, key)
		return nil, err
	})
	return gen, err
}

func (b *BreakerCache[T]) Set(ctx context.Context, key string, gen int64, value *T) error {
	_, err := b.cb.Execute(func() (*T, error) {
		return nil, b.next.Set(ctx, key, gen, value)
	})
	return err
}

func (b *BreakerCache[T]) Delete(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() (*T, error) {
		return nil, b.next.Delete(ctx, key)
	})
	return err
}

func (b *BreakerCache[T]) State() gobreaker.State {
	return b.cb.State()
}
