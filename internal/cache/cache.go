package cache

import (
	"context"
	"errors"

	"github.com/fjod/storefront/internal/domain"
)

// Cache stores JSON-encoded values of T under string keys.
//
// Every Delete bumps the key's generation. Readers take the generation before
// loading from the store and hand it to Set, which refuses to write once a
// Delete has happened in between.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (*T, error)
	Generation(ctx context.Context, key string) (int64, error)
	Set(ctx context.Context, key string, gen int64, value *T) error
	Delete(ctx context.Context, key string) error
}

type (
	CartCache    = Cache[domain.Cart]
	ProductCache = Cache[domain.Product]
)

var (
	ErrCacheMiss       = errors.New("cache miss")
	ErrStaleGeneration = errors.New("cache key invalidated since read")
)

const (
	CartPrefix    = "cart"
	ProductPrefix = "product"
)
