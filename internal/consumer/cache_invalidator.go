package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/fjod/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
)

const groupID = "storefront-cache-invalidator"

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Evicter is satisfied by every cache.Cache.
type Evicter interface {
	Delete(ctx context.Context, key string) error
}

// CacheInvalidator replays order events against the product and cart caches.
// Services already evict after commit; this repeats the eviction once the
// event is relayed, so a dropped eviction does not outlive the next event.
type CacheInvalidator struct {
	reader   MessageReader
	products Evicter
	carts    Evicter
}

func NewKafkaReader(topic string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewCacheInvalidator(reader MessageReader, products, carts Evicter) *CacheInvalidator {
	return &CacheInvalidator{reader: reader, products: products, carts: carts}
}

func (c *CacheInvalidator) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.processMessage(ctx); errors.Is(err, io.EOF) {
			return
		}
	}
}

func (c *CacheInvalidator) Close() {
	if err := c.reader.Close(); err != nil {
		slog.Error("error closing kafka reader", "error", err)
	}
}

func (c *CacheInvalidator) processMessage(ctx context.Context) error {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
			slog.ErrorContext(ctx, "error reading message", "error", err)
		}
		return err
	}

	eventType := eventTypeOf(m)
	var event domain.OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		slog.WarnContext(ctx, "skipping unparseable event", "event_type", eventType, "offset", m.Offset, "error", err)
		return nil
	}

	for _, item := range event.Items {
		c.evict(ctx, c.products, item.ProductID)
	}
	if eventType == domain.EventOrderCreated {
		c.evict(ctx, c.carts, event.UserID)
	}
	slog.DebugContext(ctx, "event applied to cache", "event_type", eventType, "order_id", event.OrderID, "items", len(event.Items))
	return nil
}

func (c *CacheInvalidator) evict(ctx context.Context, cache Evicter, key string) {
	if cache == nil || key == "" {
		return
	}
	if err := cache.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "cache invalidate error", "key", key, "error", err)
	}
}

func eventTypeOf(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
