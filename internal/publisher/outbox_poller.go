package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	batchSize       = 100
	purgeInterval   = time.Hour
	processedMaxAge = 7 * 24 * time.Hour
)

// OutboxStore is the part of the outbox repository the poller needs.
type OutboxStore interface {
	GetUnprocessed(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id string) error
	PurgeProcessed(ctx context.Context, before time.Time) (int64, error)
}

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller relays committed outbox events to Kafka. Delivery is at least
// once: an event is marked processed only after the broker accepted it.
type OutboxPoller struct {
	eventTick time.Duration
	purgeTick time.Duration
	maxAge    time.Duration
	repo      OutboxStore
	writer    Writer
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
	}
}

func NewOutboxPoller(repo OutboxStore, writer Writer, interval time.Duration) *OutboxPoller {
	return &OutboxPoller{
		eventTick: interval,
		purgeTick: purgeInterval,
		maxAge:    processedMaxAge,
		repo:      repo,
		writer:    writer,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	purgeTicker := time.NewTicker(p.purgeTick)
	defer eventTicker.Stop()
	defer purgeTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-purgeTicker.C:
			p.purgeProcessed(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessed(ctx, batchSize)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch outbox events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			// later events must not overtake this one
			slog.ErrorContext(ctx, "failed to publish outbox event", "event_id", event.ID, "event_type", event.EventType, "error", err)
			return
		}

		if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
			slog.ErrorContext(ctx, "failed to mark outbox event processed", "event_id", event.ID, "error", err)
			continue
		}
	}
}

func (p *OutboxPoller) purgeProcessed(ctx context.Context) {
	n, err := p.repo.PurgeProcessed(ctx, time.Now().UTC().Add(-p.maxAge))
	if err != nil {
		slog.ErrorContext(ctx, "failed to purge outbox", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "outbox purged", "deleted", n)
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *domain.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps per-order ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
