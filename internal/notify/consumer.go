package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	orderdomain "paybridge/internal/order/domain"
	"paybridge/pkg/idempotency"
	"paybridge/pkg/tracing"
)

// Consumer reads order events and triggers confirmation notifications.
// Delivery is at-least-once, so messages are deduped through the
// idempotency store before any side effect runs.
type Consumer struct {
	log      *slog.Logger
	reader   *kafka.Reader
	notifier Notifier
	idem     *idempotency.Store
	tracer   trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, notifier Notifier, idem *idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:      log,
		reader:   r,
		notifier: notifier,
		idem:     idem,
		tracer:   otel.Tracer("notify-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if seen {
			c.log.Info("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if headerValue(msg.Headers, "event_type") != orderdomain.EventOrderConfirmationRequested {
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, "OrderConfirmationRequested")

		var event orderdomain.OrderConfirmationRequested
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Error("unmarshal failed", "err", err)
			span.End()
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if err := c.notifier.OrderConfirmed(msgCtx, event); err != nil {
			c.log.Error("confirmation notify failed", "order_id", event.OrderID, "err", err)
		} else {
			c.log.Info("confirmation sent", "order_id", event.OrderID)
		}
		span.End()
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
