package notify

import (
	"context"
	"log/slog"

	orderdomain "paybridge/internal/order/domain"
)

// Notifier delivers the order-confirmation notification. Mail transport is
// an external collaborator; LogNotifier stands in where none is wired.
type Notifier interface {
	OrderConfirmed(ctx context.Context, ev orderdomain.OrderConfirmationRequested) error
}

type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) OrderConfirmed(_ context.Context, ev orderdomain.OrderConfirmationRequested) error {
	n.log.Info("order confirmation requested", "order_id", ev.OrderID, "grand_total", ev.GrandTotal, "currency", ev.Currency)
	return nil
}
