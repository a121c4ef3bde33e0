package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	orderdomain "paybridge/internal/order/domain"
	"paybridge/internal/payment/domain"
)

// Processor is the webhook event state machine. It receives parsed,
// authenticated events whose correlation has already been resolved to a
// local order, and applies the matching state transition. Delivery is
// at-least-once, so every branch must be safe to replay; the refund ledger
// is where that is load-bearing, because re-applying a refund would
// double-credit the customer.
type Processor struct {
	log    *slog.Logger
	orders OrderStore
}

func NewProcessor(log *slog.Logger, orders OrderStore) *Processor {
	return &Processor{log: log, orders: orders}
}

// Apply runs the event's effects against the order inside one serialized
// transaction. The order persists exactly once, after all sub-effects; on
// error it is left exactly as it was.
func (p *Processor) Apply(ctx context.Context, orderID string, ev domain.WebhookEvent) error {
	return p.orders.Update(ctx, orderID, func(ctx context.Context, tx OrderTx, o *orderdomain.Order) error {
		switch ev.Kind {
		case domain.KindPaymentCaptured:
			return p.applyCaptured(ctx, ev, o)
		case domain.KindPaymentAuthorized:
			return p.applyAuthorized(ctx, ev, o)
		case domain.KindPaymentExpired:
			return p.applyExpired(ctx, tx, ev, o)
		case domain.KindPaymentCancelled:
			return p.applyCancelled(ctx, tx, ev, o)
		case domain.KindPaymentRefunded:
			return p.applyRefunded(ctx, ev, o)
		case domain.KindPaymentRefundCreated:
			return p.applyRefundCreated(ctx, tx, ev, o)
		default:
			return fmt.Errorf("%w: %s", domain.ErrUnknownEventKind, ev.Kind)
		}
	})
}

func (p *Processor) applyCaptured(_ context.Context, ev domain.WebhookEvent, o *orderdomain.Order) error {
	o.TotalPaid += ev.Amount
	o.MarkProcessing()
	o.AddHistory(auditNote(ev, fmt.Sprintf("payment successfully received in the amount of %d %s", ev.Amount, ev.Currency)))
	return nil
}

func (p *Processor) applyAuthorized(_ context.Context, ev domain.WebhookEvent, o *orderdomain.Order) error {
	o.AddHistory(auditNote(ev, fmt.Sprintf("received payment authorization for type %s, payment deadline %s", ev.PaymentType, ev.PaymentDeadline)))
	return nil
}

func (p *Processor) applyExpired(ctx context.Context, tx OrderTx, ev domain.WebhookEvent, o *orderdomain.Order) error {
	o.Cancel(auditNote(ev, "payment was not received before expiry time"))
	return p.appendCanceled(ctx, tx, o.ID, "payment expired")
}

func (p *Processor) applyCancelled(ctx context.Context, tx OrderTx, ev domain.WebhookEvent, o *orderdomain.Order) error {
	if !o.CanCancel() {
		p.log.Info("cancellation notice for non-cancellable order ignored", "order_id", o.ID, "status", o.Status)
		return nil
	}
	o.Cancel(auditNote(ev, "received cancellation notice from provider"))
	return p.appendCanceled(ctx, tx, o.ID, "payment cancelled")
}

func (p *Processor) applyRefunded(_ context.Context, ev domain.WebhookEvent, o *orderdomain.Order) error {
	o.MarkComplete()
	o.AddHistory(auditNote(ev, "order has been fully refunded"))
	return nil
}

// applyRefundCreated sets the refunded total and issues one local credit
// record per sub-refund not yet in the ledger. Redelivered sub-refunds are
// skipped silently; they are a recognized case, not an error.
func (p *Processor) applyRefundCreated(ctx context.Context, tx OrderTx, ev domain.WebhookEvent, o *orderdomain.Order) error {
	o.TotalRefunded = ev.AmountRefunded

	for _, r := range ev.Refunds {
		seen, err := tx.RefundSeen(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("refund ledger lookup %s: %w", r.ID, err)
		}
		if seen {
			p.log.Info("refund already applied, skipping", "refund_id", r.ID, "order_id", o.ID)
			continue
		}

		note := auditNote(ev, fmt.Sprintf("refund for order created, amount %d %s", r.Amount, ev.Currency))
		creditID, err := tx.IssueCredit(ctx, o.ID, r.Amount, note)
		if err != nil {
			return fmt.Errorf("issue credit for refund %s: %w", r.ID, err)
		}
		if err := tx.RecordRefund(ctx, r.ID, creditID); err != nil {
			return fmt.Errorf("record refund %s: %w", r.ID, err)
		}
		o.AddHistory(note)
	}
	return nil
}

func (p *Processor) appendCanceled(ctx context.Context, tx OrderTx, orderID, reason string) error {
	payload, err := json.Marshal(orderdomain.OrderCanceled{OrderID: orderID, Reason: reason})
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, orderdomain.EventOrderCanceled, payload)
}

// auditNote prefixes the correlation id so admins can cross-reference the
// provider's records when several installations share one account.
func auditNote(ev domain.WebhookEvent, msg string) string {
	return fmt.Sprintf("external order %s: %s", ev.ExternalOrderNum, msg)
}
