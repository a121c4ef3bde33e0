package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	orderdomain "paybridge/internal/order/domain"
	"paybridge/internal/payment/domain"
	"paybridge/pkg/signing"
)

// Outcome tells the HTTP layer where to send the customer after a hosted
// session. It is an explicit return value; nothing about the decision is
// smuggled through shared session state.
type Outcome int

const (
	// OutcomeSuccess: payment completed, send to the success page.
	OutcomeSuccess Outcome = iota
	// OutcomeRetryCheckout: order canceled, send back to the payment step.
	OutcomeRetryCheckout
	// OutcomeHome: order could not be canceled (already finalized by a
	// webhook), send to the home page rather than erroring.
	OutcomeHome
)

// RedirectHandler resolves the customer's return from a hosted payment
// session into a terminal outcome for the order.
type RedirectHandler struct {
	log        *slog.Logger
	orders     OrderStore
	provider   ProviderClient
	secretKey  []byte
	returnPath string
}

func NewRedirectHandler(log *slog.Logger, orders OrderStore, provider ProviderClient, secretKey []byte, returnPath string) *RedirectHandler {
	return &RedirectHandler{
		log:        log,
		orders:     orders,
		provider:   provider,
		secretKey:  secretKey,
		returnPath: returnPath,
	}
}

// HandleReturn verifies the signed return URL and advances or cancels the
// order. Verification runs before anything else; a bad tag returns
// ErrSignatureMismatch with no order mutation. A provider outage while
// resolving the session is treated as not-completed: stranding the
// customer without a retry is worse than an occasional false cancellation
// that the capture webhook later corrects.
func (h *RedirectHandler) HandleReturn(ctx context.Context, orderID, sessionID, tag string) (Outcome, error) {
	msg := signing.ReturnMessage(h.returnPath, orderID)
	if !signing.Verify(msg, h.secretKey, tag) {
		h.log.Info("return tag does not match expected value", "order_id", orderID)
		return 0, domain.ErrSignatureMismatch
	}

	completed, err := h.isSessionCompleted(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			return 0, err
		}
		h.log.Warn("session lookup failed, treating as not completed", "session_id", sessionID, "err", err)
		completed = false
	}

	if completed {
		return h.completeOrder(ctx, orderID)
	}
	return h.cancelOrder(ctx, orderID)
}

func (h *RedirectHandler) isSessionCompleted(ctx context.Context, sessionID string) (bool, error) {
	sess, err := h.provider.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	// Permissive toward "not yet paid": anything but the literal
	// completed status counts as not completed.
	return sess.Status == "completed", nil
}

func (h *RedirectHandler) completeOrder(ctx context.Context, orderID string) (Outcome, error) {
	err := h.orders.Update(ctx, orderID, func(ctx context.Context, tx OrderTx, o *orderdomain.Order) error {
		o.MarkProcessing()
		o.AddHistory(fmt.Sprintf("hosted payment session completed, paid %d %s", o.GrandTotal, o.Currency))

		payload, err := json.Marshal(orderdomain.OrderConfirmationRequested{
			OrderID:    o.ID,
			GrandTotal: o.GrandTotal,
			Currency:   o.Currency,
		})
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, orderdomain.EventOrderConfirmationRequested, payload)
	})
	if err != nil {
		return 0, err
	}
	h.log.Info("order advanced to processing after completed session", "order_id", orderID)
	return OutcomeSuccess, nil
}

func (h *RedirectHandler) cancelOrder(ctx context.Context, orderID string) (Outcome, error) {
	outcome := OutcomeHome
	err := h.orders.Update(ctx, orderID, func(ctx context.Context, tx OrderTx, o *orderdomain.Order) error {
		if !o.CanCancel() {
			return nil
		}
		o.Cancel("hosted payment session was not completed")
		outcome = OutcomeRetryCheckout

		payload, err := json.Marshal(orderdomain.OrderCanceled{OrderID: o.ID, Reason: "session not completed"})
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, orderdomain.EventOrderCanceled, payload)
	})
	if err != nil {
		return 0, err
	}
	h.log.Info("order not completed after session", "order_id", orderID, "cancelled", outcome == OutcomeRetryCheckout)
	return outcome, nil
}
