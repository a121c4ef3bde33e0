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

// SessionService begins hosted payment sessions: it binds the order to its
// correlation id, builds the signed return URL, asks the provider for a
// session and parks the order in pending_payment until a signal arrives.
type SessionService struct {
	log        *slog.Logger
	orders     OrderStore
	provider   ProviderClient
	correlator *Correlator

	secretKey     []byte
	publicBaseURL string
	returnPath    string
	locale        string
}

func NewSessionService(
	log *slog.Logger,
	orders OrderStore,
	provider ProviderClient,
	correlator *Correlator,
	secretKey []byte,
	publicBaseURL, returnPath, locale string,
) *SessionService {
	return &SessionService{
		log:           log,
		orders:        orders,
		provider:      provider,
		correlator:    correlator,
		secretKey:     secretKey,
		publicBaseURL: publicBaseURL,
		returnPath:    returnPath,
		locale:        locale,
	}
}

// Begin creates a hosted session for the order and returns the page URL to
// send the customer to. On provider failure the order is canceled (when it
// still can be) so it is not left in limbo, and ErrProviderUnavailable is
// returned for the HTTP layer to bounce the customer back to checkout.
func (s *SessionService) Begin(ctx context.Context, orderID, paymentMethod string) (string, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("load order %s: %w", orderID, err)
	}

	externalID, err := s.correlator.CreateCorrelation(ctx, o.ID)
	if err != nil {
		return "", err
	}

	sess, err := s.provider.CreateSession(ctx, CreateSessionRequest{
		ReturnURL:        s.returnURL(o.ID),
		DefaultLocale:    s.locale,
		PaymentTypes:     []string{paymentMethod},
		Amount:           o.GrandTotal,
		Currency:         o.Currency,
		ExternalOrderNum: externalID,
	})
	if err != nil {
		s.log.Error("error creating hosted session", "order_id", o.ID, "err", err)
		if errors.Is(err, domain.ErrProviderUnavailable) {
			s.failBegin(ctx, o.ID)
		}
		return "", err
	}

	err = s.orders.Update(ctx, o.ID, func(ctx context.Context, tx OrderTx, o *orderdomain.Order) error {
		o.MarkPendingPayment()
		o.AddHistory(fmt.Sprintf("hosted payment session %s created, awaiting payment", sess.ID))
		return nil
	})
	if err != nil {
		return "", err
	}

	s.log.Info("redirecting customer to hosted page", "order_id", o.ID, "session_id", sess.ID)
	return sess.URL, nil
}

// PaymentMethods lists what the provider offers. Degrades to an empty list
// on provider failure so the checkout page still renders.
func (s *SessionService) PaymentMethods(ctx context.Context) []PaymentMethod {
	methods, err := s.provider.PaymentMethods(ctx)
	if err != nil {
		s.log.Error("error retrieving payment methods from provider", "err", err)
		return []PaymentMethod{}
	}
	return methods
}

func (s *SessionService) returnURL(orderID string) string {
	tag := signing.Sign(signing.ReturnMessage(s.returnPath, orderID), s.secretKey)
	return fmt.Sprintf("%s%s?order_id=%s&hmac=%s", s.publicBaseURL, s.returnPath, orderID, tag)
}

func (s *SessionService) failBegin(ctx context.Context, orderID string) {
	err := s.orders.Update(ctx, orderID, func(ctx context.Context, tx OrderTx, o *orderdomain.Order) error {
		if !o.CanCancel() {
			return nil
		}
		o.Cancel("could not create hosted payment session")

		payload, err := json.Marshal(orderdomain.OrderCanceled{OrderID: o.ID, Reason: "session creation failed"})
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, orderdomain.EventOrderCanceled, payload)
	})
	if err != nil {
		s.log.Error("cancel after failed session creation", "order_id", orderID, "err", err)
	}
}
