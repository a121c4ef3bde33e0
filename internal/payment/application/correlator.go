package application

import (
	"context"
	"fmt"

	"paybridge/internal/payment/domain"
)

// Correlator generates and resolves the external order numbers that bind
// local orders to the provider's records. Several installations may share
// one provider account, and each may use small incrementing order numbers,
// so the id combines a per-installation salt with the local order id: two
// installations' order #1 never collide as long as their salts differ.
type Correlator struct {
	salt  string
	store CorrelationStore
}

func NewCorrelator(salt string, store CorrelationStore) *Correlator {
	return &Correlator{salt: salt, store: store}
}

// CreateCorrelation derives the external id for an order and persists the
// binding. The derivation is deterministic, so requesting a second hosted
// session for the same order reuses the existing binding.
func (c *Correlator) CreateCorrelation(ctx context.Context, orderID string) (string, error) {
	externalID := fmt.Sprintf("%s-%s", c.salt, orderID)
	if err := c.store.Insert(ctx, externalID, orderID); err != nil {
		return "", fmt.Errorf("persist external payment: %w", err)
	}
	return externalID, nil
}

// ResolveOrder maps an inbound external order number back to the local
// order it was generated for.
func (c *Correlator) ResolveOrder(ctx context.Context, externalID string) (string, error) {
	orderID, err := c.store.FindOrder(ctx, externalID)
	if err != nil {
		return "", err
	}
	if orderID == "" {
		return "", domain.ErrCorrelationNotFound
	}
	return orderID, nil
}
