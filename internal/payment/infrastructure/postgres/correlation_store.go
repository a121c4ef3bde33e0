package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"paybridge/internal/payment/domain"
)

// CorrelationStore persists the one-to-one binding between local orders
// and the external order numbers sent to the provider.
type CorrelationStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewCorrelationStore(log *slog.Logger, pool *pgxpool.Pool) *CorrelationStore {
	return &CorrelationStore{log: log, pool: pool}
}

// Insert is idempotent per order: the external id derivation is
// deterministic, so a conflicting row is necessarily the same binding.
func (s *CorrelationStore) Insert(ctx context.Context, externalID, orderID string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO external_payments (external_id, order_id) VALUES ($1,$2) ON CONFLICT (order_id) DO NOTHING`,
		externalID, orderID)
	return err
}

func (s *CorrelationStore) FindOrder(ctx context.Context, externalID string) (string, error) {
	var orderID string
	err := s.pool.QueryRow(ctx, `SELECT order_id FROM external_payments WHERE external_id=$1`, externalID).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", domain.ErrCorrelationNotFound, externalID)
	}
	if err != nil {
		return "", err
	}
	return orderID, nil
}
