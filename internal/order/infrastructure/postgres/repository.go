package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"paybridge/internal/order/domain"
	"paybridge/internal/payment/application"
	"paybridge/pkg/tracing"
)

var ErrNotFound = errors.New("order not found")

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := r.load(ctx, r.pool, id, false)
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// Update applies fn to the order under its row lock. Everything fn does
// through the transaction lands atomically with the order row and new
// audit entries; an error from fn rolls the whole thing back.
func (r *Repository) Update(ctx context.Context, id string, fn func(ctx context.Context, tx application.OrderTx, o *domain.Order) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	o, err := r.load(ctx, tx, id, true)
	if err != nil {
		return err
	}
	histBefore := len(o.History)

	if err := fn(ctx, &orderTx{tx: tx, orderID: o.ID}, &o); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `UPDATE orders SET total_paid=$2, total_refunded=$3, status=$4, updated_at=now() WHERE id=$1`,
		o.ID, o.TotalPaid, o.TotalRefunded, o.Status)
	if err != nil {
		return err
	}

	if len(o.History) > histBefore {
		batch := &pgx.Batch{}
		for _, entry := range o.History[histBefore:] {
			batch.Queue(`INSERT INTO order_history (order_id, note, created_at) VALUES ($1,$2,$3)`,
				o.ID, entry.Note, entry.At)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) load(ctx context.Context, q querier, id string, forUpdate bool) (domain.Order, error) {
	query := `SELECT id, grand_total, total_paid, total_refunded, currency, status, created_at, updated_at FROM orders WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var o domain.Order
	err := q.QueryRow(ctx, query, id).
		Scan(&o.ID, &o.GrandTotal, &o.TotalPaid, &o.TotalRefunded, &o.Currency, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return domain.Order{}, err
	}

	rows, err := q.Query(ctx, `SELECT note, created_at FROM order_history WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(&entry.Note, &entry.At); err != nil {
			return domain.Order{}, err
		}
		o.History = append(o.History, entry)
	}
	return o, rows.Err()
}

// orderTx carries the side effects that must commit with the order.
type orderTx struct {
	tx      pgx.Tx
	orderID string
}

func (t *orderTx) AppendEvent(ctx context.Context, eventType string, payload []byte) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status) VALUES ('order', $1, $2, $3, $4, 'pending')`,
		t.orderID, eventType, payload, tracing.Traceparent(ctx))
	return err
}

func (t *orderTx) RefundSeen(ctx context.Context, refundID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM refunds WHERE refund_id=$1)`, refundID).Scan(&exists)
	return exists, err
}

func (t *orderTx) IssueCredit(ctx context.Context, orderID string, amount int64, comment string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO credit_memos (order_id, amount, comment, created_at) VALUES ($1,$2,$3,now()) RETURNING id`,
		orderID, amount, comment).Scan(&id)
	return id, err
}

func (t *orderTx) RecordRefund(ctx context.Context, refundID string, creditMemoID int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO refunds (refund_id, credit_memo_id) VALUES ($1,$2)`, refundID, creditMemoID)
	return err
}
