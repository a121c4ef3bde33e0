package application

import (
	"context"

	orderdomain "paybridge/internal/order/domain"
)

// OrderStore loads orders and applies serialized mutations. Update runs fn
// inside a per-order exclusive section, so concurrent events on the same
// order apply as a strict sequence and the order persists exactly once
// after fn returns. A non-nil error from fn discards every effect.
type OrderStore interface {
	Get(ctx context.Context, id string) (orderdomain.Order, error)
	Update(ctx context.Context, id string, fn func(ctx context.Context, tx OrderTx, o *orderdomain.Order) error) error
}

// OrderTx exposes the side effects that must land in the same transaction
// as the order mutation.
type OrderTx interface {
	// AppendEvent enqueues an outbox event, published after commit.
	AppendEvent(ctx context.Context, eventType string, payload []byte) error
	// RefundSeen reports whether a provider refund id is already in the ledger.
	RefundSeen(ctx context.Context, refundID string) (bool, error)
	// IssueCredit creates a local credit record and returns its id.
	IssueCredit(ctx context.Context, orderID string, amount int64, comment string) (int64, error)
	// RecordRefund writes the ledger entry binding refundID to its credit record.
	RecordRefund(ctx context.Context, refundID string, creditMemoID int64) error
}

// CorrelationStore persists order/external-id bindings.
type CorrelationStore interface {
	Insert(ctx context.Context, externalID, orderID string) error
	FindOrder(ctx context.Context, externalID string) (string, error)
}

// Session is the provider's view of a hosted payment session.
type Session struct {
	ID     string
	Status string
}

// HostedSession is a freshly created session the customer gets sent to.
type HostedSession struct {
	ID  string
	URL string
}

type PaymentMethod struct {
	Type string
	Name string
}

type CreateSessionRequest struct {
	ReturnURL        string
	DefaultLocale    string
	PaymentTypes     []string
	Amount           int64
	Currency         string
	ExternalOrderNum string
}

// ProviderClient is the outbound API surface consumed from the provider.
type ProviderClient interface {
	GetSession(ctx context.Context, id string) (Session, error)
	CreateSession(ctx context.Context, req CreateSessionRequest) (HostedSession, error)
	PaymentMethods(ctx context.Context) ([]PaymentMethod, error)
}
