package domain

import "time"

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusProcessing     Status = "processing"
	StatusComplete       Status = "complete"
	StatusCanceled       Status = "canceled"
)

// HistoryEntry is one immutable, timestamped note on an order's audit
// trail.
type HistoryEntry struct {
	At   time.Time
	Note string
}

// Order is the local aggregate driven by provider signals. Amounts are in
// the currency's minor unit.
type Order struct {
	ID            string
	GrandTotal    int64
	TotalPaid     int64
	TotalRefunded int64
	Currency      string
	Status        Status
	History       []HistoryEntry
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewOrder(id string, grandTotal int64, currency string) Order {
	now := time.Now().UTC()
	return Order{
		ID:         id,
		GrandTotal: grandTotal,
		Currency:   currency,
		Status:     StatusPendingPayment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CanCancel reports whether the order is still in a cancellable state.
// Finalized orders (complete or already canceled) are not.
func (o *Order) CanCancel() bool {
	return o.Status == StatusPendingPayment || o.Status == StatusProcessing
}

func (o *Order) Cancel(note string) {
	o.Status = StatusCanceled
	o.AddHistory(note)
}

func (o *Order) MarkProcessing() {
	o.Status = StatusProcessing
}

func (o *Order) MarkComplete() {
	o.Status = StatusComplete
}

func (o *Order) MarkPendingPayment() {
	o.Status = StatusPendingPayment
}

func (o *Order) AddHistory(note string) {
	o.History = append(o.History, HistoryEntry{At: time.Now().UTC(), Note: note})
}
