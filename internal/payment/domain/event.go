package domain

import "fmt"

// EventKind is the closed set of webhook event types this integration
// understands. Parsing is the single place a raw type string enters the
// system; everything downstream switches exhaustively on the kind.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindPaymentCaptured
	KindPaymentAuthorized
	KindPaymentExpired
	KindPaymentCancelled
	KindPaymentRefunded
	KindPaymentRefundCreated
)

var kindNames = map[EventKind]string{
	KindPaymentCaptured:      "payment.captured",
	KindPaymentAuthorized:    "payment.authorized",
	KindPaymentExpired:       "payment.expired",
	KindPaymentCancelled:     "payment.cancelled",
	KindPaymentRefunded:      "payment.refunded",
	KindPaymentRefundCreated: "payment.refund.created",
}

func (k EventKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseEventKind maps a provider event type string onto the closed union,
// failing with ErrUnknownEventKind for anything outside it so the
// provider's retry/alerting can react.
func ParseEventKind(s string) (EventKind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownEventKind, s)
}

// Refund is one sub-refund record inside a payment.refund.created event.
type Refund struct {
	ID     string
	Amount int64
}

// WebhookEvent is a parsed, already-authenticated inbound signal. It is
// never persisted; only its effects on the order are.
type WebhookEvent struct {
	Kind             EventKind
	ExternalOrderNum string
	Amount           int64
	AmountRefunded   int64
	Currency         string
	PaymentType      string
	PaymentDeadline  string
	Refunds          []Refund
}
