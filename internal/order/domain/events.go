package domain

// Outbox event types published on the order topic.
const (
	EventOrderConfirmationRequested = "OrderConfirmationRequested"
	EventOrderCanceled              = "OrderCanceled"
)

// OrderConfirmationRequested asks the notification collaborator to send
// the order-confirmation mail.
type OrderConfirmationRequested struct {
	OrderID    string `json:"order_id"`
	GrandTotal int64  `json:"grand_total"`
	Currency   string `json:"currency"`
}

// OrderCanceled tells the storefront to release reserved inventory and
// restore the customer's cart.
type OrderCanceled struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}
