package domain

// ExternalPayment binds a local order to the correlation id the provider
// sees as external_order_num. Created once when a hosted session is
// requested, immutable afterwards.
type ExternalPayment struct {
	OrderID    string
	ExternalID string
}

// RefundRecord proves a provider refund id has already been applied. At
// most one record per refund id, ever.
type RefundRecord struct {
	RefundID     string
	CreditMemoID int64
}
