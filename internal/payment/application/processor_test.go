package application

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "paybridge/internal/order/domain"
	"paybridge/internal/payment/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func pendingOrder(id string, total int64) orderdomain.Order {
	return orderdomain.NewOrder(id, total, "JPY")
}

func TestProcessorPaymentCaptured(t *testing.T) {
	store := newMemOrderStore(pendingOrder("42", 500))
	p := NewProcessor(discardLogger(), store)

	ev := domain.WebhookEvent{
		Kind:             domain.KindPaymentCaptured,
		ExternalOrderNum: "salt-42",
		Amount:           500,
		Currency:         "JPY",
	}
	require.NoError(t, p.Apply(context.Background(), "42", ev))

	o, err := store.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, int64(500), o.TotalPaid)
	assert.Equal(t, orderdomain.StatusProcessing, o.Status)
	require.Len(t, o.History, 1)
	assert.Contains(t, o.History[0].Note, "external order salt-42")
}

func TestProcessorPaymentAuthorized(t *testing.T) {
	store := newMemOrderStore(pendingOrder("42", 500))
	p := NewProcessor(discardLogger(), store)

	ev := domain.WebhookEvent{
		Kind:             domain.KindPaymentAuthorized,
		ExternalOrderNum: "salt-42",
		PaymentType:      "konbini",
		PaymentDeadline:  "2026-09-01T00:00:00Z",
	}
	require.NoError(t, p.Apply(context.Background(), "42", ev))

	o, _ := store.Get(context.Background(), "42")
	assert.Equal(t, int64(0), o.TotalPaid, "authorization must not change totals")
	assert.Equal(t, orderdomain.StatusPendingPayment, o.Status, "authorization must not change state")
	require.Len(t, o.History, 1)
	assert.Contains(t, o.History[0].Note, "konbini")
}

func TestProcessorPaymentExpired(t *testing.T) {
	store := newMemOrderStore(pendingOrder("42", 500))
	p := NewProcessor(discardLogger(), store)

	ev := domain.WebhookEvent{Kind: domain.KindPaymentExpired, ExternalOrderNum: "salt-42"}
	require.NoError(t, p.Apply(context.Background(), "42", ev))

	o, _ := store.Get(context.Background(), "42")
	assert.Equal(t, orderdomain.StatusCanceled, o.Status)
	assert.Contains(t, store.eventTypes(), orderdomain.EventOrderCanceled)
}

func TestProcessorPaymentCancelled(t *testing.T) {
	t.Run("cancellable order is cancelled", func(t *testing.T) {
		store := newMemOrderStore(pendingOrder("42", 500))
		p := NewProcessor(discardLogger(), store)

		ev := domain.WebhookEvent{Kind: domain.KindPaymentCancelled, ExternalOrderNum: "salt-42"}
		require.NoError(t, p.Apply(context.Background(), "42", ev))

		o, _ := store.Get(context.Background(), "42")
		assert.Equal(t, orderdomain.StatusCanceled, o.Status)
	})

	t.Run("finalized order is left untouched", func(t *testing.T) {
		o := pendingOrder("42", 500)
		o.MarkComplete()
		store := newMemOrderStore(o)
		p := NewProcessor(discardLogger(), store)

		ev := domain.WebhookEvent{Kind: domain.KindPaymentCancelled, ExternalOrderNum: "salt-42"}
		require.NoError(t, p.Apply(context.Background(), "42", ev))

		got, _ := store.Get(context.Background(), "42")
		assert.Equal(t, orderdomain.StatusComplete, got.Status)
		assert.Empty(t, got.History)
	})
}

func TestProcessorPaymentRefunded(t *testing.T) {
	o := pendingOrder("42", 500)
	o.MarkProcessing()
	store := newMemOrderStore(o)
	p := NewProcessor(discardLogger(), store)

	ev := domain.WebhookEvent{Kind: domain.KindPaymentRefunded, ExternalOrderNum: "salt-42"}
	require.NoError(t, p.Apply(context.Background(), "42", ev))

	got, _ := store.Get(context.Background(), "42")
	assert.Equal(t, orderdomain.StatusComplete, got.Status)
}

func TestProcessorRefundCreatedIsIdempotent(t *testing.T) {
	o := pendingOrder("42", 500)
	o.MarkProcessing()
	store := newMemOrderStore(o)
	p := NewProcessor(discardLogger(), store)

	ev := domain.WebhookEvent{
		Kind:             domain.KindPaymentRefundCreated,
		ExternalOrderNum: "salt-42",
		Currency:         "JPY",
		AmountRefunded:   300,
		Refunds:          []domain.Refund{{ID: "ref_1", Amount: 300}},
	}

	// The provider delivers at least once; the same event arrives twice.
	require.NoError(t, p.Apply(context.Background(), "42", ev))
	require.NoError(t, p.Apply(context.Background(), "42", ev))

	got, _ := store.Get(context.Background(), "42")
	assert.Equal(t, int64(300), got.TotalRefunded, "refunded total must not double")
	assert.Len(t, store.credits, 1, "exactly one credit record per refund id")
	assert.Len(t, store.refunds, 1)
	assert.Equal(t, orderdomain.StatusProcessing, got.Status, "refund.created does not change state")
}

func TestProcessorRefundCreatedNewAndSeenMix(t *testing.T) {
	o := pendingOrder("42", 1000)
	o.MarkProcessing()
	store := newMemOrderStore(o)
	p := NewProcessor(discardLogger(), store)

	first := domain.WebhookEvent{
		Kind:             domain.KindPaymentRefundCreated,
		ExternalOrderNum: "salt-42",
		Currency:         "JPY",
		AmountRefunded:   300,
		Refunds:          []domain.Refund{{ID: "ref_1", Amount: 300}},
	}
	require.NoError(t, p.Apply(context.Background(), "42", first))

	// Redelivery carries the old sub-refund plus a new one.
	second := first
	second.AmountRefunded = 500
	second.Refunds = []domain.Refund{{ID: "ref_1", Amount: 300}, {ID: "ref_2", Amount: 200}}
	require.NoError(t, p.Apply(context.Background(), "42", second))

	got, _ := store.Get(context.Background(), "42")
	assert.Equal(t, int64(500), got.TotalRefunded)
	assert.Len(t, store.credits, 2)
}

func TestProcessorUnknownKindLeavesOrderUntouched(t *testing.T) {
	store := newMemOrderStore(pendingOrder("42", 500))
	p := NewProcessor(discardLogger(), store)

	ev := domain.WebhookEvent{Kind: domain.KindUnknown, ExternalOrderNum: "salt-42"}
	err := p.Apply(context.Background(), "42", ev)
	require.ErrorIs(t, err, domain.ErrUnknownEventKind)

	got, _ := store.Get(context.Background(), "42")
	assert.Equal(t, orderdomain.StatusPendingPayment, got.Status)
	assert.Empty(t, got.History)
	assert.Equal(t, int64(0), got.TotalPaid)
}

func TestProcessorConcurrentEventsSerialize(t *testing.T) {
	o := pendingOrder("42", 500)
	store := newMemOrderStore(o)
	p := NewProcessor(discardLogger(), store)

	captured := domain.WebhookEvent{
		Kind:             domain.KindPaymentCaptured,
		ExternalOrderNum: "salt-42",
		Amount:           500,
		Currency:         "JPY",
	}
	refund := domain.WebhookEvent{
		Kind:             domain.KindPaymentRefundCreated,
		ExternalOrderNum: "salt-42",
		Currency:         "JPY",
		AmountRefunded:   300,
		Refunds:          []domain.Refund{{ID: "ref_1", Amount: 300}},
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = p.Apply(context.Background(), "42", captured)
	}()
	go func() {
		defer wg.Done()
		_ = p.Apply(context.Background(), "42", refund)
	}()
	wg.Wait()

	got, _ := store.Get(context.Background(), "42")
	// Both effects land exactly once no matter how arrival interleaves.
	assert.Equal(t, int64(500), got.TotalPaid)
	assert.Equal(t, int64(300), got.TotalRefunded)
	assert.Len(t, store.credits, 1)
	assert.Len(t, got.History, 2)
}
