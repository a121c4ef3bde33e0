package application

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "paybridge/internal/order/domain"
	"paybridge/internal/payment/domain"
	"paybridge/pkg/signing"
)

func newSessionService(store *memOrderStore, provider ProviderClient) *SessionService {
	correlator := NewCorrelator("inst-a", newMemCorrelations())
	return NewSessionService(discardLogger(), store, provider, correlator, testSecret, "https://shop.example", returnPath, "ja")
}

func TestBeginCreatesSessionAndParksOrder(t *testing.T) {
	store := newMemOrderStore(pendingOrder("42", 500))
	provider := &fakeProvider{created: HostedSession{ID: "sess_1", URL: "https://pay.example/sessions/sess_1"}}
	s := newSessionService(store, provider)

	url, err := s.Begin(context.Background(), "42", "credit_card")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/sessions/sess_1", url)

	assert.Equal(t, "inst-a-42", provider.lastCreate.ExternalOrderNum)
	assert.Equal(t, int64(500), provider.lastCreate.Amount)
	assert.Equal(t, "JPY", provider.lastCreate.Currency)
	assert.Equal(t, []string{"credit_card"}, provider.lastCreate.PaymentTypes)

	o, _ := store.Get(context.Background(), "42")
	assert.Equal(t, orderdomain.StatusPendingPayment, o.Status)
	require.Len(t, o.History, 1)
	assert.Contains(t, o.History[0].Note, "sess_1")
}

func TestBeginSignsReturnURL(t *testing.T) {
	store := newMemOrderStore(pendingOrder("42", 500))
	provider := &fakeProvider{created: HostedSession{ID: "sess_1", URL: "https://pay.example/s/1"}}
	s := newSessionService(store, provider)

	_, err := s.Begin(context.Background(), "42", "credit_card")
	require.NoError(t, err)

	tag := signing.Sign(signing.ReturnMessage(returnPath, "42"), testSecret)
	expected := fmt.Sprintf("https://shop.example%s?order_id=42&hmac=%s", returnPath, tag)
	assert.Equal(t, expected, provider.lastCreate.ReturnURL)
}

func TestBeginProviderFailureCancelsOrder(t *testing.T) {
	store := newMemOrderStore(pendingOrder("42", 500))
	provider := &fakeProvider{createErr: fmt.Errorf("%w: status 502", domain.ErrProviderUnavailable)}
	s := newSessionService(store, provider)

	_, err := s.Begin(context.Background(), "42", "credit_card")
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)

	o, _ := store.Get(context.Background(), "42")
	assert.Equal(t, orderdomain.StatusCanceled, o.Status)
	assert.Contains(t, store.eventTypes(), orderdomain.EventOrderCanceled)
}

func TestPaymentMethodsDegradesToEmptyList(t *testing.T) {
	store := newMemOrderStore()

	t.Run("provider ok", func(t *testing.T) {
		provider := &fakeProvider{methods: []PaymentMethod{{Type: "konbini", Name: "Konbini"}}}
		s := newSessionService(store, provider)
		assert.Len(t, s.PaymentMethods(context.Background()), 1)
	})

	t.Run("provider down", func(t *testing.T) {
		provider := &fakeProvider{methodsErr: fmt.Errorf("%w: timeout", domain.ErrProviderUnavailable)}
		s := newSessionService(store, provider)
		assert.Empty(t, s.PaymentMethods(context.Background()))
	})
}
