package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paybridge/internal/payment/domain"
)

func TestCorrelatorSaltsKeepInstallationsApart(t *testing.T) {
	// Two installations sharing one provider account, both with a local
	// order #1.
	a := NewCorrelator("inst-a", newMemCorrelations())
	b := NewCorrelator("inst-b", newMemCorrelations())

	idA, err := a.CreateCorrelation(context.Background(), "1")
	require.NoError(t, err)
	idB, err := b.CreateCorrelation(context.Background(), "1")
	require.NoError(t, err)

	assert.NotEqual(t, idA, idB)
}

func TestCorrelatorCreateIsDeterministic(t *testing.T) {
	store := newMemCorrelations()
	c := NewCorrelator("inst-a", store)

	first, err := c.CreateCorrelation(context.Background(), "42")
	require.NoError(t, err)
	second, err := c.CreateCorrelation(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, first, second, "re-requesting a session reuses the binding")
	assert.Equal(t, 1, store.inserted)
}

func TestCorrelatorResolveRoundTrip(t *testing.T) {
	c := NewCorrelator("inst-a", newMemCorrelations())

	id, err := c.CreateCorrelation(context.Background(), "42")
	require.NoError(t, err)

	orderID, err := c.ResolveOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "42", orderID)
}

func TestCorrelatorResolveUnknown(t *testing.T) {
	c := NewCorrelator("inst-a", newMemCorrelations())

	_, err := c.ResolveOrder(context.Background(), "other-install-1")
	assert.ErrorIs(t, err, domain.ErrCorrelationNotFound)
}
