package usecase

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueryFixture() (*OrderQuery, *fakeOrders, *fakeCache) {
	fp := &fakeProducts{byID: map[int64]ProductRecord{}}
	ord := newFakeOrders(fp, newFakePayments())
	cache := newFakeCache()
	return NewOrderQuery(ord, cache), ord, cache
}

func seedOrder(ord *fakeOrders, id string, userID, guestEmail *string) {
	ord.orders[id] = &OrderRecord{
		ID:         id,
		UserID:     userID,
		GuestEmail: guestEmail,
		Status:     "PENDING",
		Total:      decimal.RequireFromString("50.00"),
	}
}

func TestConfirmationAccess(t *testing.T) {
	uc, ord, _ := newQueryFixture()
	owner := "user-1"
	guest := "Guest@Example.com"
	seedOrder(ord, "mine", &owner, nil)
	seedOrder(ord, "guest-order", nil, &guest)

	t.Run("owning user", func(t *testing.T) {
		d, err := uc.Confirmation(context.Background(), "mine", "", Viewer{UserID: "user-1"})
		require.NoError(t, err)
		assert.Equal(t, "mine", d.Order.ID)
	})

	t.Run("other user forbidden", func(t *testing.T) {
		_, err := uc.Confirmation(context.Background(), "mine", "", Viewer{UserID: "user-2"})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin", func(t *testing.T) {
		_, err := uc.Confirmation(context.Background(), "mine", "", Viewer{UserID: "user-2", Admin: true})
		assert.NoError(t, err)
	})

	t.Run("guest email case-insensitive match", func(t *testing.T) {
		_, err := uc.Confirmation(context.Background(), "guest-order", "guest@example.com", Viewer{})
		assert.NoError(t, err)
	})

	t.Run("guest email mismatch", func(t *testing.T) {
		_, err := uc.Confirmation(context.Background(), "guest-order", "other@example.com", Viewer{})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("guest without email", func(t *testing.T) {
		_, err := uc.Confirmation(context.Background(), "guest-order", "", Viewer{})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := uc.Confirmation(context.Background(), "nope", "", Viewer{Admin: true})
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestStatusCacheFirst(t *testing.T) {
	uc, ord, cache := newQueryFixture()
	seedOrder(ord, "ord-1", nil, nil)
	cache.statuses["ord-1"] = "PAID"

	// cache wins even though the row says PENDING
	s, err := uc.Status(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "PAID", s)
}

func TestStatusMissBackfillsCache(t *testing.T) {
	uc, ord, cache := newQueryFixture()
	seedOrder(ord, "ord-1", nil, nil)

	s, err := uc.Status(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "PENDING", s)
	assert.Equal(t, "PENDING", cache.statuses["ord-1"])
}

func TestStatusUnknownOrder(t *testing.T) {
	uc, _, _ := newQueryFixture()

	_, err := uc.Status(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
