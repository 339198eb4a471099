package database

import (
	"context"
	"testing"
	"time"

	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableClient points at a closed port so every command fails fast.
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "cart:session:abc", cartKey("abc"))
	assert.Equal(t, "pending_payment:session:abc", pendingPaymentKey("abc"))
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "://nope")
	assert.ErrorContains(t, err, "invalid redis url")
}

func TestPendingPaymentSave_RequiresSession(t *testing.T) {
	repo := NewPendingPaymentRepository(unreachableClient(), time.Hour)

	err := repo.Save(context.Background(), &models.PendingPayment{MerchantReference: "BK-1"})

	assert.ErrorContains(t, err, "no session id")
}

func TestConnectionErrorsAreNotMisses(t *testing.T) {
	client := unreachableClient()
	defer client.Close()

	cart, err := NewCartRepository(client, time.Hour).GetCart(context.Background(), "abc")
	assert.Error(t, err)
	assert.Nil(t, cart)

	pending, err := NewPendingPaymentRepository(client, time.Hour).Get(context.Background(), "abc")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCorruptRecord)
	assert.Nil(t, pending)
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewRedisClient_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())

	require.NoError(t, err)
	assert.NoError(t, client.Close())
}

func TestPendingPayment_RoundTrip(t *testing.T) {
	mr, client := newMiniRedis(t)
	repo := NewPendingPaymentRepository(client, 2*time.Hour)
	ctx := context.Background()

	saved := &models.PendingPayment{
		SessionID:         "abc",
		MerchantReference: "BK-1700000000000-1A2B3C4D",
		OrderTrackingID:   "track-1",
		Amount:            decimal.RequireFromString("68440"),
		Currency:          "UGX",
		CustomerInfo:      models.BillingInfo{FullName: "Tina Nakato", Phone: "+256772123456"},
		CartItems: []models.CartLine{
			{ID: "bread", Product: &models.ProductSnapshot{Name: "Bread", UnitPrice: decimal.NewFromInt(6500)}, Quantity: 2},
		},
		CustomerID: uuid.New(),
		OrderID:    uuid.New(),
		Attempts:   1,
		CreatedAt:  time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Save(ctx, saved))

	assert.Equal(t, 2*time.Hour, mr.TTL(pendingPaymentKey("abc")))

	got, err := repo.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, saved.MerchantReference, got.MerchantReference)
	assert.Equal(t, saved.OrderTrackingID, got.OrderTrackingID)
	assert.True(t, saved.Amount.Equal(got.Amount))
	assert.Equal(t, saved.CustomerInfo, got.CustomerInfo)
	assert.Equal(t, saved.CustomerID, got.CustomerID)
	assert.Equal(t, saved.OrderID, got.OrderID)
	assert.Equal(t, 1, got.Attempts)
	assert.True(t, saved.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.CartItems, 1)
	assert.Equal(t, 2, got.CartItems[0].Quantity)
	assert.True(t, decimal.NewFromInt(6500).Equal(got.CartItems[0].Product.UnitPrice))
}

func TestPendingPayment_SaveOverwritesSession(t *testing.T) {
	_, client := newMiniRedis(t)
	repo := NewPendingPaymentRepository(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.PendingPayment{SessionID: "abc", MerchantReference: "BK-1"}))
	require.NoError(t, repo.Save(ctx, &models.PendingPayment{SessionID: "abc", MerchantReference: "BK-2", Attempts: 2}))

	got, err := repo.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "BK-2", got.MerchantReference)
	assert.Equal(t, 2, got.Attempts)
}

func TestPendingPayment_MissAndExpiry(t *testing.T) {
	mr, client := newMiniRedis(t)
	repo := NewPendingPaymentRepository(client, time.Minute)
	ctx := context.Background()

	got, err := repo.Get(ctx, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Save(ctx, &models.PendingPayment{SessionID: "abc", MerchantReference: "BK-1"}))
	mr.FastForward(time.Minute + time.Second)

	got, err = repo.Get(ctx, "abc")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestPendingPayment_CorruptRecord(t *testing.T) {
	mr, client := newMiniRedis(t)
	repo := NewPendingPaymentRepository(client, time.Hour)
	require.NoError(t, mr.Set(pendingPaymentKey("abc"), "{not json"))

	got, err := repo.Get(context.Background(), "abc")

	assert.ErrorIs(t, err, ErrCorruptRecord)
	assert.Nil(t, got)
}

func TestPendingPayment_Delete(t *testing.T) {
	mr, client := newMiniRedis(t)
	repo := NewPendingPaymentRepository(client, time.Hour)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &models.PendingPayment{SessionID: "abc", MerchantReference: "BK-1"}))

	require.NoError(t, repo.Delete(ctx, "abc"))

	assert.False(t, mr.Exists(pendingPaymentKey("abc")))
	assert.NoError(t, repo.Delete(ctx, "abc"))
}

func TestCart_RoundTripRefreshesTTL(t *testing.T) {
	mr, client := newMiniRedis(t)
	repo := NewCartRepository(client, 24*time.Hour)
	ctx := context.Background()

	cart := &models.Cart{
		SessionID: "abc",
		Lines: []models.CartLine{
			{ID: "custom-1", Product: &models.ProductSnapshot{Name: "Wedding cake", UnitPrice: decimal.NewFromInt(450000), Notes: "two tiers"}, Quantity: 1},
		},
	}
	require.NoError(t, repo.SaveCart(ctx, cart))
	mr.FastForward(time.Hour)
	require.NoError(t, repo.SaveCart(ctx, cart))

	assert.Equal(t, 24*time.Hour, mr.TTL(cartKey("abc")))

	got, err := repo.GetCart(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "two tiers", got.Lines[0].Product.Notes)
	assert.False(t, got.UpdatedAt.IsZero())

	require.NoError(t, repo.DeleteCart(ctx, "abc"))
	got, err = repo.GetCart(ctx, "abc")
	assert.NoError(t, err)
	assert.Nil(t, got)
}
