package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhook_bot/internal/models"
)

func newTestCache(ex Exchange, now func() time.Time) *AccountCache {
	return NewAccountCache(ex, "0xabc", CacheConfig{
		AccountTTL:   3 * time.Second,
		PriceTTL:     3 * time.Second,
		MetaTTL:      time.Hour,
		MaxStale:     30 * time.Second,
		FetchTimeout: time.Second,
		Now:          now,
	})
}

func TestAccountCache_BalanceAndPositionShareSnapshot(t *testing.T) {
	ex := newFakeExchange()
	ex.positions["BTC"] = -0.25
	c := newTestCache(ex, nil)
	ctx := context.Background()

	bal, err := c.GetBalance(ctx)
	require.NoError(t, err)
	pos, err := c.GetPosition(ctx, "BTC")
	require.NoError(t, err)
	flat, err := c.GetPosition(ctx, "ETH")
	require.NoError(t, err)

	assert.Equal(t, 10000.0, bal)
	assert.Equal(t, -0.25, pos)
	assert.Zero(t, flat)
	assert.Equal(t, 1, ex.stateCalls)
}

func TestAccountCache_TTLAndInvalidate(t *testing.T) {
	ex := newFakeExchange()
	now := time.Unix(1_700_000_000, 0)
	c := newTestCache(ex, func() time.Time { return now })
	ctx := context.Background()

	_, err := c.GetBalance(ctx)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = c.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ex.stateCalls)

	now = now.Add(2 * time.Second)
	_, err = c.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ex.stateCalls)

	c.Invalidate()
	_, err = c.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, ex.stateCalls)
}

func TestAccountCache_PriceAndMeta(t *testing.T) {
	ex := newFakeExchange()
	c := newTestCache(ex, nil)
	ctx := context.Background()

	px, err := c.GetPrice(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, 2500.0, px)

	dec, err := c.GetSizeDecimals(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 3, dec)

	_, err = c.GetPrice(ctx, "NOPE")
	assert.True(t, models.IsValidation(err))
	_, err = c.GetSizeDecimals(ctx, "NOPE")
	assert.True(t, models.IsValidation(err))

	assert.Equal(t, 1, ex.midCalls)
	assert.Equal(t, 1, ex.metaCalls)
}

func TestAccountCache_StorePricesSkipsFetch(t *testing.T) {
	ex := newFakeExchange()
	c := newTestCache(ex, nil)

	c.StorePrices(models.PriceBook{Mids: map[string]float64{"BTC": 61000}, RetrievedAt: time.Now()})
	px, err := c.GetPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 61000.0, px)
	assert.Zero(t, ex.midCalls)
}

func TestAccountCache_StaleOnRateLimit(t *testing.T) {
	ex := newFakeExchange()
	now := time.Unix(1_700_000_000, 0)
	c := newTestCache(ex, func() time.Time { return now })
	ctx := context.Background()

	_, err := c.GetBalance(ctx)
	require.NoError(t, err)

	ex.stateErr = &models.RateLimitedError{Op: "user_state", Err: errors.New("429")}
	now = now.Add(10 * time.Second)
	bal, err := c.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, bal)

	now = now.Add(time.Minute)
	_, err = c.GetBalance(ctx)
	assert.True(t, models.IsRateLimited(err))
}

func TestAccountCache_Warmup(t *testing.T) {
	ex := newFakeExchange()
	c := newTestCache(ex, nil)
	require.NoError(t, c.Warmup(context.Background()))
	assert.Equal(t, 1, ex.midCalls)
	assert.Equal(t, 1, ex.metaCalls)
	assert.Equal(t, 1, ex.stateCalls)
}
