package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/dmtrade/backend/src/ledger"
	"github.com/username/dmtrade/backend/src/models"
	"github.com/username/dmtrade/backend/src/repository"
	"github.com/username/dmtrade/backend/src/security/validation"
)

// fakePriceService serves fixed quotes and histories.
type fakePriceService struct {
	quotes       map[string]decimal.Decimal
	histories    map[string]ledger.PriceSeries
	historyCalls atomic.Int32
}

func (f *fakePriceService) GetCurrentPrice(_ context.Context, symbol string) (models.Quote, error) {
	px, ok := f.quotes[symbol]
	if !ok {
		return models.Quote{}, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	return models.Quote{Symbol: symbol, Price: px, Currency: "USD"}, nil
}

func (f *fakePriceService) GetCurrentPrices(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	out := make(map[string]models.Quote)
	for _, s := range symbols {
		if q, err := f.GetCurrentPrice(ctx, s); err == nil {
			out[s] = q
		}
	}
	return out, nil
}

func (f *fakePriceService) GetHistoricalPrices(_ context.Context, symbol string) (ledger.PriceSeries, error) {
	f.historyCalls.Add(1)
	series, ok := f.histories[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	return series, nil
}

func (f *fakePriceService) RefreshPrices(context.Context, []string) error { return nil }

var now = time.Date(2024, 3, 21, 12, 0, 0, 0, time.UTC)

func setupPortfolioService(t *testing.T, prices *fakePriceService) (*portfolioServiceImpl, *repository.MemoryStore, string) {
	t.Helper()
	store := repository.NewMemoryStore()
	accounts := NewAccountService(store, nil)
	acc, err := accounts.CreateAccount(context.Background(), "ada@example.com", "Ada", "Lovelace")
	require.NoError(t, err)

	svc := NewPortfolioService(store, prices, cache.New(DefaultCacheExpiration, CacheCleanupInterval), PortfolioServiceConfig{
		MaxPortfoliosPerAccount: 2,
		HistoryIntervalDays:     7,
	}).(*portfolioServiceImpl)
	svc.now = func() time.Time { return now }
	return svc, store, acc.ID
}

func trade(symbol, price string, qty int64, ts time.Time) models.TradeRequest {
	return models.TradeRequest{Symbol: symbol, Price: decimal.RequireFromString(price), Quantity: qty, Timestamp: &ts}
}

func TestPortfolioService_CreateRules(t *testing.T) {
	svc, _, accountID := setupPortfolioService(t, &fakePriceService{})
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, accountID, "  <b>Growth</b>  ")
	require.NoError(t, err)
	assert.Equal(t, "Growth", p.Name)

	_, err = svc.CreatePortfolio(ctx, accountID, "Growth")
	assert.ErrorIs(t, err, repository.ErrDuplicateName)

	_, err = svc.CreatePortfolio(ctx, accountID, "   ")
	assert.ErrorIs(t, err, validation.ErrValidationFailed)

	_, err = svc.CreatePortfolio(ctx, accountID, "Income")
	require.NoError(t, err)
	_, err = svc.CreatePortfolio(ctx, accountID, "Third")
	assert.ErrorIs(t, err, ErrPortfolioLimit)
}

func TestPortfolioService_OwnershipIsEnforced(t *testing.T) {
	svc, store, accountID := setupPortfolioService(t, &fakePriceService{})
	ctx := context.Background()
	p, err := svc.CreatePortfolio(ctx, accountID, "Main")
	require.NoError(t, err)

	require.NoError(t, store.CreateAccount(ctx, &models.Account{ID: "intruder", Email: "eve@example.com"}))

	_, err = svc.GetPortfolio(ctx, "intruder", p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = svc.RecordTrade(ctx, "intruder", p.ID, ledger.Buy, trade("AAPL", "1", 1, now))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, svc.DeletePortfolio(ctx, "intruder", p.ID), repository.ErrNotFound)
}

func TestPortfolioService_RecordTrade(t *testing.T) {
	svc, _, accountID := setupPortfolioService(t, &fakePriceService{})
	ctx := context.Background()
	p, err := svc.CreatePortfolio(ctx, accountID, "Main")
	require.NoError(t, err)

	buy, err := svc.RecordTrade(ctx, accountID, p.ID, ledger.Buy, trade("aapl", "100", 10, now.Add(-time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", buy.Symbol)

	_, err = svc.RecordTrade(ctx, accountID, p.ID, ledger.Sell, trade("AAPL", "120", 11, now))
	assert.ErrorIs(t, err, ledger.ErrInsufficientShares)

	sell, err := svc.RecordTrade(ctx, accountID, p.ID, ledger.Sell, trade("AAPL", "120", 4, now))
	require.NoError(t, err)
	assert.Equal(t, "400", sell.BoughtFor.String())

	_, err = svc.RecordTrade(ctx, accountID, p.ID, ledger.Buy, trade("AAPL", "100", 1, now.Add(time.Hour)))
	assert.ErrorIs(t, err, validation.ErrValidationFailed, "future timestamps are rejected")

	_, err = svc.RecordTrade(ctx, accountID, p.ID, ledger.Buy, trade("AAPL", "0", 1, now))
	assert.ErrorIs(t, err, validation.ErrValidationFailed)

	_, err = svc.RecordTrade(ctx, accountID, p.ID, ledger.Buy, trade("AAPL", "100", 1, time.Date(1, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.ErrorIs(t, err, validation.ErrValidationFailed, "timestamps before 1970 are rejected")

	_, err = svc.RecordTrade(ctx, accountID, p.ID, ledger.Buy, models.TradeRequest{Symbol: "AAPL", Price: decimal.NewFromInt(1), Quantity: 1})
	require.NoError(t, err, "a missing timestamp means now")

	stored, err := svc.GetPortfolio(ctx, accountID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Version)
	assert.Equal(t, map[string]int64{"AAPL": 7}, stored.SharesOwned())
}

func TestPortfolioService_ConcurrentSellsNeverOversell(t *testing.T) {
	svc, _, accountID := setupPortfolioService(t, &fakePriceService{})
	ctx := context.Background()
	p, err := svc.CreatePortfolio(ctx, accountID, "Main")
	require.NoError(t, err)
	_, err = svc.RecordTrade(ctx, accountID, p.ID, ledger.Buy, trade("MSFT", "300", 5, now.Add(-time.Hour)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ok, rejected atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordTrade(ctx, accountID, p.ID, ledger.Sell, trade("MSFT", "310", 1, now))
			if err == nil {
				ok.Add(1)
			} else if assert.ErrorIs(t, err, ledger.ErrInsufficientShares) {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), ok.Load())
	assert.Equal(t, int32(15), rejected.Load())
	stored, err := svc.GetPortfolio(ctx, accountID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.SharesOwned("MSFT")["MSFT"])
	assert.Len(t, stored.Sells(), 5)
}

func TestPortfolioService_ValueAndRevenue(t *testing.T) {
	prices := &fakePriceService{quotes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(150)}}
	svc, _, accountID := setupPortfolioService(t, prices)
	ctx := context.Background()
	p, err := svc.CreatePortfolio(ctx, accountID, "Main")
	require.NoError(t, err)

	steps := []struct {
		d   ledger.Direction
		req models.TradeRequest
	}{
		{ledger.Buy, trade("AAPL", "100", 10, now.Add(-4*time.Hour))},
		{ledger.Sell, trade("AAPL", "120", 4, now.Add(-3*time.Hour))},
		{ledger.Buy, trade("AAPL", "110", 5, now.Add(-2*time.Hour))},
		{ledger.Sell, trade("AAPL", "130", 8, now.Add(-time.Hour))},
	}
	for _, step := range steps {
		_, err := svc.RecordTrade(ctx, accountID, p.ID, step.d, step.req)
		require.NoError(t, err)
	}

	v, err := svc.GetValue(ctx, accountID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "330", v.TotalAtBid.String())
	assert.Equal(t, "450", v.TotalAtMoment.String())

	r, err := svc.GetRevenue(ctx, accountID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "300", r.TotalAtAsk.String())
	assert.Equal(t, "420", r.TotalAtMoment.String())

	_, err = svc.RecordTrade(ctx, accountID, p.ID, ledger.Buy, trade("TSLA", "200", 1, now))
	require.NoError(t, err)
	_, err = svc.GetValue(ctx, accountID, p.ID)
	assert.ErrorIs(t, err, ledger.ErrMissingPrice)
}

func TestPortfolioService_ValueHistoryIsCachedPerVersion(t *testing.T) {
	series := ledger.PriceSeries{
		{Date: time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), Close: decimal.NewFromInt(100)},
		{Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Close: decimal.NewFromInt(120)},
	}
	prices := &fakePriceService{histories: map[string]ledger.PriceSeries{"AAPL": series}}
	svc, _, accountID := setupPortfolioService(t, prices)
	ctx := context.Background()
	p, err := svc.CreatePortfolio(ctx, accountID, "Main")
	require.NoError(t, err)
	_, err = svc.RecordTrade(ctx, accountID, p.ID, ledger.Buy, trade("AAPL", "100", 10, time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)))
	require.NoError(t, err)

	history, err := svc.GetValueHistory(ctx, accountID, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.True(t, history[0].AtBid.IsZero())
	assert.Equal(t, "1000", history[1].AtMoment.String())
	assert.Equal(t, "1200", history[3].AtMoment.String())
	assert.Equal(t, int32(1), prices.historyCalls.Load())

	_, err = svc.GetValueHistory(ctx, accountID, p.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, int32(1), prices.historyCalls.Load(), "second call is served from cache")

	_, err = svc.RecordTrade(ctx, accountID, p.ID, ledger.Sell, trade("AAPL", "110", 1, now))
	require.NoError(t, err)
	_, err = svc.GetValueHistory(ctx, accountID, p.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, int32(2), prices.historyCalls.Load(), "a write invalidates the cached history")

	_, err = svc.GetValueHistory(ctx, accountID, p.ID, -1)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestPortfolioService_ValueHistoryWithBackdatedTrades(t *testing.T) {
	series := ledger.PriceSeries{{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Close: decimal.NewFromInt(80)}}
	prices := &fakePriceService{
		quotes:    map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(80)},
		histories: map[string]ledger.PriceSeries{"AAPL": series},
	}
	svc, _, accountID := setupPortfolioService(t, prices)
	ctx := context.Background()
	p, err := svc.CreatePortfolio(ctx, accountID, "Main")
	require.NoError(t, err)

	for _, step := range []struct {
		d   ledger.Direction
		req models.TradeRequest
	}{
		{ledger.Buy, trade("AAPL", "100", 10, now.AddDate(0, 0, -1))},
		{ledger.Buy, trade("AAPL", "50", 10, now.AddDate(0, 0, -20))},
		{ledger.Sell, trade("AAPL", "120", 4, now.AddDate(0, 0, -30))},
	} {
		_, err := svc.RecordTrade(ctx, accountID, p.ID, step.d, step.req)
		require.NoError(t, err)
	}

	value, err := svc.GetValue(ctx, accountID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "1100", value.TotalAtBid.String())

	history, err := svc.GetValueHistory(ctx, accountID, p.ID, 7)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, value.TotalAtBid.String(), last.AtBid.String())
	assert.Equal(t, value.TotalAtMoment.String(), last.AtMoment.String())
}

func TestAccountService_DeleteReleasesPortfolios(t *testing.T) {
	prices := &fakePriceService{histories: map[string]ledger.PriceSeries{
		"AAPL": {{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Close: decimal.NewFromInt(100)}},
	}}
	svc, store, accountID := setupPortfolioService(t, prices)
	accounts := NewAccountService(store, svc)
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, accountID, "Main")
	require.NoError(t, err)
	_, err = svc.RecordTrade(ctx, accountID, p.ID, ledger.Buy, trade("AAPL", "100", 1, now.AddDate(0, 0, -3)))
	require.NoError(t, err)
	_, err = svc.GetValueHistory(ctx, accountID, p.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 1, svc.reportCache.ItemCount())

	require.NoError(t, accounts.DeleteAccount(ctx, accountID))

	assert.Zero(t, svc.reportCache.ItemCount())
	svc.locks.mu.Lock()
	_, held := svc.locks.locks[p.ID]
	svc.locks.mu.Unlock()
	assert.False(t, held)

	_, err = svc.GetPortfolio(ctx, accountID, p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, accounts.DeleteAccount(ctx, accountID), repository.ErrNotFound)
}

func TestPortfolioService_HoldingsAcrossPortfolios(t *testing.T) {
	svc, _, accountID := setupPortfolioService(t, &fakePriceService{})
	ctx := context.Background()
	a, err := svc.CreatePortfolio(ctx, accountID, "A")
	require.NoError(t, err)
	b, err := svc.CreatePortfolio(ctx, accountID, "B")
	require.NoError(t, err)
	_, err = svc.RecordTrade(ctx, accountID, a.ID, ledger.Buy, trade("AAPL", "100", 3, now))
	require.NoError(t, err)

	holdings, err := svc.HoldingsAcrossPortfolios(ctx, accountID, "aapl")
	require.NoError(t, err)
	assert.Equal(t, []models.PortfolioHolding{
		{PortfolioID: a.ID, Name: "A", Shares: 3},
		{PortfolioID: b.ID, Name: "B", Shares: 0},
	}, holdings)
}

func TestAccountService_CreateAndDelete(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewAccountService(store, nil)
	ctx := context.Background()

	acc, err := svc.CreateAccount(ctx, " Ada@Example.com ", "Ada", "Lovelace")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", acc.Email)
	assert.NotEmpty(t, acc.ID)

	_, err = svc.CreateAccount(ctx, "ada@example.com", "Other", "")
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
	_, err = svc.CreateAccount(ctx, "not-an-email", "", "")
	assert.ErrorIs(t, err, validation.ErrValidationFailed)

	require.NoError(t, svc.DeleteAccount(ctx, acc.ID))
	_, err = svc.GetAccount(ctx, acc.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
