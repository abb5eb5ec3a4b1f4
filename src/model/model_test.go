package model

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/dmtrade/backend/src/database"
	"github.com/username/dmtrade/backend/src/ledger"
	"github.com/username/dmtrade/backend/src/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTrades_UpsertKeepsAuditTrail(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, InsertAccount(ctx, db, &models.Account{ID: "acc-1", Email: "a@example.com"}))
	require.NoError(t, InsertPortfolio(ctx, db, PortfolioRow{ID: "pf-1", AccountID: "acc-1", Name: "Main", CreatedAt: created}))

	p := ledger.NewPortfolio("pf-1", "acc-1", "Main", created)
	_, err := p.RecordBuy("AAPL", decimal.RequireFromString("100.125"), 10, created)
	require.NoError(t, err)
	require.NoError(t, UpsertTrades(ctx, db, "pf-1", p.Trades()))

	_, err = p.RecordSell("AAPL", decimal.RequireFromString("120"), 4, created.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, UpsertTrades(ctx, db, "pf-1", p.Trades()))

	stored, err := GetTradesByPortfolio(ctx, db, "pf-1")
	require.NoError(t, err)
	require.Len(t, stored, 2)

	assert.Equal(t, ledger.Buy, stored[0].Direction)
	assert.Equal(t, int64(6), stored[0].Remaining)
	assert.Equal(t, "100.125", stored[0].Price.String())
	assert.Equal(t, "480", stored[0].SoldFor.String())
	assert.Equal(t, ledger.Sell, stored[1].Direction)
	assert.Equal(t, "400.5", stored[1].BoughtFor.String())
	assert.True(t, stored[1].Timestamp.Equal(created.Add(time.Hour)))

	held, err := GetHeldSymbols(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, held)
}

func TestPortfolioVersion_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	require.NoError(t, InsertAccount(ctx, db, &models.Account{ID: "acc-1", Email: "a@example.com"}))
	require.NoError(t, InsertPortfolio(ctx, db, PortfolioRow{ID: "pf-1", AccountID: "acc-1", Name: "Main", CreatedAt: time.Now()}))

	ok, err := BumpPortfolioVersion(ctx, db, "pf-1", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = BumpPortfolioVersion(ctx, db, "pf-1", 0)
	require.NoError(t, err)
	assert.False(t, ok, "stale version must not update")

	row, err := GetPortfolioRow(ctx, db, "pf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.Version)
}

func TestAccountDelete_CascadesToPortfoliosAndTrades(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	now := time.Now()

	require.NoError(t, InsertAccount(ctx, db, &models.Account{ID: "acc-1", Email: "a@example.com"}))
	require.NoError(t, InsertPortfolio(ctx, db, PortfolioRow{ID: "pf-1", AccountID: "acc-1", Name: "Main", CreatedAt: now}))
	p := ledger.NewPortfolio("pf-1", "acc-1", "Main", now)
	_, _ = p.RecordBuy("MSFT", decimal.NewFromInt(300), 1, now)
	require.NoError(t, UpsertTrades(ctx, db, "pf-1", p.Trades()))

	acc, err := GetAccountByID(ctx, db, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"pf-1"}, acc.PortfolioIDs)

	n, err := DeleteAccount(ctx, db, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = GetPortfolioRow(ctx, db, "pf-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	trades, err := GetTradesByPortfolio(ctx, db, "pf-1")
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestDailyPrices_UpsertAndLatest(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	_, err := GetLatestPrice(ctx, db, "AAPL")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, InsertOrUpdatePrices(ctx, db, []DailyPrice{
		{Symbol: "AAPL", Date: "2024-01-02", Price: decimal.RequireFromString("185.64"), Currency: "USD"},
		{Symbol: "AAPL", Date: "2024-01-03", Price: decimal.RequireFromString("184.25"), Currency: "USD"},
	}))
	require.NoError(t, InsertOrUpdatePrices(ctx, db, []DailyPrice{
		{Symbol: "AAPL", Date: "2024-01-03", Price: decimal.RequireFromString("184.30"), Currency: "USD"},
	}))

	latest, err := GetLatestPrice(ctx, db, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03", latest.Date)
	assert.Equal(t, "184.3", latest.Price.String())

	all, err := GetPricesBySymbol(ctx, db, "AAPL")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
