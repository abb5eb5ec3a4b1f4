package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/dmtrade/backend/src/logger"
)

// DailyPrice is a stored close (or latest quote) for a symbol on one day.
type DailyPrice struct {
	Symbol    string
	Date      string // YYYY-MM-DD
	Price     decimal.Decimal
	Currency  string
	UpdatedAt time.Time
}

const DateLayout = "2006-01-02"

// GetPricesBySymbol returns every stored price of symbol, oldest first.
func GetPricesBySymbol(ctx context.Context, db DBTX, symbol string) ([]DailyPrice, error) {
	query := `SELECT ticker_symbol, date, price, currency, updated_at FROM daily_prices WHERE ticker_symbol = ? ORDER BY date ASC`
	rows, err := db.QueryContext(ctx, query, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		p, err := scanDailyPrice(rows)
		if err != nil {
			logger.L.Error("Error scanning price row", "symbol", symbol, "error", err)
			continue
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// GetLatestPrice returns the most recent stored price of symbol.
func GetLatestPrice(ctx context.Context, db DBTX, symbol string) (*DailyPrice, error) {
	query := `SELECT ticker_symbol, date, price, currency, updated_at FROM daily_prices WHERE ticker_symbol = ? ORDER BY date DESC LIMIT 1`
	rows, err := db.QueryContext(ctx, query, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	p, err := scanDailyPrice(rows)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanDailyPrice(rows *sql.Rows) (DailyPrice, error) {
	var p DailyPrice
	var updatedAt string
	if err := rows.Scan(&p.Symbol, &p.Date, &p.Price, &p.Currency, &updatedAt); err != nil {
		return p, err
	}
	t, err := parseTime(updatedAt)
	if err != nil {
		return p, errors.Join(errors.New("bad updated_at"), err)
	}
	p.UpdatedAt = t
	return p, nil
}

// InsertOrUpdatePrices upserts prices, one row per symbol and day.
func InsertOrUpdatePrices(ctx context.Context, db DBTX, prices []DailyPrice) error {
	query := `
        INSERT INTO daily_prices (ticker_symbol, date, price, currency, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(ticker_symbol, date) DO UPDATE SET
            price = excluded.price,
            currency = excluded.currency,
            updated_at = excluded.updated_at;
    `
	now := formatTime(time.Now())
	for _, p := range prices {
		if _, err := db.ExecContext(ctx, query, p.Symbol, p.Date, p.Price.String(), p.Currency, now); err != nil {
			logger.L.Error("Failed to insert or update daily price", "symbol", p.Symbol, "date", p.Date, "error", err)
			return err
		}
	}
	return nil
}
