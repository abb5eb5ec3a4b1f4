package model

import (
	"context"
	"fmt"

	"github.com/username/dmtrade/backend/src/ledger"
)

// GetTradesByPortfolio returns every trade of a portfolio in submission order.
func GetTradesByPortfolio(ctx context.Context, db DBTX, portfolioID string) ([]ledger.Trade, error) {
	query := `
	SELECT id, seq, direction, symbol, price, quantity, remaining, sold_for, bought_for, executed_at
	FROM trades
	WHERE portfolio_id = ?
	ORDER BY seq ASC`
	rows, err := db.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []ledger.Trade
	for rows.Next() {
		var t ledger.Trade
		var direction, executedAt string
		if err := rows.Scan(&t.ID, &t.Seq, &direction, &t.Symbol, &t.Price, &t.Quantity,
			&t.Remaining, &t.SoldFor, &t.BoughtFor, &executedAt); err != nil {
			return nil, err
		}
		if t.Direction, err = ledger.ParseDirection(direction); err != nil {
			return nil, fmt.Errorf("trade %s: %w", t.ID, err)
		}
		if t.Timestamp, err = parseTime(executedAt); err != nil {
			return nil, fmt.Errorf("trade %s: %w", t.ID, err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// UpsertTrades inserts new trades and refreshes the matching bookkeeping of
// existing ones. Trades are never deleted here.
func UpsertTrades(ctx context.Context, db DBTX, portfolioID string, trades []ledger.Trade) error {
	query := `
	INSERT INTO trades (id, portfolio_id, seq, direction, symbol, price, quantity, remaining, sold_for, bought_for, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		remaining = excluded.remaining,
		sold_for = excluded.sold_for,
		bought_for = excluded.bought_for`
	for _, t := range trades {
		_, err := db.ExecContext(ctx, query,
			t.ID, portfolioID, t.Seq, t.Direction.String(), t.Symbol, t.Price.String(), t.Quantity,
			t.Remaining, t.SoldFor.String(), t.BoughtFor.String(), formatTime(t.Timestamp))
		if err != nil {
			return fmt.Errorf("failed to save trade %s: %w", t.ID, err)
		}
	}
	return nil
}

// GetHeldSymbols lists every symbol with unsold shares in any portfolio.
func GetHeldSymbols(ctx context.Context, db DBTX) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT symbol FROM trades WHERE direction = 'buy' AND remaining > 0 ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}
