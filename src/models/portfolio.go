package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/dmtrade/backend/src/ledger"
)

// Account owns portfolios.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	CreatedAt    time.Time `json:"created_at"`
	PortfolioIDs []string  `json:"portfolios"` // Ordered by creation time
}

// PortfolioSummary is the list view of a portfolio.
type PortfolioSummary struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	Name         string    `json:"name"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	SymbolsOwned []string  `json:"symbols_owned"`
}

// PortfolioDetail is a portfolio with its full trade lists.
type PortfolioDetail struct {
	PortfolioSummary
	Buys  []ledger.Trade `json:"buys"`  // Lots in submission order, with remaining/soldFor
	Sells []ledger.Trade `json:"sells"` // Sells in submission order, with boughtFor
}

// TradeRequest is the body of a bid or ask submission.
type TradeRequest struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Timestamp *time.Time      `json:"timestamp,omitempty"` // Defaults to now
}

// PortfolioHolding is how many shares of one symbol a portfolio holds.
type PortfolioHolding struct {
	PortfolioID string `json:"portfolio_id"`
	Name        string `json:"name"`
	Shares      int64  `json:"shares"`
}

// Quote is the latest known market price of a symbol.
type Quote struct {
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	AsOf     time.Time       `json:"as_of"`
	Stale    bool            `json:"stale"` // Served from storage after a provider failure
}

// Summarize builds the list view of p.
func Summarize(p *ledger.Portfolio) PortfolioSummary {
	owned := p.SymbolsOwned()
	if owned == nil {
		owned = []string{}
	}
	return PortfolioSummary{
		ID:           p.ID,
		AccountID:    p.AccountID,
		Name:         p.Name,
		Version:      p.Version,
		CreatedAt:    p.CreatedAt,
		SymbolsOwned: owned,
	}
}

// Detail builds the full view of p.
func Detail(p *ledger.Portfolio) PortfolioDetail {
	buys, sells := p.Buys(), p.Sells()
	if buys == nil {
		buys = []ledger.Trade{}
	}
	if sells == nil {
		sells = []ledger.Trade{}
	}
	return PortfolioDetail{PortfolioSummary: Summarize(p), Buys: buys, Sells: sells}
}
