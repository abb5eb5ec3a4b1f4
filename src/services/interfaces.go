// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/username/dmtrade/backend/src/ledger"
	"github.com/username/dmtrade/backend/src/models"
)

// Define common service errors
var (
	ErrPortfolioLimit   = errors.New("portfolio limit reached")
	ErrPriceUnavailable = errors.New("price unavailable")
)

const (
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// AccountService manages the owners of portfolios.
type AccountService interface {
	CreateAccount(ctx context.Context, email, firstName, lastName string) (*models.Account, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// PortfolioService is the only way trades reach a portfolio. Every method
// takes the calling account and answers ErrNotFound for portfolios it does
// not own.
type PortfolioService interface {
	CreatePortfolio(ctx context.Context, accountID, name string) (*ledger.Portfolio, error)
	ListPortfolios(ctx context.Context, accountID string) ([]*ledger.Portfolio, error)
	GetPortfolio(ctx context.Context, accountID, portfolioID string) (*ledger.Portfolio, error)
	RenamePortfolio(ctx context.Context, accountID, portfolioID, name string) (*ledger.Portfolio, error)
	DeletePortfolio(ctx context.Context, accountID, portfolioID string) error

	RecordTrade(ctx context.Context, accountID, portfolioID string, d ledger.Direction, req models.TradeRequest) (ledger.Trade, error)

	GetValue(ctx context.Context, accountID, portfolioID string) (*ledger.PortfolioValue, error)
	GetRevenue(ctx context.Context, accountID, portfolioID string) (*ledger.PortfolioRevenue, error)
	// GetValueHistory uses the configured interval when intervalDays is 0.
	GetValueHistory(ctx context.Context, accountID, portfolioID string, intervalDays int) ([]ledger.ValueSnapshot, error)
	HoldingsAcrossPortfolios(ctx context.Context, accountID, symbol string) ([]models.PortfolioHolding, error)

	// Release drops cached reports and locks of portfolios that were removed
	// without going through DeletePortfolio, such as by an account cascade.
	Release(portfolioIDs ...string)
}

// PriceService defines the interface for fetching market prices.
type PriceService interface {
	GetCurrentPrice(ctx context.Context, symbol string) (models.Quote, error)
	// GetCurrentPrices returns quotes for the symbols it could resolve; the
	// rest are left out of the map.
	GetCurrentPrices(ctx context.Context, symbols []string) (map[string]models.Quote, error)
	// GetHistoricalPrices fetches daily closes for a ticker, oldest first.
	GetHistoricalPrices(ctx context.Context, symbol string) (ledger.PriceSeries, error)
	// RefreshPrices drops cached quotes and fetches them again.
	RefreshPrices(ctx context.Context, symbols []string) error
}
