// backend/src/services/portfolio_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/dmtrade/backend/src/ledger"
	"github.com/username/dmtrade/backend/src/logger"
	"github.com/username/dmtrade/backend/src/models"
	"github.com/username/dmtrade/backend/src/repository"
	"github.com/username/dmtrade/backend/src/security/validation"
	"golang.org/x/sync/errgroup"
)

const (
	ckValueHistory       = "value_history_pf_%s_v%d_int_%d"
	ckValueHistoryPrefix = "value_history_pf_%s_"
)

// PortfolioServiceConfig carries the tunables of the portfolio service.
type PortfolioServiceConfig struct {
	MaxPortfoliosPerAccount int
	HistoryIntervalDays     int
	FetchConcurrency        int
}

type portfolioServiceImpl struct {
	store       repository.Store
	prices      PriceService
	reportCache *cache.Cache
	cfg         PortfolioServiceConfig
	locks       *keyedMutex
	now         func() time.Time
}

func NewPortfolioService(store repository.Store, prices PriceService, reportCache *cache.Cache, cfg PortfolioServiceConfig) PortfolioService {
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 4
	}
	if cfg.HistoryIntervalDays <= 0 {
		cfg.HistoryIntervalDays = 7
	}
	return &portfolioServiceImpl{
		store:       store,
		prices:      prices,
		reportCache: reportCache,
		cfg:         cfg,
		locks:       newKeyedMutex(),
		now:         time.Now,
	}
}

// keyedMutex hands out one mutex per portfolio so writes to the same
// portfolio are serialized while different portfolios proceed in parallel.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (k *keyedMutex) forget(key string) {
	k.mu.Lock()
	delete(k.locks, key)
	k.mu.Unlock()
}

func cleanPortfolioName(name string) (string, error) {
	name = validation.CleanName(name)
	if err := validation.ValidateStringNotEmpty(name, "name"); err != nil {
		return "", err
	}
	if err := validation.ValidateStringMaxLength(name, validation.MaxPortfolioNameLength, "name"); err != nil {
		return "", err
	}
	if err := validation.CheckFormulaInjection(name, "name"); err != nil {
		return "", err
	}
	return name, nil
}

func (s *portfolioServiceImpl) CreatePortfolio(ctx context.Context, accountID, name string) (*ledger.Portfolio, error) {
	name, err := cleanPortfolioName(name)
	if err != nil {
		return nil, err
	}

	if s.cfg.MaxPortfoliosPerAccount > 0 {
		count, err := s.store.CountPortfolios(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("count portfolios: %w", err)
		}
		if count >= s.cfg.MaxPortfoliosPerAccount {
			return nil, fmt.Errorf("%w: an account may hold at most %d portfolios", ErrPortfolioLimit, s.cfg.MaxPortfoliosPerAccount)
		}
	}

	p := ledger.NewPortfolio(uuid.NewString(), accountID, name, s.now().UTC())
	if err := s.store.CreatePortfolio(ctx, p); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Portfolio created", "portfolioID", p.ID, "name", p.Name)
	return p, nil
}

func (s *portfolioServiceImpl) ListPortfolios(ctx context.Context, accountID string) ([]*ledger.Portfolio, error) {
	return s.store.ListPortfolios(ctx, accountID)
}

// owned loads a portfolio and hides it from any other account.
func (s *portfolioServiceImpl) owned(ctx context.Context, accountID, portfolioID string) (*ledger.Portfolio, error) {
	p, err := s.store.LoadPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if p.AccountID != accountID {
		logger.FromContext(ctx).Warn("Portfolio access denied", "portfolioID", portfolioID, "accountID", accountID)
		return nil, fmt.Errorf("%w: portfolio %s", repository.ErrNotFound, portfolioID)
	}
	return p, nil
}

func (s *portfolioServiceImpl) GetPortfolio(ctx context.Context, accountID, portfolioID string) (*ledger.Portfolio, error) {
	return s.owned(ctx, accountID, portfolioID)
}

func (s *portfolioServiceImpl) RenamePortfolio(ctx context.Context, accountID, portfolioID, name string) (*ledger.Portfolio, error) {
	name, err := cleanPortfolioName(name)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(portfolioID)
	defer unlock()

	if _, err := s.owned(ctx, accountID, portfolioID); err != nil {
		return nil, err
	}
	if err := s.store.RenamePortfolio(ctx, portfolioID, name); err != nil {
		return nil, err
	}
	s.invalidate(portfolioID)
	return s.store.LoadPortfolio(ctx, portfolioID)
}

func (s *portfolioServiceImpl) DeletePortfolio(ctx context.Context, accountID, portfolioID string) error {
	unlock := s.locks.lock(portfolioID)
	defer unlock()

	if _, err := s.owned(ctx, accountID, portfolioID); err != nil {
		return err
	}
	if err := s.store.DeletePortfolio(ctx, portfolioID); err != nil {
		return err
	}
	s.invalidate(portfolioID)
	s.locks.forget(portfolioID)
	logger.FromContext(ctx).Info("Portfolio deleted", "portfolioID", portfolioID)
	return nil
}

func (s *portfolioServiceImpl) RecordTrade(ctx context.Context, accountID, portfolioID string, d ledger.Direction, req models.TradeRequest) (ledger.Trade, error) {
	symbol := ledger.NormalizeSymbol(req.Symbol)
	if err := validation.ValidateSymbol(symbol); err != nil {
		return ledger.Trade{}, err
	}
	if err := validation.ValidateQuantity(req.Quantity); err != nil {
		return ledger.Trade{}, err
	}
	if err := validation.ValidatePrice(req.Price); err != nil {
		return ledger.Trade{}, err
	}
	var ts time.Time
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	now := s.now()
	if err := validation.ValidateTradeTimestamp(ts, now); err != nil {
		return ledger.Trade{}, err
	}
	if ts.IsZero() {
		ts = now
	}

	unlock := s.locks.lock(portfolioID)
	defer unlock()

	p, err := s.owned(ctx, accountID, portfolioID)
	if err != nil {
		return ledger.Trade{}, err
	}
	t, err := p.Record(d, symbol, req.Price, req.Quantity, ts)
	if err != nil {
		return ledger.Trade{}, err
	}
	if err := s.store.SavePortfolio(ctx, p); err != nil {
		return ledger.Trade{}, err
	}
	s.invalidate(portfolioID)

	logger.FromContext(ctx).Info("Trade recorded",
		"portfolioID", portfolioID, "direction", d.String(), "symbol", symbol,
		"quantity", req.Quantity, "price", req.Price.String(), "version", p.Version)
	return t, nil
}

func (s *portfolioServiceImpl) currentPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(symbols))
	if len(symbols) == 0 {
		return prices, nil
	}
	quotes, err := s.prices.GetCurrentPrices(ctx, symbols)
	if err != nil {
		return nil, err
	}
	for sym, q := range quotes {
		prices[sym] = q.Price
	}
	return prices, nil
}

func (s *portfolioServiceImpl) GetValue(ctx context.Context, accountID, portfolioID string) (*ledger.PortfolioValue, error) {
	p, err := s.owned(ctx, accountID, portfolioID)
	if err != nil {
		return nil, err
	}
	prices, err := s.currentPrices(ctx, p.SymbolsOwned())
	if err != nil {
		return nil, err
	}
	return ledger.NewPortfolioValue(p, prices)
}

func (s *portfolioServiceImpl) GetRevenue(ctx context.Context, accountID, portfolioID string) (*ledger.PortfolioRevenue, error) {
	p, err := s.owned(ctx, accountID, portfolioID)
	if err != nil {
		return nil, err
	}
	prices, err := s.currentPrices(ctx, p.SymbolsOwned())
	if err != nil {
		return nil, err
	}
	return ledger.NewPortfolioRevenue(p, prices)
}

func (s *portfolioServiceImpl) GetValueHistory(ctx context.Context, accountID, portfolioID string, intervalDays int) ([]ledger.ValueSnapshot, error) {
	if intervalDays == 0 {
		intervalDays = s.cfg.HistoryIntervalDays
	}
	p, err := s.owned(ctx, accountID, portfolioID)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf(ckValueHistory, p.ID, p.Version, intervalDays)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.FromContext(ctx).Debug("Value history served from cache", "portfolioID", p.ID)
		return cached.([]ledger.ValueSnapshot), nil
	}

	histories := make(map[string]ledger.PriceSeries)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FetchConcurrency)
	for _, sym := range p.Symbols() {
		g.Go(func() error {
			series, err := s.prices.GetHistoricalPrices(gctx, sym)
			if err != nil {
				logger.FromContext(ctx).Warn("Could not fetch price history", "symbol", sym, "error", err)
				return nil
			}
			mu.Lock()
			histories[sym] = series
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	history, err := ledger.NewPortfolioValueHistory(p, histories, intervalDays, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(cacheKey, history, cache.DefaultExpiration)
	return history, nil
}

func (s *portfolioServiceImpl) HoldingsAcrossPortfolios(ctx context.Context, accountID, symbol string) ([]models.PortfolioHolding, error) {
	symbol = ledger.NormalizeSymbol(symbol)
	if err := validation.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	portfolios, err := s.store.ListPortfolios(ctx, accountID)
	if err != nil {
		return nil, err
	}
	shares := ledger.SharesOwnedAcrossPortfolios(symbol, portfolios)
	holdings := make([]models.PortfolioHolding, 0, len(portfolios))
	for _, p := range portfolios {
		holdings = append(holdings, models.PortfolioHolding{PortfolioID: p.ID, Name: p.Name, Shares: shares[p.ID]})
	}
	return holdings, nil
}

func (s *portfolioServiceImpl) Release(portfolioIDs ...string) {
	for _, id := range portfolioIDs {
		s.invalidate(id)
		s.locks.forget(id)
	}
}

// invalidate drops every cached report of a portfolio.
func (s *portfolioServiceImpl) invalidate(portfolioID string) {
	prefix := fmt.Sprintf(ckValueHistoryPrefix, portfolioID)
	for key := range s.reportCache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.reportCache.Delete(key)
		}
	}
}

// IsClientError reports whether err was caused by the request rather than
// by the server or an upstream provider.
func IsClientError(err error) bool {
	return errors.Is(err, validation.ErrValidationFailed) ||
		errors.Is(err, ledger.ErrValidation) ||
		errors.Is(err, ledger.ErrInsufficientShares) ||
		errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrDuplicateName) ||
		errors.Is(err, repository.ErrDuplicateEmail) ||
		errors.Is(err, ErrPortfolioLimit)
}
