// backend/src/services/price_service.go
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/dmtrade/backend/src/ledger"
	"github.com/username/dmtrade/backend/src/logger"
	"github.com/username/dmtrade/backend/src/model"
	"github.com/username/dmtrade/backend/src/models"
	"github.com/username/dmtrade/backend/src/security/validation"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	ckQuote   = "quote_%s"
	ckHistory = "history_%s"
)

// --- API Response Structs ---

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// PriceServiceConfig carries the market data settings.
type PriceServiceConfig struct {
	BaseURL          string
	Timeout          time.Duration
	CacheExpiration  time.Duration
	HistoryRange     string
	FetchConcurrency int
}

// --- Service Implementation ---

type priceServiceImpl struct {
	httpClient  http.Client
	baseURL     string
	rangeParam  string
	concurrency int
	quoteCache  *cache.Cache
	// db is optional; without it there is no persistence or stale fallback.
	db *sql.DB
}

func NewPriceService(cfg PriceServiceConfig, db *sql.DB) PriceService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.CacheExpiration <= 0 {
		cfg.CacheExpiration = 5 * time.Minute
	}
	if cfg.HistoryRange == "" {
		cfg.HistoryRange = "5y"
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 4
	}

	return &priceServiceImpl{
		httpClient: http.Client{
			Jar:     jar,
			Timeout: cfg.Timeout,
		},
		baseURL:     cfg.BaseURL,
		rangeParam:  cfg.HistoryRange,
		concurrency: cfg.FetchConcurrency,
		quoteCache:  cache.New(cfg.CacheExpiration, 2*cfg.CacheExpiration),
		db:          db,
	}
}

func (s *priceServiceImpl) GetCurrentPrice(ctx context.Context, symbol string) (models.Quote, error) {
	symbol = ledger.NormalizeSymbol(symbol)
	if err := validation.ValidateSymbol(symbol); err != nil {
		return models.Quote{}, err
	}
	if cached, found := s.quoteCache.Get(fmt.Sprintf(ckQuote, symbol)); found {
		return cached.(models.Quote), nil
	}

	quote, err := s.fetchQuote(ctx, symbol)
	if err != nil {
		logger.FromContext(ctx).Warn("Could not get price for ticker from API", "ticker", symbol, "error", err)
		if stale, ok := s.storedQuote(ctx, symbol); ok {
			return stale, nil
		}
		return models.Quote{}, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, symbol, err)
	}

	s.quoteCache.Set(fmt.Sprintf(ckQuote, symbol), quote, cache.DefaultExpiration)
	s.persist(ctx, []model.DailyPrice{{
		Symbol:   quote.Symbol,
		Date:     quote.AsOf.UTC().Format(model.DateLayout),
		Price:    quote.Price,
		Currency: quote.Currency,
	}})
	return quote, nil
}

func (s *priceServiceImpl) GetCurrentPrices(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	results := make(map[string]models.Quote, len(symbols))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, symbol := range symbols {
		g.Go(func() error {
			q, err := s.GetCurrentPrice(gctx, symbol)
			if err != nil {
				// Unresolved symbols are left out of the result.
				return nil
			}
			mu.Lock()
			results[q.Symbol] = q
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *priceServiceImpl) GetHistoricalPrices(ctx context.Context, symbol string) (ledger.PriceSeries, error) {
	symbol = ledger.NormalizeSymbol(symbol)
	if err := validation.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	if cached, found := s.quoteCache.Get(fmt.Sprintf(ckHistory, symbol)); found {
		return cached.(ledger.PriceSeries), nil
	}

	series, currency, err := s.fetchHistory(ctx, symbol)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to fetch history", "ticker", symbol, "error", err)
		if stored, ok := s.storedHistory(ctx, symbol); ok {
			return stored, nil
		}
		return nil, fmt.Errorf("%w: history of %s: %v", ErrPriceUnavailable, symbol, err)
	}

	s.quoteCache.Set(fmt.Sprintf(ckHistory, symbol), series, cache.DefaultExpiration)
	rows := make([]model.DailyPrice, 0, len(series))
	for _, pt := range series {
		rows = append(rows, model.DailyPrice{Symbol: symbol, Date: pt.Date.Format(model.DateLayout), Price: pt.Close, Currency: currency})
	}
	s.persist(ctx, rows)
	return series, nil
}

func (s *priceServiceImpl) RefreshPrices(ctx context.Context, symbols []string) error {
	for _, symbol := range symbols {
		s.quoteCache.Delete(fmt.Sprintf(ckQuote, ledger.NormalizeSymbol(symbol)))
	}
	quotes, err := s.GetCurrentPrices(ctx, symbols)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Prices refreshed", "requested", len(symbols), "resolved", len(quotes))
	if len(symbols) > 0 && len(quotes) == 0 {
		return fmt.Errorf("%w: none of %d symbols could be refreshed", ErrPriceUnavailable, len(symbols))
	}
	return nil
}

func (s *priceServiceImpl) chart(ctx context.Context, symbol string, params url.Values) (*yahooChartResponse, error) {
	chartURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.baseURL, url.PathEscape(symbol), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chartURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Yahoo chart API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo chart API returned non-OK status %d", resp.StatusCode)
	}

	var chartData yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chartData); err != nil {
		return nil, fmt.Errorf("failed to decode Yahoo chart response: %w", err)
	}
	if e := chartData.Chart.Error; e != nil {
		return nil, fmt.Errorf("yahoo chart API returned an error: %s %s", e.Code, e.Description)
	}
	if len(chartData.Chart.Result) == 0 {
		return nil, errors.New("no chart result found")
	}
	return &chartData, nil
}

func (s *priceServiceImpl) fetchQuote(ctx context.Context, symbol string) (models.Quote, error) {
	data, err := s.chart(ctx, symbol, url.Values{"interval": {"1d"}, "range": {"1d"}})
	if err != nil {
		return models.Quote{}, err
	}
	meta := data.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return models.Quote{}, errors.New("no price data found")
	}
	asOf := time.Now().UTC()
	if meta.RegularMarketTime > 0 {
		asOf = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	return models.Quote{
		Symbol:   symbol,
		Price:    decimal.NewFromFloat(meta.RegularMarketPrice),
		Currency: meta.Currency,
		AsOf:     asOf,
	}, nil
}

func (s *priceServiceImpl) fetchHistory(ctx context.Context, symbol string) (ledger.PriceSeries, string, error) {
	data, err := s.chart(ctx, symbol, url.Values{"interval": {"1d"}, "range": {s.rangeParam}})
	if err != nil {
		return nil, "", err
	}
	result := data.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, "", errors.New("no quote data found")
	}
	closes := result.Indicators.Quote[0].Close
	if len(closes) != len(result.Timestamp) {
		return nil, "", errors.New("data mismatch")
	}

	// One close per day; a later timestamp on the same day wins.
	byDay := make(map[string]ledger.PricePoint)
	for i, ts := range result.Timestamp {
		if closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		t := time.Unix(ts, 0).UTC()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		byDay[day.Format(model.DateLayout)] = ledger.PricePoint{Date: day, Close: decimal.NewFromFloat(*closes[i])}
	}
	if len(byDay) == 0 {
		return nil, "", errors.New("no closes in history")
	}
	series := make(ledger.PriceSeries, 0, len(byDay))
	for _, pt := range byDay {
		series = append(series, pt)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, result.Meta.Currency, nil
}

func (s *priceServiceImpl) persist(ctx context.Context, prices []model.DailyPrice) {
	if s.db == nil || len(prices) == 0 {
		return
	}
	if err := model.InsertOrUpdatePrices(ctx, s.db, prices); err != nil {
		logger.FromContext(ctx).Error("Failed to persist daily prices", "ticker", prices[0].Symbol, "error", err)
	}
}

func (s *priceServiceImpl) storedQuote(ctx context.Context, symbol string) (models.Quote, bool) {
	if s.db == nil {
		return models.Quote{}, false
	}
	p, err := model.GetLatestPrice(ctx, s.db, symbol)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.FromContext(ctx).Error("Failed to read stored price", "ticker", symbol, "error", err)
		}
		return models.Quote{}, false
	}
	asOf, _ := time.Parse(model.DateLayout, p.Date)
	logger.FromContext(ctx).Info("Serving stale price from storage", "ticker", symbol, "date", p.Date)
	return models.Quote{Symbol: symbol, Price: p.Price, Currency: p.Currency, AsOf: asOf, Stale: true}, true
}

func (s *priceServiceImpl) storedHistory(ctx context.Context, symbol string) (ledger.PriceSeries, bool) {
	if s.db == nil {
		return nil, false
	}
	rows, err := model.GetPricesBySymbol(ctx, s.db, symbol)
	if err != nil || len(rows) == 0 {
		return nil, false
	}
	series := make(ledger.PriceSeries, 0, len(rows))
	for _, r := range rows {
		day, err := time.Parse(model.DateLayout, r.Date)
		if err != nil {
			continue
		}
		series = append(series, ledger.PricePoint{Date: day, Close: r.Price})
	}
	return series, len(series) > 0
}
