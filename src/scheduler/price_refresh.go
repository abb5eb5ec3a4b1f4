package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/username/dmtrade/backend/src/logger"
)

// SymbolSource lists the symbols currently held in any portfolio.
type SymbolSource interface {
	HeldSymbols(ctx context.Context) ([]string, error)
}

// PriceRefresher re-fetches quotes.
type PriceRefresher interface {
	RefreshPrices(ctx context.Context, symbols []string) error
}

// PriceRefreshJob keeps quotes of held symbols warm.
type PriceRefreshJob struct {
	symbols SymbolSource
	prices  PriceRefresher
	timeout time.Duration
	log     *slog.Logger
}

func NewPriceRefreshJob(symbols SymbolSource, prices PriceRefresher, timeout time.Duration, log *slog.Logger) *PriceRefreshJob {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &PriceRefreshJob{
		symbols: symbols,
		prices:  prices,
		timeout: timeout,
		log:     log.With("job", "price_refresh"),
	}
}

func (j *PriceRefreshJob) Name() string { return "price_refresh" }

func (j *PriceRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	ctx = logger.ToContext(ctx, j.log)

	held, err := j.symbols.HeldSymbols(ctx)
	if err != nil {
		return fmt.Errorf("list held symbols: %w", err)
	}
	if len(held) == 0 {
		j.log.Debug("No held symbols to refresh")
		return nil
	}
	return j.prices.RefreshPrices(ctx, held)
}
