package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one daily close.
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// PriceSeries is a list of closes in ascending date order.
type PriceSeries []PricePoint

// At returns the last close at or before t. When the series starts after t
// the first close is used.
func (s PriceSeries) At(t time.Time) (decimal.Decimal, bool) {
	if len(s) == 0 {
		return decimal.Zero, false
	}
	i := sort.Search(len(s), func(i int) bool { return s[i].Date.After(t) })
	if i == 0 {
		return s[0].Close, true
	}
	return s[i-1].Close, true
}

// ValueSnapshot is the portfolio value at one point in time.
type ValueSnapshot struct {
	Time     time.Time       `json:"time"`
	AtBid    decimal.Decimal `json:"atBid"`
	AtMoment decimal.Decimal `json:"atMoment"`
}

// MaxHistorySnapshots bounds the length of a value history.
const MaxHistorySnapshots = 5000

// NewPortfolioValueHistory replays the trades of p and values the holdings
// every intervalDays days, from the first snapshot at or before the earliest
// trade up to now.
//
// Trades are replayed in submission order so lots match exactly as they did
// in p. A trade joins the replay once its own timestamp and those of every
// earlier submission have been reached.
func NewPortfolioValueHistory(p *Portfolio, histories map[string]PriceSeries, intervalDays int, now time.Time) ([]ValueSnapshot, error) {
	if intervalDays <= 0 {
		return nil, fmt.Errorf("%w: interval must be a positive number of days, got %d", ErrValidation, intervalDays)
	}
	snapshots := []ValueSnapshot{}
	trades := p.Trades()
	if len(trades) == 0 {
		return snapshots, nil
	}

	earliest := trades[0].Timestamp
	for _, t := range trades[1:] {
		if t.Timestamp.Before(earliest) {
			earliest = t.Timestamp
		}
	}
	start := now
	for steps := 1; start.After(earliest); steps++ {
		if steps >= MaxHistorySnapshots {
			return nil, fmt.Errorf("%w: an interval of %d days yields more than %d snapshots since %s",
				ErrValidation, intervalDays, MaxHistorySnapshots, earliest.Format(time.DateOnly))
		}
		start = start.AddDate(0, 0, -intervalDays)
	}

	replay := NewPortfolio(p.ID, p.AccountID, p.Name, p.CreatedAt)
	next := 0
	for current := start; !current.After(now); current = current.AddDate(0, 0, intervalDays) {
		for next < len(trades) && !trades[next].Timestamp.After(current) {
			t := trades[next]
			if _, err := replay.Record(t.Direction, t.Symbol, t.Price, t.Quantity, t.Timestamp); err != nil {
				return nil, fmt.Errorf("replaying trade %s: %w", t.ID, err)
			}
			next++
		}

		snap := ValueSnapshot{Time: current}
		for _, s := range replay.SymbolsOwned() {
			px, ok := histories[s].At(current)
			if !ok {
				return nil, fmt.Errorf("%w: no price history for %s", ErrMissingPrice, s)
			}
			l := replay.ledgers[s]
			snap.AtBid = snap.AtBid.Add(Round2(l.costOfRemaining()))
			snap.AtMoment = snap.AtMoment.Add(Round2(decimal.NewFromInt(l.SharesOwned()).Mul(px)))
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}
