package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// PortfolioValue is the value of the shares still held, at purchase cost
// (AtBid) and at the supplied current prices (AtMoment). Per-symbol entries
// are rounded to cents and zero entries are left out.
type PortfolioValue struct {
	AtBid         map[string]decimal.Decimal `json:"atBid"`
	AtMoment      map[string]decimal.Decimal `json:"atMoment"`
	TotalAtBid    decimal.Decimal            `json:"totalAtBid"`
	TotalAtMoment decimal.Decimal            `json:"totalAtMoment"`
}

// NewPortfolioValue values p at the given symbol prices. Every held symbol
// must have a price.
func NewPortfolioValue(p *Portfolio, prices map[string]decimal.Decimal) (*PortfolioValue, error) {
	prices = normalizePrices(prices)
	held := p.SymbolsOwned()
	if err := checkPrices(held, prices); err != nil {
		return nil, err
	}

	v := &PortfolioValue{
		AtBid:    make(map[string]decimal.Decimal),
		AtMoment: make(map[string]decimal.Decimal),
	}
	for _, s := range held {
		l := p.ledgers[s]
		atBid := Round2(l.costOfRemaining())
		atMoment := Round2(decimal.NewFromInt(l.SharesOwned()).Mul(prices[s]))
		if !atBid.IsZero() {
			v.AtBid[s] = atBid
			v.TotalAtBid = v.TotalAtBid.Add(atBid)
		}
		if !atMoment.IsZero() {
			v.AtMoment[s] = atMoment
			v.TotalAtMoment = v.TotalAtMoment.Add(atMoment)
		}
	}
	return v, nil
}

func (l *Ledger) costOfRemaining() decimal.Decimal {
	sum := decimal.Zero
	for i := l.head; i < len(l.buys); i++ {
		lot := l.buys[i]
		if lot.Remaining > 0 {
			sum = sum.Add(decimal.NewFromInt(lot.Remaining).Mul(lot.Price))
		}
	}
	return sum
}

func normalizePrices(prices map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(prices))
	for s, px := range prices {
		out[NormalizeSymbol(s)] = px
	}
	return out
}

func checkPrices(held []string, prices map[string]decimal.Decimal) error {
	var missing []string
	for _, s := range held {
		if _, ok := prices[s]; !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: no price for %s", ErrMissingPrice, strings.Join(missing, ", "))
	}
	return nil
}
