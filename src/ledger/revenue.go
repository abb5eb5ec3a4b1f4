package ledger

import "github.com/shopspring/decimal"

// PortfolioRevenue is profit and loss per symbol. AtAsk is what completed
// sells realized; AtMoment adds the paper gain on shares still held.
type PortfolioRevenue struct {
	AtAsk         map[string]decimal.Decimal `json:"atAsk"`
	AtMoment      map[string]decimal.Decimal `json:"atMoment"`
	TotalAtAsk    decimal.Decimal            `json:"totalAtAsk"`
	TotalAtMoment decimal.Decimal            `json:"totalAtMoment"`
}

// NewPortfolioRevenue computes revenue for p at the given symbol prices.
// Every held symbol must have a price.
func NewPortfolioRevenue(p *Portfolio, prices map[string]decimal.Decimal) (*PortfolioRevenue, error) {
	prices = normalizePrices(prices)
	if err := checkPrices(p.SymbolsOwned(), prices); err != nil {
		return nil, err
	}

	r := &PortfolioRevenue{
		AtAsk:    make(map[string]decimal.Decimal),
		AtMoment: make(map[string]decimal.Decimal),
	}
	for _, s := range p.symbols {
		l := p.ledgers[s]
		realized, unrealized := decimal.Zero, decimal.Zero
		for _, lot := range l.buys {
			cost := decimal.NewFromInt(lot.Consumed()).Mul(lot.Price)
			realized = realized.Add(lot.SoldFor.Sub(cost))
			if lot.Remaining > 0 {
				gain := prices[s].Sub(lot.Price).Mul(decimal.NewFromInt(lot.Remaining))
				unrealized = unrealized.Add(gain)
			}
		}

		atAsk := Round2(realized)
		atMoment := Round2(realized.Add(unrealized))
		if !atAsk.IsZero() {
			r.AtAsk[s] = atAsk
		}
		if !atMoment.IsZero() {
			r.AtMoment[s] = atMoment
		}
		r.TotalAtAsk = r.TotalAtAsk.Add(atAsk)
		r.TotalAtMoment = r.TotalAtMoment.Add(atMoment)
	}
	return r, nil
}
