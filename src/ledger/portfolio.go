package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Portfolio aggregates the per-symbol ledgers of one named, account-owned
// portfolio. A Portfolio is not safe for concurrent mutation; callers
// serialize writes and hand readers a Snapshot.
type Portfolio struct {
	ID        string
	AccountID string
	Name      string
	Version   int64
	CreatedAt time.Time

	ledgers map[string]*Ledger
	// symbols in the order they were first traded
	symbols []string
	nextSeq int64
}

// NewPortfolio returns an empty portfolio.
func NewPortfolio(id, accountID, name string, createdAt time.Time) *Portfolio {
	return &Portfolio{
		ID:        id,
		AccountID: accountID,
		Name:      name,
		CreatedAt: createdAt,
		ledgers:   make(map[string]*Ledger),
		nextSeq:   1,
	}
}

// Restore rebuilds a portfolio from persisted trades, keeping their stored
// bookkeeping. Trades are applied in sequence order.
func Restore(id, accountID, name string, version int64, createdAt time.Time, trades []Trade) (*Portfolio, error) {
	p := NewPortfolio(id, accountID, name, createdAt)
	p.Version = version

	sorted := append([]Trade(nil), trades...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	for _, t := range sorted {
		t.Symbol = NormalizeSymbol(t.Symbol)
		if err := p.ledger(t.Symbol).restore(t); err != nil {
			return nil, err
		}
		if t.Seq >= p.nextSeq {
			p.nextSeq = t.Seq + 1
		}
	}
	return p, nil
}

func (p *Portfolio) ledger(symbol string) *Ledger {
	l, ok := p.ledgers[symbol]
	if !ok {
		l = newLedger(symbol)
		p.ledgers[symbol] = l
		p.symbols = append(p.symbols, symbol)
	}
	return l
}

func (p *Portfolio) newTrade(symbol string, price decimal.Decimal, quantity int64, ts time.Time) Trade {
	if ts.IsZero() {
		ts = time.Now()
	}
	t := Trade{
		ID:        uuid.NewString(),
		Seq:       p.nextSeq,
		Symbol:    symbol,
		Price:     price,
		Quantity:  quantity,
		Timestamp: ts.UTC(),
	}
	return t
}

// RecordBuy appends a new lot for symbol. A zero timestamp means now.
func (p *Portfolio) RecordBuy(symbol string, price decimal.Decimal, quantity int64, ts time.Time) (Trade, error) {
	symbol = NormalizeSymbol(symbol)
	if err := validateOrder(symbol, price, quantity); err != nil {
		return Trade{}, err
	}
	t := p.ledger(symbol).recordBuy(p.newTrade(symbol, price, quantity, ts))
	p.nextSeq++
	return t, nil
}

// RecordSell matches quantity shares against the oldest lots of symbol.
// Nothing is mutated when the sell is rejected.
func (p *Portfolio) RecordSell(symbol string, price decimal.Decimal, quantity int64, ts time.Time) (Trade, error) {
	symbol = NormalizeSymbol(symbol)
	if err := validateOrder(symbol, price, quantity); err != nil {
		return Trade{}, err
	}
	l, ok := p.ledgers[symbol]
	if !ok {
		l = newLedger(symbol)
	}
	t, err := l.recordSell(p.newTrade(symbol, price, quantity, ts))
	if err != nil {
		return Trade{}, err
	}
	p.nextSeq++
	return t, nil
}

// Record dispatches on direction.
func (p *Portfolio) Record(d Direction, symbol string, price decimal.Decimal, quantity int64, ts time.Time) (Trade, error) {
	if d == Sell {
		return p.RecordSell(symbol, price, quantity, ts)
	}
	return p.RecordBuy(symbol, price, quantity, ts)
}

// Symbols lists every symbol ever traded, in first-trade order.
func (p *Portfolio) Symbols() []string {
	return append([]string(nil), p.symbols...)
}

// SharesOwned maps each requested symbol to its remaining share count.
// With no symbols it reports every symbol ever traded.
func (p *Portfolio) SharesOwned(symbols ...string) map[string]int64 {
	if len(symbols) == 0 {
		symbols = p.symbols
	}
	owned := make(map[string]int64, len(symbols))
	for _, s := range symbols {
		s = NormalizeSymbol(s)
		if l, ok := p.ledgers[s]; ok {
			owned[s] = l.SharesOwned()
		} else {
			owned[s] = 0
		}
	}
	return owned
}

// SymbolsOwned returns the sorted symbols with a positive share count.
func (p *Portfolio) SymbolsOwned() []string {
	var held []string
	for _, s := range p.symbols {
		if p.ledgers[s].SharesOwned() > 0 {
			held = append(held, s)
		}
	}
	sort.Strings(held)
	return held
}

// Buys returns every buy lot in submission order.
func (p *Portfolio) Buys() []Trade {
	return p.collect(func(l *Ledger) []Trade { return l.buys })
}

// Sells returns every sell in submission order.
func (p *Portfolio) Sells() []Trade {
	return p.collect(func(l *Ledger) []Trade { return l.sells })
}

// Trades returns buys and sells together in submission order.
func (p *Portfolio) Trades() []Trade {
	return p.collect(func(l *Ledger) []Trade {
		return append(append([]Trade(nil), l.buys...), l.sells...)
	})
}

func (p *Portfolio) collect(pick func(*Ledger) []Trade) []Trade {
	var out []Trade
	for _, s := range p.symbols {
		out = append(out, pick(p.ledgers[s])...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// OrderedTrades merges buys and sells by timestamp. At equal timestamps buys
// come before sells, then submission order decides.
func (p *Portfolio) OrderedTrades() []Trade {
	trades := p.Trades()
	sort.SliceStable(trades, func(i, j int) bool {
		a, b := trades[i], trades[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Direction != b.Direction {
			return a.Direction == Buy
		}
		return a.Seq < b.Seq
	})
	return trades
}

// Snapshot returns a deep copy that later writes to p cannot affect.
func (p *Portfolio) Snapshot() *Portfolio {
	cp := &Portfolio{
		ID:        p.ID,
		AccountID: p.AccountID,
		Name:      p.Name,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		ledgers:   make(map[string]*Ledger, len(p.ledgers)),
		symbols:   append([]string(nil), p.symbols...),
		nextSeq:   p.nextSeq,
	}
	for s, l := range p.ledgers {
		cp.ledgers[s] = l.clone()
	}
	return cp
}

// SharesOwnedAcrossPortfolios reports, per portfolio ID, how many shares of
// symbol each portfolio holds.
func SharesOwnedAcrossPortfolios(symbol string, portfolios []*Portfolio) map[string]int64 {
	symbol = NormalizeSymbol(symbol)
	out := make(map[string]int64, len(portfolios))
	for _, p := range portfolios {
		out[p.ID] = p.SharesOwned(symbol)[symbol]
	}
	return out
}
