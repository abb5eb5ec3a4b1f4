package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Ledger holds the buy lots and sells of a single symbol in submission order.
// Sells consume the oldest lot that still has remaining shares.
type Ledger struct {
	symbol string
	buys   []Trade
	sells  []Trade
	// head is the index of the oldest lot with remaining shares.
	head int
}

func newLedger(symbol string) *Ledger {
	return &Ledger{symbol: symbol}
}

// Symbol returns the ticker this ledger tracks.
func (l *Ledger) Symbol() string { return l.symbol }

// Buys returns a copy of the buy lots.
func (l *Ledger) Buys() []Trade {
	return append([]Trade(nil), l.buys...)
}

// Sells returns a copy of the sell records.
func (l *Ledger) Sells() []Trade {
	return append([]Trade(nil), l.sells...)
}

// SharesOwned sums the remaining shares of every lot.
func (l *Ledger) SharesOwned() int64 {
	var total int64
	for i := l.head; i < len(l.buys); i++ {
		total += l.buys[i].Remaining
	}
	return total
}

func (l *Ledger) recordBuy(t Trade) Trade {
	t.Direction = Buy
	t.Remaining = t.Quantity
	t.SoldFor = decimal.Zero
	t.BoughtFor = decimal.Zero
	l.buys = append(l.buys, t)
	l.advanceHead()
	return t
}

// available sums remaining shares oldest first, stopping as soon as want is
// covered. Fully consumed lots are skipped.
func (l *Ledger) available(want int64) int64 {
	var sum int64
	for i := l.head; i < len(l.buys) && sum < want; i++ {
		sum += l.buys[i].Remaining
	}
	return sum
}

func (l *Ledger) recordSell(t Trade) (Trade, error) {
	if owned := l.available(t.Quantity); owned < t.Quantity {
		return Trade{}, fmt.Errorf("%w: cannot sell %d %s, only %d owned",
			ErrInsufficientShares, t.Quantity, l.symbol, owned)
	}

	t.Direction = Sell
	t.Remaining = 0
	t.SoldFor = decimal.Zero
	t.BoughtFor = decimal.Zero

	outstanding := t.Quantity
	for i := l.head; i < len(l.buys) && outstanding > 0; i++ {
		lot := &l.buys[i]
		if lot.Remaining == 0 {
			continue
		}
		take := outstanding
		if lot.Remaining < outstanding {
			take = lot.Remaining
		}
		qty := decimal.NewFromInt(take)
		lot.SoldFor = lot.SoldFor.Add(qty.Mul(t.Price))
		t.BoughtFor = t.BoughtFor.Add(qty.Mul(lot.Price))
		lot.Remaining -= take
		outstanding -= take
	}
	l.advanceHead()
	l.sells = append(l.sells, t)
	return t, nil
}

func (l *Ledger) advanceHead() {
	for l.head < len(l.buys) && l.buys[l.head].Remaining == 0 {
		l.head++
	}
}

// restore appends a persisted trade without re-running the matcher.
func (l *Ledger) restore(t Trade) error {
	switch t.Direction {
	case Buy:
		if t.Remaining < 0 || t.Remaining > t.Quantity {
			return fmt.Errorf("%w: lot %s of %s has remaining %d outside [0, %d]",
				ErrValidation, t.ID, l.symbol, t.Remaining, t.Quantity)
		}
		l.buys = append(l.buys, t)
	case Sell:
		t.Remaining = 0
		l.sells = append(l.sells, t)
	default:
		return fmt.Errorf("%w: unknown direction for trade %s", ErrValidation, t.ID)
	}
	l.advanceHead()
	return nil
}

func (l *Ledger) clone() *Ledger {
	return &Ledger{
		symbol: l.symbol,
		buys:   l.Buys(),
		sells:  l.Sells(),
		head:   l.head,
	}
}
