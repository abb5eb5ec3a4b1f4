package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a trade.
type Direction int

const (
	Buy Direction = iota
	Sell
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection accepts both the buy/sell and the bid/ask vocabulary.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "bid":
		return Buy, nil
	case "sell", "ask":
		return Sell, nil
	}
	return 0, fmt.Errorf("%w: unknown trade direction %q", ErrValidation, s)
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Trade is one executed buy or sell.
//
// For buys, Remaining and SoldFor track how much of the lot later sells have
// consumed. For sells, BoughtFor is the cost basis of the consumed lots.
type Trade struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	Direction Direction       `json:"direction"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`

	Remaining int64           `json:"remaining"`
	SoldFor   decimal.Decimal `json:"soldFor"`
	BoughtFor decimal.Decimal `json:"boughtFor"`
}

// Consumed is the number of shares of a buy lot already matched to sells.
func (t Trade) Consumed() int64 {
	return t.Quantity - t.Remaining
}

// NormalizeSymbol upper-cases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func validateOrder(symbol string, price decimal.Decimal, quantity int64) error {
	if symbol == "" {
		return fmt.Errorf("%w: symbol cannot be empty", ErrValidation)
	}
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be positive, got %s", ErrValidation, price.String())
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer, got %d", ErrValidation, quantity)
	}
	return nil
}

// Round2 rounds a monetary amount to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
