package ledger

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !dec(want).Equal(got) {
		assert.Fail(t, fmt.Sprintf("want %s, got %s", want, got.String()), msgAndArgs...)
	}
}

// aaplScenario builds: buy 10@100, sell 4@120, buy 5@110, sell 8@130.
func aaplScenario(t *testing.T) *Portfolio {
	t.Helper()
	p := NewPortfolio("pf-1", "acc-1", "Main", t0)
	_, err := p.RecordBuy("AAPL", dec("100"), 10, t0)
	require.NoError(t, err)
	_, err = p.RecordSell("AAPL", dec("120"), 4, t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = p.RecordBuy("AAPL", dec("110"), 5, t0.Add(2*time.Hour))
	require.NoError(t, err)
	_, err = p.RecordSell("AAPL", dec("130"), 8, t0.Add(3*time.Hour))
	require.NoError(t, err)
	return p
}

func TestRecordBuy_OpensLot(t *testing.T) {
	p := NewPortfolio("pf-1", "acc-1", "Main", t0)

	lot, err := p.RecordBuy(" aapl ", dec("100"), 10, t0)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", lot.Symbol)
	assert.Equal(t, Buy, lot.Direction)
	assert.Equal(t, int64(10), lot.Remaining)
	assert.True(t, lot.SoldFor.IsZero())
	assert.NotEmpty(t, lot.ID)
	assert.Equal(t, map[string]int64{"AAPL": 10}, p.SharesOwned("AAPL"))
}

func TestRecordSell_PartialLot(t *testing.T) {
	p := NewPortfolio("pf-1", "acc-1", "Main", t0)
	_, err := p.RecordBuy("AAPL", dec("100"), 10, t0)
	require.NoError(t, err)

	sell, err := p.RecordSell("AAPL", dec("120"), 4, t0.Add(time.Hour))
	require.NoError(t, err)

	lots := p.Buys()
	require.Len(t, lots, 1)
	assert.Equal(t, int64(6), lots[0].Remaining)
	assertDecimal(t, "480", lots[0].SoldFor)
	assertDecimal(t, "400", sell.BoughtFor)
	assert.Equal(t, map[string]int64{"AAPL": 6}, p.SharesOwned("AAPL"))
}

func TestRecordSell_SpansLots(t *testing.T) {
	p := aaplScenario(t)

	lots := p.Buys()
	require.Len(t, lots, 2)
	assert.Equal(t, int64(0), lots[0].Remaining)
	assertDecimal(t, "1260", lots[0].SoldFor, "480 from the first sell plus 780")
	assert.Equal(t, int64(3), lots[1].Remaining)
	assertDecimal(t, "260", lots[1].SoldFor)

	sells := p.Sells()
	require.Len(t, sells, 2)
	assertDecimal(t, "820", sells[1].BoughtFor, "600 from lot one plus 220 from lot two")
}

func TestRecordSell_InsufficientSharesLeavesStateUntouched(t *testing.T) {
	p := aaplScenario(t)
	before := p.Trades()

	_, err := p.RecordSell("AAPL", dec("150"), 4, t0.Add(4*time.Hour))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientShares))
	assert.Equal(t, before, p.Trades())
	assert.Equal(t, int64(3), p.SharesOwned("AAPL")["AAPL"])
}

func TestRecordSell_SkipsConsumedLots(t *testing.T) {
	p := aaplScenario(t)

	_, err := p.RecordSell("AAPL", dec("150"), 2, t0.Add(4*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, int64(1), p.SharesOwned("AAPL")["AAPL"])
}

func TestRecordSell_UnknownSymbol(t *testing.T) {
	p := NewPortfolio("pf-1", "acc-1", "Main", t0)

	_, err := p.RecordSell("MSFT", dec("10"), 1, t0)

	assert.ErrorIs(t, err, ErrInsufficientShares)
	assert.Empty(t, p.Symbols())
}

func TestRecord_ValidatesInput(t *testing.T) {
	testCases := []struct {
		name     string
		symbol   string
		price    string
		quantity int64
	}{
		{name: "empty symbol", symbol: "  ", price: "10", quantity: 1},
		{name: "zero price", symbol: "AAPL", price: "0", quantity: 1},
		{name: "negative price", symbol: "AAPL", price: "-1.5", quantity: 1},
		{name: "zero quantity", symbol: "AAPL", price: "10", quantity: 0},
		{name: "negative quantity", symbol: "AAPL", price: "10", quantity: -3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPortfolio("pf-1", "acc-1", "Main", t0)
			_, buyErr := p.RecordBuy(tc.symbol, dec(tc.price), tc.quantity, t0)
			_, sellErr := p.RecordSell(tc.symbol, dec(tc.price), tc.quantity, t0)

			assert.ErrorIs(t, buyErr, ErrValidation)
			assert.ErrorIs(t, sellErr, ErrValidation)
			assert.Empty(t, p.Trades())
		})
	}
}

func TestFIFO_OlderLotsDrainFirst(t *testing.T) {
	p := NewPortfolio("pf-1", "acc-1", "Main", t0)
	for i, px := range []string{"10", "20", "30"} {
		_, err := p.RecordBuy("XYZ", dec(px), 5, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	for i := 0; i < 15; i++ {
		_, err := p.RecordSell("XYZ", dec("40"), 1, t0.Add(time.Hour))
		require.NoError(t, err)

		lots := p.Buys()
		var sum int64
		for j, lot := range lots {
			assert.GreaterOrEqual(t, lot.Remaining, int64(0))
			assert.LessOrEqual(t, lot.Remaining, lot.Quantity)
			sum += lot.Remaining
			if lot.Remaining < lot.Quantity {
				for k := 0; k < j; k++ {
					assert.Zero(t, lots[k].Remaining, "lot %d drained while lot %d still open", j, k)
				}
			}
		}
		assert.Equal(t, p.SharesOwned("XYZ")["XYZ"], sum)
	}
}

func TestConservation_BoughtForMatchesConsumedCost(t *testing.T) {
	p := NewPortfolio("pf-1", "acc-1", "Main", t0)
	_, _ = p.RecordBuy("XYZ", dec("10.25"), 3, t0)
	_, _ = p.RecordBuy("XYZ", dec("11.10"), 4, t0)
	_, _ = p.RecordBuy("XYZ", dec("12.05"), 5, t0)

	sell, err := p.RecordSell("XYZ", dec("13"), 9, t0)
	require.NoError(t, err)

	// 3*10.25 + 4*11.10 + 2*12.05
	assertDecimal(t, "99.25", sell.BoughtFor)

	var consumed int64
	for _, lot := range p.Buys() {
		consumed += lot.Consumed()
	}
	assert.Equal(t, sell.Quantity, consumed)
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"buy": Buy, "BID": Buy, "sell": Sell, " ask ": Sell} {
		got, err := ParseDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDirection("hold")
	assert.ErrorIs(t, err, ErrValidation)
}
