// Package display renders quote numbers for people. The core keeps float64;
// rounding happens only here.
package display

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"stockwatch/internal/provider"
)

// DefaultCurrency is used when a caller has no better idea.
const DefaultCurrency = money.USD

// Price formats v in currency, e.g. "$110.00". Unknown currencies fall back
// to a bare two-decimal number.
func Price(v float64, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return decimal.NewFromFloat(v).StringFixed(2)
	}
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := decimal.NewFromFloat(v).Mul(factor).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}

// Change formats an absolute and percent change, e.g. "+10.00 (10.00%)".
func Change(change, pct float64) string {
	c := decimal.NewFromFloat(change).Round(2)
	p := decimal.NewFromFloat(pct).Round(2)
	sign := ""
	if !c.IsNegative() {
		sign = "+"
	}
	return fmt.Sprintf("%s%s (%s%%)", sign, c.StringFixed(2), p.StringFixed(2))
}

// Direction is "up" for non-negative changes and "down" otherwise.
func Direction(change float64) string {
	if change < 0 {
		return "down"
	}
	return "up"
}

// Block is the presentation view of a quote.
type Block struct {
	Price     string `json:"price"`
	Change    string `json:"change"`
	Direction string `json:"direction"`
}

func ForQuote(q provider.Quote, currency string) Block {
	return Block{
		Price:     Price(q.Price, currency),
		Change:    Change(q.Change, q.ChangePercent),
		Direction: Direction(q.Change),
	}
}
