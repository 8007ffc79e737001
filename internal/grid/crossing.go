package grid

import "github.com/shopspring/decimal"

// Side of a simulated grid order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Crossing is a grid level passed by a price move.
type Crossing struct {
	Level int
	Price decimal.Decimal
	Side  Side
}

// Crossings lists the levels passed when price moves from prev to next, in
// the order they were passed. Falling through a level buys it and rising
// through a level sells it. A level touched exactly by next counts; one equal
// to prev does not, so the same level never fills twice for one move.
func Crossings(prices []decimal.Decimal, prev, next decimal.Decimal) []Crossing {
	var out []Crossing
	switch {
	case next.LessThan(prev):
		for i := len(prices) - 1; i >= 0; i-- {
			px := prices[i]
			if px.LessThan(prev) && px.GreaterThanOrEqual(next) {
				out = append(out, Crossing{Level: i, Price: px, Side: Buy})
			}
		}
	case next.GreaterThan(prev):
		for i, px := range prices {
			if px.GreaterThan(prev) && px.LessThanOrEqual(next) {
				out = append(out, Crossing{Level: i, Price: px, Side: Sell})
			}
		}
	}
	return out
}
