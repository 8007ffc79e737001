// Package feed streams mark prices for the paper runner.
package feed

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Tick is one price observation.
type Tick struct {
	Symbol string
	Price  decimal.Decimal
	Time   time.Time
}

// Feed produces ticks for a symbol until ctx is done, then closes the channel.
// ref is the last known price and seeds feeds that need a starting point.
type Feed interface {
	Subscribe(ctx context.Context, symbol string, ref decimal.Decimal) (<-chan Tick, error)
}
