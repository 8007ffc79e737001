package feed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// Simulated is a random-walk feed for paper trading without a market connection.
type Simulated struct {
	Interval   time.Duration
	Volatility float64 // stddev of each step as a fraction of price
	Seed       int64
}

func NewSimulated(interval time.Duration, volatility float64, seed int64) *Simulated {
	return &Simulated{Interval: interval, Volatility: volatility, Seed: seed}
}

func (s *Simulated) Subscribe(ctx context.Context, symbol string, ref decimal.Decimal) (<-chan Tick, error) {
	if !ref.IsPositive() {
		return nil, fmt.Errorf("simulated feed: %s needs a positive reference price, got %s", symbol, ref)
	}
	if s.Interval <= 0 {
		return nil, fmt.Errorf("simulated feed: interval must be positive")
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	rng := rand.New(rand.NewSource(s.Seed ^ int64(h.Sum64())))

	out := make(chan Tick, 16)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		price := ref
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				step := rng.NormFloat64() * s.Volatility
				next := price.Mul(decimal.NewFromFloat(1 + step)).Round(6)
				if next.IsPositive() {
					price = next
				}
				select {
				case out <- Tick{Symbol: symbol, Price: price, Time: now.UTC()}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
