package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jask/derivbot/internal/database/repository"
)

const (
	keyExchange = "risk.exchange_id"
	keyMarket   = "risk.market_id"
	keyLeverage = "risk.leverage"
	keyIsolated = "risk.isolated"
)

// Selection is the exchange, market and margin settings picked by the user.
type Selection struct {
	ExchangeID string
	MarketID   string
	Leverage   int
	Isolated   bool
}

// RiskSettingsService remembers the last selection between sessions.
type RiskSettingsService struct {
	Settings *repository.SettingsRepo
}

// Load returns the stored selection. Missing or unreadable values come back
// zero so callers fall back to catalog defaults.
func (s *RiskSettingsService) Load(ctx context.Context) (Selection, error) {
	all, err := s.Settings.All(ctx)
	if err != nil {
		return Selection{}, fmt.Errorf("load risk settings: %w", err)
	}
	sel := Selection{
		ExchangeID: all[keyExchange],
		MarketID:   all[keyMarket],
	}
	if n, err := strconv.Atoi(all[keyLeverage]); err == nil {
		sel.Leverage = n
	}
	if b, err := strconv.ParseBool(all[keyIsolated]); err == nil {
		sel.Isolated = b
	}
	return sel, nil
}

func (s *RiskSettingsService) Save(ctx context.Context, sel Selection) error {
	pairs := [][2]string{
		{keyExchange, sel.ExchangeID},
		{keyMarket, sel.MarketID},
		{keyLeverage, strconv.Itoa(sel.Leverage)},
		{keyIsolated, strconv.FormatBool(sel.Isolated)},
	}
	for _, kv := range pairs {
		if err := s.Settings.Set(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("save %s: %w", kv[0], err)
		}
	}
	return nil
}
