package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jask/derivbot/internal/database/repository"
)

// CatalogMarket is a market entry of a catalog.
type CatalogMarket struct {
	Symbol   string
	Title    string
	RefPrice decimal.Decimal
}

// CatalogExchange is an exchange and its markets.
type CatalogExchange struct {
	Name        string
	MaxLeverage int
	Markets     []CatalogMarket
}

func mkt(symbol, title, price string) CatalogMarket {
	return CatalogMarket{Symbol: symbol, Title: title, RefPrice: decimal.RequireFromString(price)}
}

var defaultCatalog = []CatalogExchange{
	{Name: "Binance Futures", MaxLeverage: 125, Markets: []CatalogMarket{
		mkt("BTCUSDT", "BTC/USDT Perpetual", "64250"),
		mkt("ETHUSDT", "ETH/USDT Perpetual", "3120"),
		mkt("SOLUSDT", "SOL/USDT Perpetual", "148.5"),
	}},
	{Name: "Bybit", MaxLeverage: 100, Markets: []CatalogMarket{
		mkt("BTCUSDT", "BTC/USDT Perpetual", "64240"),
		mkt("ETHUSDT", "ETH/USDT Perpetual", "3118"),
		mkt("XRPUSDT", "XRP/USDT Perpetual", "0.52"),
	}},
	{Name: "OKX", MaxLeverage: 100, Markets: []CatalogMarket{
		mkt("BTC-USDT-SWAP", "BTC/USDT Swap", "64260"),
		mkt("ETH-USDT-SWAP", "ETH/USDT Swap", "3121"),
	}},
	{Name: "Deribit", MaxLeverage: 50, Markets: []CatalogMarket{
		mkt("BTC-PERPETUAL", "BTC Perpetual (inverse)", "64230"),
		mkt("ETH-PERPETUAL", "ETH Perpetual (inverse)", "3116"),
	}},
}

// ExchangeID derives the stable id used for a seeded exchange name.
func ExchangeID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("exchange:"+name)).String()
}

// MarketID derives the stable id used for a seeded market.
func MarketID(exchangeName, symbol string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("market:"+exchangeName+":"+symbol)).String()
}

// SeedDefaults ensures the exchange and market catalog exists.
// It is idempotent and safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	existing, err := repository.NewExchangeRepo(db).List(ctx)
	if err == nil && len(existing) > 0 {
		return nil
	}
	return UpsertCatalog(ctx, db, defaultCatalog, 0)
}

// UpsertCatalog inserts or updates exchanges and their markets in one
// transaction. Exchanges are ordered after firstSort in slice order.
func UpsertCatalog(ctx context.Context, db *sql.DB, catalog []CatalogExchange, firstSort int) error {
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		exRepo := repository.NewExchangeRepo(tx)
		mRepo := repository.NewMarketRepo(tx)
		for i, ex := range catalog {
			exID := ExchangeID(ex.Name)
			if err := exRepo.Upsert(ctx, repository.Exchange{ID: exID, Name: ex.Name, MaxLeverage: ex.MaxLeverage, SortOrder: firstSort + i}); err != nil {
				return fmt.Errorf("upsert exchange %s: %w", ex.Name, err)
			}
			for j, m := range ex.Markets {
				market := repository.Market{
					ID:         MarketID(ex.Name, m.Symbol),
					ExchangeID: exID,
					Symbol:     m.Symbol,
					Title:      m.Title,
					RefPrice:   m.RefPrice,
					SortOrder:  j,
				}
				if err := mRepo.Upsert(ctx, market); err != nil {
					return fmt.Errorf("upsert market %s: %w", m.Symbol, err)
				}
			}
		}
		return nil
	})
}
