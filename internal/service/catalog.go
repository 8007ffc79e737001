package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jask/derivbot/internal/database/repository"
)

var (
	ErrUnknownExchange = errors.New("unknown exchange")
	ErrUnknownMarket   = errors.New("unknown market")
)

// CatalogService lists the exchanges and markets a bot can target.
type CatalogService struct {
	Exchanges *repository.ExchangeRepo
	Markets   *repository.MarketRepo
}

func (s *CatalogService) ListExchanges(ctx context.Context) ([]repository.Exchange, error) {
	exs, err := s.Exchanges.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	return exs, nil
}

func (s *CatalogService) MarketsFor(ctx context.Context, exchangeID string) ([]repository.Market, error) {
	ms, err := s.Markets.ListByExchange(ctx, exchangeID)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	return ms, nil
}

// Resolve returns the exchange and market of a selection, checking that the
// market is listed on that exchange.
func (s *CatalogService) Resolve(ctx context.Context, exchangeID, marketID string) (repository.Exchange, repository.Market, error) {
	ex, err := s.Exchanges.Get(ctx, exchangeID)
	if err != nil {
		return repository.Exchange{}, repository.Market{}, fmt.Errorf("get exchange: %w", err)
	}
	if ex == nil {
		return repository.Exchange{}, repository.Market{}, ErrUnknownExchange
	}
	m, err := s.Markets.Get(ctx, marketID)
	if err != nil {
		return repository.Exchange{}, repository.Market{}, fmt.Errorf("get market: %w", err)
	}
	if m == nil || m.ExchangeID != ex.ID {
		return repository.Exchange{}, repository.Market{}, ErrUnknownMarket
	}
	return *ex, *m, nil
}
