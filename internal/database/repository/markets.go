package repository

import (
	"context"
	"database/sql"
)

// MarketRepo handles markets.
type MarketRepo struct {
	db DBTX
}

func NewMarketRepo(db DBTX) *MarketRepo { return &MarketRepo{db: db} }

func (r *MarketRepo) Upsert(ctx context.Context, m Market) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO markets(id, exchange_id, symbol, title, ref_price, sort_order)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 exchange_id=excluded.exchange_id,
	 symbol=excluded.symbol,
	 title=excluded.title,
	 ref_price=excluded.ref_price,
	 sort_order=excluded.sort_order;
	`, m.ID, m.ExchangeID, m.Symbol, m.Title, m.RefPrice.String(), m.SortOrder)
	return err
}

func (r *MarketRepo) ListByExchange(ctx context.Context, exchangeID string) ([]Market, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, exchange_id, symbol, title, ref_price, sort_order
	FROM markets WHERE exchange_id = ?
	ORDER BY sort_order, symbol`, exchangeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Market
	for rows.Next() {
		var m Market
		if err := rows.Scan(&m.ID, &m.ExchangeID, &m.Symbol, &m.Title, &m.RefPrice, &m.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Get returns nil, nil when the market does not exist.
func (r *MarketRepo) Get(ctx context.Context, id string) (*Market, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, exchange_id, symbol, title, ref_price, sort_order FROM markets WHERE id = ?`, id)
	var m Market
	if err := row.Scan(&m.ID, &m.ExchangeID, &m.Symbol, &m.Title, &m.RefPrice, &m.SortOrder); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}
