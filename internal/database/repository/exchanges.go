package repository

import (
	"context"
	"database/sql"
)

// ExchangeRepo handles exchanges.
type ExchangeRepo struct {
	db DBTX
}

func NewExchangeRepo(db DBTX) *ExchangeRepo { return &ExchangeRepo{db: db} }

func (r *ExchangeRepo) Upsert(ctx context.Context, e Exchange) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO exchanges(id, name, max_leverage, sort_order)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 max_leverage=excluded.max_leverage,
	 sort_order=excluded.sort_order;
	`, e.ID, e.Name, e.MaxLeverage, e.SortOrder)
	return err
}

func (r *ExchangeRepo) List(ctx context.Context) ([]Exchange, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, max_leverage, sort_order FROM exchanges ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Exchange
	for rows.Next() {
		var e Exchange
		if err := rows.Scan(&e.ID, &e.Name, &e.MaxLeverage, &e.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns nil, nil when the exchange does not exist.
func (r *ExchangeRepo) Get(ctx context.Context, id string) (*Exchange, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, max_leverage, sort_order FROM exchanges WHERE id = ?`, id)
	var e Exchange
	if err := row.Scan(&e.ID, &e.Name, &e.MaxLeverage, &e.SortOrder); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}
