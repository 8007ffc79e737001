package repository

import (
	"context"
	"database/sql"
)

// BotConfigRepo handles generated grid configurations.
type BotConfigRepo struct{ db DBTX }

func NewBotConfigRepo(db DBTX) *BotConfigRepo { return &BotConfigRepo{db: db} }

const botConfigColumns = `id, exchange_id, market_id, lower_price, upper_price, grid_levels, order_volume, leverage, isolated, export_path, created_at`

func (r *BotConfigRepo) Save(ctx context.Context, c BotConfig) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO bot_configs(`+botConfigColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ExchangeID, c.MarketID, c.LowerPrice.String(), c.UpperPrice.String(), c.GridLevels,
		c.OrderVolume.String(), c.Leverage, c.Isolated, c.ExportPath, c.CreatedAt)
	return err
}

func (r *BotConfigRepo) SetExportPath(ctx context.Context, id, path string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE bot_configs SET export_path = ? WHERE id = ?`, path, id)
	return err
}

// Get returns nil, nil when the config does not exist.
func (r *BotConfigRepo) Get(ctx context.Context, id string) (*BotConfig, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+botConfigColumns+` FROM bot_configs WHERE id = ?`, id)
	return scanBotConfig(row)
}

// Latest returns the most recently generated config, or nil, nil.
func (r *BotConfigRepo) Latest(ctx context.Context) (*BotConfig, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+botConfigColumns+` FROM bot_configs ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	return scanBotConfig(row)
}

func scanBotConfig(row *sql.Row) (*BotConfig, error) {
	var c BotConfig
	err := row.Scan(&c.ID, &c.ExchangeID, &c.MarketID, &c.LowerPrice, &c.UpperPrice, &c.GridLevels,
		&c.OrderVolume, &c.Leverage, &c.Isolated, &c.ExportPath, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
