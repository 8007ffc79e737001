package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jask/derivbot/internal/database/repository"
	"github.com/jask/derivbot/internal/grid"
)

// StrategyFields are the raw strategy inputs as typed by the user.
type StrategyFields struct {
	LowerPrice  string
	UpperPrice  string
	GridLevels  string
	OrderVolume string
}

// Generated is a saved config and where it was exported, if anywhere.
type Generated struct {
	Config     grid.Config
	ExportPath string
}

// ConfiguratorService turns strategy fields and a risk selection into a
// persisted grid configuration.
type ConfiguratorService struct {
	Catalog   *CatalogService
	Configs   *repository.BotConfigRepo
	ExportDir string
	Log       logrus.FieldLogger
}

func (s *ConfiguratorService) Generate(ctx context.Context, f StrategyFields, sel Selection) (Generated, error) {
	params, err := grid.ParseParams(f.LowerPrice, f.UpperPrice, f.GridLevels, f.OrderVolume)
	if err != nil {
		return Generated{}, err
	}
	ex, m, err := s.Catalog.Resolve(ctx, sel.ExchangeID, sel.MarketID)
	if err != nil {
		return Generated{}, err
	}

	cfg := grid.Config{
		ID:           uuid.NewString(),
		ExchangeID:   ex.ID,
		ExchangeName: ex.Name,
		MarketID:     m.ID,
		MarketSymbol: m.Symbol,
		MarketTitle:  m.Title,
		Params:       params,
		Leverage:     sel.Leverage,
		Isolated:     sel.Isolated,
		CreatedAt:    time.Now().UTC(),
	}
	if err := cfg.Validate(ex.MaxLeverage); err != nil {
		return Generated{}, err
	}

	if err := s.Configs.Save(ctx, toRow(cfg)); err != nil {
		return Generated{}, fmt.Errorf("save config: %w", err)
	}
	out := Generated{Config: cfg}

	if s.ExportDir != "" {
		path, err := s.export(cfg)
		if err != nil {
			return out, err
		}
		if err := s.Configs.SetExportPath(ctx, cfg.ID, path); err != nil {
			return out, fmt.Errorf("record export path: %w", err)
		}
		out.ExportPath = path
	}

	s.log().WithFields(logrus.Fields{
		"config":   cfg.ID,
		"exchange": ex.Name,
		"market":   m.Symbol,
		"levels":   params.GridLevels,
		"export":   out.ExportPath,
	}).Info("grid config generated")
	return out, nil
}

// Latest rebuilds the most recently generated config. It returns nil, nil
// when none exists or its exchange or market was removed.
func (s *ConfiguratorService) Latest(ctx context.Context) (*grid.Config, error) {
	row, err := s.Configs.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest config: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	ex, m, err := s.Catalog.Resolve(ctx, row.ExchangeID, row.MarketID)
	if errors.Is(err, ErrUnknownExchange) || errors.Is(err, ErrUnknownMarket) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve config %s: %w", row.ID, err)
	}
	cfg := grid.Config{
		ID:           row.ID,
		ExchangeID:   ex.ID,
		ExchangeName: ex.Name,
		MarketID:     m.ID,
		MarketSymbol: m.Symbol,
		MarketTitle:  m.Title,
		Params: grid.Params{
			Lower:       row.LowerPrice,
			Upper:       row.UpperPrice,
			GridLevels:  row.GridLevels,
			OrderVolume: row.OrderVolume,
		},
		Leverage:  row.Leverage,
		Isolated:  row.Isolated,
		CreatedAt: row.CreatedAt,
	}
	return &cfg, nil
}

func (s *ConfiguratorService) export(cfg grid.Config) (string, error) {
	if err := os.MkdirAll(s.ExportDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	name := fmt.Sprintf("grid-%s-%s-%s.yaml", fileSafe(cfg.MarketSymbol), cfg.CreatedAt.Format("20060102-150405"), shortID(cfg.ID))
	path := filepath.Join(s.ExportDir, name)
	fh, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export: %w", err)
	}
	if err := grid.Export(fh, cfg, grid.FormatForPath(path)); err != nil {
		_ = fh.Close()
		return "", fmt.Errorf("export %s: %w", path, err)
	}
	if err := fh.Close(); err != nil {
		return "", fmt.Errorf("close export: %w", err)
	}
	return path, nil
}

func (s *ConfiguratorService) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

func toRow(c grid.Config) repository.BotConfig {
	return repository.BotConfig{
		ID:          c.ID,
		ExchangeID:  c.ExchangeID,
		MarketID:    c.MarketID,
		LowerPrice:  c.Params.Lower,
		UpperPrice:  c.Params.Upper,
		GridLevels:  c.Params.GridLevels,
		OrderVolume: c.Params.OrderVolume,
		Leverage:    c.Leverage,
		Isolated:    c.Isolated,
		CreatedAt:   c.CreatedAt,
	}
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
