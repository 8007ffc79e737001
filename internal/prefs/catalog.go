// Package prefs reads user preference files that live next to the config.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/jask/derivbot/internal/database"
)

const catalogFile = "catalog.yaml"

type catalogDoc struct {
	Exchanges []exchangeEntry `yaml:"exchanges"`
}

type exchangeEntry struct {
	Name        string        `yaml:"name"`
	MaxLeverage int           `yaml:"max_leverage"`
	Markets     []marketEntry `yaml:"markets"`
}

type marketEntry struct {
	Symbol   string `yaml:"symbol"`
	Title    string `yaml:"title"`
	RefPrice string `yaml:"ref_price"`
}

// CatalogPath is where user defined exchanges and markets are read from.
func CatalogPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "derivbot", catalogFile), nil
}

// LoadCatalog reads extra exchanges and markets. A missing file is not an
// error and yields nothing.
func LoadCatalog(path string) ([]database.CatalogExchange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make([]database.CatalogExchange, 0, len(doc.Exchanges))
	for _, e := range doc.Exchanges {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("%s: exchange without a name", path)
		}
		if e.MaxLeverage < 1 {
			return nil, fmt.Errorf("%s: %s: max_leverage must be at least 1", path, name)
		}
		ex := database.CatalogExchange{Name: name, MaxLeverage: e.MaxLeverage}
		for _, m := range e.Markets {
			symbol := strings.TrimSpace(m.Symbol)
			if symbol == "" {
				return nil, fmt.Errorf("%s: %s: market without a symbol", path, name)
			}
			price, err := decimal.NewFromString(strings.TrimSpace(m.RefPrice))
			if err != nil || !price.IsPositive() {
				return nil, fmt.Errorf("%s: %s %s: ref_price must be a positive number", path, name, symbol)
			}
			title := strings.TrimSpace(m.Title)
			if title == "" {
				title = symbol
			}
			ex.Markets = append(ex.Markets, database.CatalogMarket{Symbol: symbol, Title: title, RefPrice: price})
		}
		out = append(out, ex)
	}
	return out, nil
}
