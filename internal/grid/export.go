package grid

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is an export encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatForPath picks the format from a file extension, defaulting to YAML.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

type document struct {
	ID        string       `yaml:"id" toml:"id" json:"id"`
	CreatedAt string       `yaml:"created_at" toml:"created_at" json:"created_at"`
	Exchange  string       `yaml:"exchange" toml:"exchange" json:"exchange"`
	Market    string       `yaml:"market" toml:"market" json:"market"`
	Grid      gridSection  `yaml:"grid" toml:"grid" json:"grid"`
	Risk      riskSection  `yaml:"risk" toml:"risk" json:"risk"`
	Orders    []orderLevel `yaml:"orders" toml:"orders" json:"orders"`
}

type gridSection struct {
	LowerPrice  string `yaml:"lower_price" toml:"lower_price" json:"lower_price"`
	UpperPrice  string `yaml:"upper_price" toml:"upper_price" json:"upper_price"`
	Levels      int    `yaml:"levels" toml:"levels" json:"levels"`
	Step        string `yaml:"step" toml:"step" json:"step"`
	OrderVolume string `yaml:"order_volume" toml:"order_volume" json:"order_volume"`
}

type riskSection struct {
	Leverage       int    `yaml:"leverage" toml:"leverage" json:"leverage"`
	MarginMode     string `yaml:"margin_mode" toml:"margin_mode" json:"margin_mode"`
	Notional       string `yaml:"notional" toml:"notional" json:"notional"`
	RequiredMargin string `yaml:"required_margin" toml:"required_margin" json:"required_margin"`
}

type orderLevel struct {
	Level int    `yaml:"level" toml:"level" json:"level"`
	Price string `yaml:"price" toml:"price" json:"price"`
}

func newDocument(c Config) document {
	prices := c.Params.Prices()
	orders := make([]orderLevel, len(prices))
	for i, px := range prices {
		orders[i] = orderLevel{Level: i, Price: px.String()}
	}
	return document{
		ID:        c.ID,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		Exchange:  c.ExchangeName,
		Market:    c.MarketSymbol,
		Grid: gridSection{
			LowerPrice:  c.Params.Lower.String(),
			UpperPrice:  c.Params.Upper.String(),
			Levels:      c.Params.GridLevels,
			Step:        c.Params.Step().String(),
			OrderVolume: c.Params.OrderVolume.String(),
		},
		Risk: riskSection{
			Leverage:       c.Leverage,
			MarginMode:     c.MarginMode(),
			Notional:       c.Params.Notional().String(),
			RequiredMargin: c.RequiredMargin().String(),
		},
		Orders: orders,
	}
}

// Export writes cfg to w in the given format.
func Export(w io.Writer, cfg Config, format Format) error {
	doc := newDocument(cfg)
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(doc); err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
