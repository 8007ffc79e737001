package grid

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParseParamsValid(t *testing.T) {
	p, err := ParseParams(" 60,000 ", "64000", "5", "0.01")
	require.NoError(t, err)
	require.True(t, p.Lower.Equal(dec("60000")))
	require.Equal(t, 5, p.GridLevels)
	require.True(t, p.Step().Equal(dec("1000")))

	prices := p.Prices()
	require.Len(t, prices, 5)
	require.True(t, prices[0].Equal(dec("60000")))
	require.True(t, prices[2].Equal(dec("62000")))
	require.True(t, prices[4].Equal(dec("64000")))
	// 0.01 * (60000+61000+62000+63000+64000)
	require.True(t, p.Notional().Equal(dec("3100")))
}

func TestParseParamsErrors(t *testing.T) {
	cases := []struct {
		name                         string
		lower, upper, levels, volume string
		field                        string
		want                         error
	}{
		{"empty lower", "", "2", "3", "1", "lower price", ErrEmptyField},
		{"text upper", "1", "abc", "3", "1", "upper price", ErrNotNumber},
		{"fractional levels", "1", "2", "2.5", "1", "grid levels", ErrNotNumber},
		{"zero volume", "1", "2", "3", "0", "order volume", ErrNotPositive},
		{"negative lower", "-1", "2", "3", "1", "lower price", ErrNotPositive},
		{"one level", "1", "2", "1", "1", "grid levels", ErrLevelsOutOfRange},
		{"too many levels", "1", "2", "501", "1", "grid levels", ErrLevelsOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseParams(tc.lower, tc.upper, tc.levels, tc.volume)
			require.ErrorIs(t, err, tc.want)
			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			require.Equal(t, tc.field, fe.Field)
		})
	}
}

func TestParseParamsInvertedRange(t *testing.T) {
	_, err := ParseParams("65000", "60000", "4", "1")
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = ParseParams("60000", "60000", "4", "1")
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestPricesEndsExactlyOnUpper(t *testing.T) {
	p, err := ParseParams("1", "2", "4", "1")
	require.NoError(t, err)
	prices := p.Prices()
	require.True(t, prices[len(prices)-1].Equal(dec("2")))
	require.True(t, prices[1].Equal(dec("1.33333333")))
}

func TestConfigValidateLeverage(t *testing.T) {
	p, err := ParseParams("100", "200", "3", "1")
	require.NoError(t, err)
	cfg := Config{Params: p, Leverage: 20}
	require.NoError(t, cfg.Validate(20))
	require.ErrorIs(t, cfg.Validate(10), ErrLeverage)
	cfg.Leverage = 0
	require.ErrorIs(t, cfg.Validate(10), ErrLeverage)
}

func TestRequiredMargin(t *testing.T) {
	p, err := ParseParams("100", "300", "3", "2")
	require.NoError(t, err)
	// notional = 2 * (100+200+300) = 1200
	cfg := Config{Params: p, Leverage: 4}
	require.True(t, cfg.RequiredMargin().Equal(dec("300")))
	require.Equal(t, "cross", cfg.MarginMode())
	cfg.Isolated = true
	require.Equal(t, "isolated", cfg.MarginMode())
}

func TestCrossings(t *testing.T) {
	p, err := ParseParams("100", "140", "5", "1")
	require.NoError(t, err)
	prices := p.Prices() // 100 110 120 130 140

	down := Crossings(prices, dec("125"), dec("105"))
	require.Len(t, down, 2)
	require.Equal(t, 2, down[0].Level)
	require.True(t, down[0].Price.Equal(prices[2]))
	require.Equal(t, 1, down[1].Level)
	require.Equal(t, Buy, down[1].Side)

	up := Crossings(prices, dec("110"), dec("130"))
	require.Len(t, up, 2)
	require.Equal(t, 2, up[0].Level)
	require.Equal(t, 3, up[1].Level)
	require.Equal(t, Sell, up[0].Side)

	require.Empty(t, Crossings(prices, dec("115"), dec("115")))
	require.Empty(t, Crossings(prices, dec("111"), dec("119")))
}

func testConfig(t *testing.T) Config {
	t.Helper()
	p, err := ParseParams("60000", "62000", "3", "0.5")
	require.NoError(t, err)
	return Config{
		ID:           "cfg-1",
		ExchangeName: "Bybit",
		MarketSymbol: "BTCUSDT",
		Params:       p,
		Leverage:     10,
		Isolated:     true,
		CreatedAt:    time.Date(2026, 5, 29, 12, 0, 0, 0, time.UTC),
	}
}

func TestExportYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, testConfig(t), FormatYAML))

	var doc document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, "Bybit", doc.Exchange)
	require.Equal(t, "1000", doc.Grid.Step)
	require.Equal(t, "isolated", doc.Risk.MarginMode)
	require.Equal(t, "9150", doc.Risk.RequiredMargin)
	require.Len(t, doc.Orders, 3)
	require.Equal(t, "2026-05-29T12:00:00Z", doc.CreatedAt)
}

func TestExportTOMLAndJSON(t *testing.T) {
	var tb bytes.Buffer
	require.NoError(t, Export(&tb, testConfig(t), FormatTOML))
	var tdoc document
	_, err := toml.Decode(tb.String(), &tdoc)
	require.NoError(t, err)
	require.Equal(t, 10, tdoc.Risk.Leverage)

	var jb bytes.Buffer
	require.NoError(t, Export(&jb, testConfig(t), FormatJSON))
	var jdoc document
	require.NoError(t, json.Unmarshal(jb.Bytes(), &jdoc))
	require.Equal(t, "BTCUSDT", jdoc.Market)

	require.Error(t, Export(&jb, testConfig(t), Format("xml")))
}

func TestFormatForPath(t *testing.T) {
	require.Equal(t, FormatTOML, FormatForPath("a/b.TOML"))
	require.Equal(t, FormatJSON, FormatForPath("x.json"))
	require.Equal(t, FormatYAML, FormatForPath("x.yml"))
	require.Equal(t, FormatYAML, FormatForPath(strings.TrimSpace(" noext ")))
}
