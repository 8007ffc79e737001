// Package grid turns free-text strategy fields into a validated arithmetic
// price grid and tracks which grid levels a price move crosses.
package grid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinLevels = 2
	MaxLevels = 500

	// price precision used when spacing levels
	stepPlaces = 8
)

var (
	ErrEmptyField       = errors.New("value is required")
	ErrNotNumber        = errors.New("not a number")
	ErrNotPositive      = errors.New("must be greater than zero")
	ErrInvalidRange     = errors.New("lower price must be below upper price")
	ErrLevelsOutOfRange = fmt.Errorf("grid levels must be between %d and %d", MinLevels, MaxLevels)
	ErrLeverage         = errors.New("leverage out of range")
)

// FieldError names the strategy field a parse error belongs to.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *FieldError) Unwrap() error { return e.Err }

// Params is the parsed Grid Settings section.
type Params struct {
	Lower       decimal.Decimal
	Upper       decimal.Decimal
	GridLevels  int
	OrderVolume decimal.Decimal
}

// ParseParams parses the four text fields. Surrounding whitespace and
// thousands separators are tolerated.
func ParseParams(lower, upper, levels, volume string) (Params, error) {
	var p Params
	var err error
	if p.Lower, err = parseDecimal("lower price", lower); err != nil {
		return Params{}, err
	}
	if p.Upper, err = parseDecimal("upper price", upper); err != nil {
		return Params{}, err
	}
	if p.GridLevels, err = parseInt("grid levels", levels); err != nil {
		return Params{}, err
	}
	if p.OrderVolume, err = parseDecimal("order volume", volume); err != nil {
		return Params{}, err
	}
	return p, p.Validate()
}

func (p Params) Validate() error {
	if !p.Lower.IsPositive() {
		return &FieldError{Field: "lower price", Err: ErrNotPositive}
	}
	if !p.Upper.IsPositive() {
		return &FieldError{Field: "upper price", Err: ErrNotPositive}
	}
	if !p.OrderVolume.IsPositive() {
		return &FieldError{Field: "order volume", Err: ErrNotPositive}
	}
	if p.Lower.GreaterThanOrEqual(p.Upper) {
		return ErrInvalidRange
	}
	if p.GridLevels < MinLevels || p.GridLevels > MaxLevels {
		return &FieldError{Field: "grid levels", Err: ErrLevelsOutOfRange}
	}
	return nil
}

// Step is the spacing between adjacent levels.
func (p Params) Step() decimal.Decimal {
	return p.Upper.Sub(p.Lower).DivRound(decimal.NewFromInt(int64(p.GridLevels-1)), stepPlaces)
}

// Prices returns every level, ascending, with both bounds included exactly.
func (p Params) Prices() []decimal.Decimal {
	if p.GridLevels < MinLevels {
		return nil
	}
	step := p.Step()
	out := make([]decimal.Decimal, p.GridLevels)
	for i := range out {
		out[i] = p.Lower.Add(step.Mul(decimal.NewFromInt(int64(i))))
	}
	out[len(out)-1] = p.Upper
	return out
}

// Notional is the quote value of one order on every level.
func (p Params) Notional() decimal.Decimal {
	total := decimal.Zero
	for _, px := range p.Prices() {
		total = total.Add(px.Mul(p.OrderVolume))
	}
	return total
}

// Config is a generated bot configuration ready to run or export.
type Config struct {
	ID           string
	ExchangeID   string
	ExchangeName string
	MarketID     string
	MarketSymbol string
	MarketTitle  string
	Params       Params
	Leverage     int
	Isolated     bool
	CreatedAt    time.Time
}

// Validate checks the grid and that leverage lies in [1, maxLeverage].
func (c Config) Validate(maxLeverage int) error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if c.Leverage < 1 || c.Leverage > maxLeverage {
		return fmt.Errorf("%w: %dx not in 1..%dx", ErrLeverage, c.Leverage, maxLeverage)
	}
	return nil
}

// RequiredMargin is the collateral needed to place every level at once.
func (c Config) RequiredMargin() decimal.Decimal {
	if c.Leverage < 1 {
		return c.Params.Notional()
	}
	return c.Params.Notional().DivRound(decimal.NewFromInt(int64(c.Leverage)), stepPlaces)
}

// MarginMode renders the isolated flag.
func (c Config) MarginMode() string {
	if c.Isolated {
		return "isolated"
	}
	return "cross"
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	s := cleanNumber(raw)
	if s == "" {
		return decimal.Zero, &FieldError{Field: field, Err: ErrEmptyField}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &FieldError{Field: field, Err: ErrNotNumber}
	}
	return d, nil
}

func parseInt(field, raw string) (int, error) {
	s := cleanNumber(raw)
	if s == "" {
		return 0, &FieldError{Field: field, Err: ErrEmptyField}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &FieldError{Field: field, Err: ErrNotNumber}
	}
	return n, nil
}

func cleanNumber(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
}
