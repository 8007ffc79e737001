package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
)

// HeuristicProvider is an offline assistant. It pulls grid parameters out of
// free text with simple patterns so the app works without an API key.
type HeuristicProvider struct{}

func NewHeuristicProvider() *HeuristicProvider { return &HeuristicProvider{} }

var (
	reRange    = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*(?:-|–|to)\s*(\d[\d,]*(?:\.\d+)?)`)
	reBetween  = regexp.MustCompile(`between\s+(\d[\d,]*(?:\.\d+)?)\s+and\s+(\d[\d,]*(?:\.\d+)?)`)
	reLevels   = regexp.MustCompile(`(\d+)\s*(?:grids?|levels?)\b`)
	reVolume   = regexp.MustCompile(`(?:volume|size|qty|quantity|amount)\s*(?:of\s*)?(\d*\.?\d+)|(\d*\.?\d+)\s*(?:each|per\s+(?:level|grid|order))\b`)
	reLeverage = regexp.MustCompile(`(\d+)\s*x\b|leverage\s*(?:of\s*)?(\d+)`)
	rePercent  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
)

// maxNameDistance caps how many edits a typed exchange or market name may be
// off by. Shorter words get a tighter limit, see allowedDistance.
const maxNameDistance = 2

func (h *HeuristicProvider) Reply(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return ChatResponse{}, err
	}

	text := strings.ToLower(strings.TrimSpace(req.Message))
	var s GridSuggestion

	m := reBetween.FindStringSubmatch(text)
	if m == nil {
		m = reRange.FindStringSubmatch(text)
	}
	if m != nil {
		lo, errLo := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		hi, errHi := decimal.NewFromString(strings.ReplaceAll(m[2], ",", ""))
		if errLo == nil && errHi == nil && !lo.Equal(hi) {
			if lo.GreaterThan(hi) {
				lo, hi = hi, lo
			}
			s.LowerPrice, s.UpperPrice = lo.String(), hi.String()
		}
	}
	if s.LowerPrice == "" {
		if m := rePercent.FindStringSubmatch(text); m != nil {
			s.LowerPrice, s.UpperPrice = percentBand(req.Context.RefPrice, m[1])
		}
	}
	if m := reLevels.FindStringSubmatch(text); m != nil {
		s.GridLevels, _ = strconv.Atoi(m[1])
	}
	if m := reVolume.FindStringSubmatch(text); m != nil {
		s.OrderVolume = m[1]
		if s.OrderVolume == "" {
			s.OrderVolume = m[2]
		}
	}
	if m := reLeverage.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		s.Leverage, _ = strconv.Atoi(raw)
		if req.Context.MaxLeverage > 0 && s.Leverage > req.Context.MaxLeverage {
			s.Leverage = req.Context.MaxLeverage
		}
	}
	words := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	})
	s.Exchange = matchName(words, req.Context.Exchanges)
	s.Market = matchMarket(words, req.Context.Markets)

	if s.Empty() {
		return ChatResponse{Text: helpText(req.Context)}, nil
	}
	return ChatResponse{Text: describe(s), Suggestion: &s}, nil
}

func percentBand(ref, pct string) (string, string) {
	price, err := decimal.NewFromString(ref)
	if err != nil || !price.IsPositive() {
		return "", ""
	}
	p, err := decimal.NewFromString(pct)
	if err != nil || !p.IsPositive() || p.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return "", ""
	}
	frac := p.Div(decimal.NewFromInt(100))
	one := decimal.NewFromInt(1)
	lo := price.Mul(one.Sub(frac)).Round(2)
	hi := price.Mul(one.Add(frac)).Round(2)
	return lo.String(), hi.String()
}

// matchName returns the candidate whose first word is closest to any typed
// word. Only alphabetic words of three or more letters take part, so numbers
// and leverage tokens like "10x" never pick an exchange.
func matchName(words, candidates []string) string {
	best, bestDist := "", maxNameDistance+1
	for _, c := range candidates {
		fields := strings.Fields(c)
		if len(fields) == 0 {
			continue
		}
		key := strings.ToLower(fields[0])
		for _, w := range words {
			if !isNameWord(w) {
				continue
			}
			d := levenshtein.ComputeDistance(w, key)
			if d <= allowedDistance(w) && d < bestDist {
				best, bestDist = c, d
			}
		}
	}
	return best
}

func isNameWord(w string) bool {
	if len(w) < 3 {
		return false
	}
	for _, r := range w {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// allowedDistance is one edit per three letters, capped at maxNameDistance.
func allowedDistance(w string) int {
	d := len(w) / 3
	if d > maxNameDistance {
		d = maxNameDistance
	}
	return d
}

// matchMarket prefers an exact base-asset prefix ("btc" -> "BTCUSDT") and
// falls back to edit distance on the whole symbol.
func matchMarket(words, symbols []string) string {
	for _, w := range words {
		if !isNameWord(w) {
			continue
		}
		for _, sym := range symbols {
			if strings.HasPrefix(strings.ToLower(sym), w) {
				return sym
			}
		}
	}
	return matchName(words, symbols)
}

func describe(s GridSuggestion) string {
	var parts []string
	if s.LowerPrice != "" {
		parts = append(parts, fmt.Sprintf("range %s-%s", s.LowerPrice, s.UpperPrice))
	}
	if s.GridLevels > 0 {
		parts = append(parts, fmt.Sprintf("%d levels", s.GridLevels))
	}
	if s.OrderVolume != "" {
		parts = append(parts, "volume "+s.OrderVolume)
	}
	if s.Leverage > 0 {
		parts = append(parts, fmt.Sprintf("%dx leverage", s.Leverage))
	}
	if s.Exchange != "" {
		parts = append(parts, "on "+s.Exchange)
	}
	if s.Market != "" {
		parts = append(parts, s.Market)
	}
	return "Suggested grid: " + strings.Join(parts, ", ") + ". Check the Strategy tab, then generate the config."
}

func helpText(c StrategyContext) string {
	msg := `Describe a grid, e.g. "60000 to 64000, 10 levels, volume 0.01, 5x".`
	if c.RefPrice != "" && c.Market != "" {
		msg += fmt.Sprintf(" %s is near %s; \"3%%\" builds a band around it.", c.Market, c.RefPrice)
	}
	return msg
}
