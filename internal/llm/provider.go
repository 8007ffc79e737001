package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Provider answers chat turns for the strategy assistant.
type Provider interface {
	Reply(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Turn is one prior message in the conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// StrategyContext describes what the user currently has selected so the
// assistant can ground its suggestion.
type StrategyContext struct {
	Exchange    string   `json:"exchange"`
	Market      string   `json:"market"`
	RefPrice    string   `json:"ref_price"`
	MaxLeverage int      `json:"max_leverage"`
	Exchanges   []string `json:"exchanges"`
	Markets     []string `json:"markets"`
}

type ChatRequest struct {
	History []Turn          `json:"history"`
	Message string          `json:"message"`
	Context StrategyContext `json:"context"`
}

// GridSuggestion carries the strategy fields the assistant proposes. Empty or
// zero fields were not proposed.
type GridSuggestion struct {
	LowerPrice  string `json:"lower_price,omitempty"`
	UpperPrice  string `json:"upper_price,omitempty"`
	GridLevels  int    `json:"grid_levels,omitempty"`
	OrderVolume string `json:"order_volume,omitempty"`
	Leverage    int    `json:"leverage,omitempty"`
	Exchange    string `json:"exchange,omitempty"`
	Market      string `json:"market,omitempty"`
}

// Empty reports whether nothing was proposed.
func (s GridSuggestion) Empty() bool {
	return s == GridSuggestion{}
}

type ChatResponse struct {
	Text       string          `json:"reply"`
	Suggestion *GridSuggestion `json:"suggestion"`
}

var errNoJSON = errors.New("no JSON object in model output")

// decodeJSON extracts the first JSON object from model output, tolerating
// code fences and surrounding prose.
func decodeJSON(text string, v any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return errNoJSON
	}
	return json.Unmarshal([]byte(text[start:end+1]), v)
}
