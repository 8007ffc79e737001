package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	openAITimeout        = 20 * time.Second
)

var ErrNoAPIKey = fmt.Errorf("openai: api key not configured")

const systemPrompt = `You are a derivatives grid-trading assistant inside a terminal app.
Reply with ONLY a JSON object with keys:
  reply (string, short answer for the user),
  suggestion (object or null) with optional keys lower_price (string), upper_price (string),
  grid_levels (int), order_volume (string), leverage (int), exchange (string), market (string).
Only suggest exchanges and markets listed in the context. Never exceed max_leverage.`

// OpenAIProvider calls the chat completions endpoint over HTTP.
type OpenAIProvider struct {
	apiKey string
	model  string
	client *resty.Client
}

func NewOpenAIProvider(apiKey, model, baseURL string) *OpenAIProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOpenAIBaseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(openAITimeout).
		SetRetryCount(1).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &OpenAIProvider{apiKey: strings.TrimSpace(apiKey), model: strings.TrimSpace(model), client: client}
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model          string              `json:"model"`
	Messages       []completionMessage `json:"messages"`
	MaxTokens      int                 `json:"max_tokens"`
	ResponseFormat map[string]string   `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *OpenAIProvider) Reply(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if p.apiKey == "" {
		return ChatResponse{}, ErrNoAPIKey
	}
	ctx, cancel := context.WithTimeout(ctx, openAITimeout)
	defer cancel()

	model := p.model
	if model == "" {
		model = defaultOpenAIModel
	}
	payload, err := json.Marshal(req.Context)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("openai: encode context: %w", err)
	}
	msgs := []completionMessage{{Role: "system", Content: systemPrompt + "\nContext JSON:\n" + string(payload)}}
	for _, t := range req.History {
		msgs = append(msgs, completionMessage{Role: t.Role, Content: t.Text})
	}
	msgs = append(msgs, completionMessage{Role: "user", Content: req.Message})

	var out completionResponse
	var failure apiError
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.apiKey).
		SetBody(completionRequest{
			Model:          model,
			Messages:       msgs,
			MaxTokens:      400,
			ResponseFormat: map[string]string{"type": "json_object"},
		}).
		SetResult(&out).
		SetError(&failure).
		Post("/chat/completions")
	if err != nil {
		return ChatResponse{}, fmt.Errorf("openai: request: %w", err)
	}
	if resp.IsError() {
		msg := strings.TrimSpace(failure.Error.Message)
		if msg == "" {
			msg = resp.Status()
		}
		return ChatResponse{}, fmt.Errorf("openai: status %d: %s", resp.StatusCode(), msg)
	}
	if len(out.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("openai: empty response")
	}

	var chat ChatResponse
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if err := decodeJSON(content, &chat); err != nil {
		// plain prose is still a usable reply
		return ChatResponse{Text: content}, nil
	}
	if chat.Suggestion != nil && chat.Suggestion.Empty() {
		chat.Suggestion = nil
	}
	if chat.Suggestion != nil && req.Context.MaxLeverage > 0 && chat.Suggestion.Leverage > req.Context.MaxLeverage {
		chat.Suggestion.Leverage = req.Context.MaxLeverage
	}
	return chat, nil
}
