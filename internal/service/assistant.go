package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jask/derivbot/internal/database/repository"
	"github.com/jask/derivbot/internal/llm"
)

const defaultHistoryWindow = 20

const apologyText = "Sorry, I couldn't reach the strategy assistant. Your message was saved; try again in a moment."

// AssistantService runs a chat turn against the configured provider and
// keeps the conversation in the chat repository.
type AssistantService struct {
	Chat     *repository.ChatRepo
	Provider llm.Provider
	Log      logrus.FieldLogger

	// HistoryWindow is how many prior messages are sent with each turn.
	HistoryWindow int
	UserName      string
	BotName       string
}

// ChatResult holds both sides of a turn.
type ChatResult struct {
	User       repository.ChatMessage
	Reply      repository.ChatMessage
	Suggestion *llm.GridSuggestion
}

// History returns up to limit messages, oldest first.
func (s *AssistantService) History(ctx context.Context, limit int) ([]repository.ChatMessage, error) {
	msgs, err := s.Chat.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	return msgs, nil
}

// Send stores text as a user message and asks the provider for a reply.
// A provider failure still stores and returns an apology reply alongside the
// error so the conversation stays consistent.
func (s *AssistantService) Send(ctx context.Context, text string, sc llm.StrategyContext) (ChatResult, error) {
	window := s.HistoryWindow
	if window <= 0 {
		window = defaultHistoryWindow
	}
	prior, err := s.Chat.Recent(ctx, window)
	if err != nil {
		return ChatResult{}, fmt.Errorf("load chat history: %w", err)
	}

	user := repository.ChatMessage{
		ID:        uuid.NewString(),
		Role:      repository.RoleUser,
		Sender:    nameOr(s.UserName, "You"),
		Body:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Chat.Add(ctx, user); err != nil {
		return ChatResult{}, fmt.Errorf("save message: %w", err)
	}

	history := make([]llm.Turn, 0, len(prior))
	for _, m := range prior {
		history = append(history, llm.Turn{Role: m.Role, Text: m.Body})
	}
	resp, provErr := s.Provider.Reply(ctx, llm.ChatRequest{History: history, Message: text, Context: sc})

	body := strings.TrimSpace(resp.Text)
	if provErr != nil {
		s.log().WithError(provErr).Warn("assistant reply failed")
		body = apologyText
		resp.Suggestion = nil
	} else if body == "" {
		body = "…"
	}

	reply := repository.ChatMessage{
		ID:        uuid.NewString(),
		Role:      repository.RoleAssistant,
		Sender:    nameOr(s.BotName, "Bot"),
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Chat.Add(ctx, reply); err != nil {
		return ChatResult{User: user}, fmt.Errorf("save reply: %w", err)
	}

	res := ChatResult{User: user, Reply: reply}
	if resp.Suggestion != nil && !resp.Suggestion.Empty() {
		res.Suggestion = resp.Suggestion
	}
	if provErr != nil {
		return res, fmt.Errorf("assistant: %w", provErr)
	}
	return res, nil
}

// ClearHistory deletes every stored message.
func (s *AssistantService) ClearHistory(ctx context.Context) error {
	return s.Chat.Clear(ctx)
}

func (s *AssistantService) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

func nameOr(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}
