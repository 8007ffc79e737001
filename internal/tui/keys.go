package tui

import (
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	scopeChat     = "tab:chat"
	scopeStrategy = "tab:strategy"
	scopeRisk     = "tab:risk"
)

const (
	actionQuit       = "quit"
	actionNextTab    = "next-tab"
	actionPrevTab    = "prev-tab"
	actionTab1       = "switch-tab-1"
	actionTab2       = "switch-tab-2"
	actionTab3       = "switch-tab-3"
	actionSend       = "send"
	actionClearChat  = "clear-chat"
	actionUp         = "up"
	actionDown       = "down"
	actionLeft       = "left"
	actionRight      = "right"
	actionToggle     = "toggle"
	actionActivate   = "activate"
	actionGenerate   = "generate"
	actionToggleBot  = "toggle-bot"
	actionBigStepUp  = "step-up-10"
	actionBigStepDn  = "step-down-10"
	actionNextField  = "next-field"
	actionPrevField  = "prev-field"
	actionLeverageUp = "leverage-up"
	actionLeverageDn = "leverage-down"
)

type KeyBinding struct {
	Keys        []string
	Action      string
	Description string
	Scopes      []string
	// Hidden bindings work but stay out of the footer.
	Hidden bool
}

type KeyRegistry struct {
	bindings []KeyBinding
}

func NewKeyRegistry(bindings []KeyBinding) *KeyRegistry {
	return &KeyRegistry{bindings: slices.Clone(bindings)}
}

func (r *KeyRegistry) BindingsForScope(scope string) []KeyBinding {
	out := make([]KeyBinding, 0, len(r.bindings))
	for _, b := range r.bindings {
		if scopeMatch(scope, b.Scopes) {
			out = append(out, b)
		}
	}
	return out
}

// Action returns the first action bound to msg in scope.
func (r *KeyRegistry) Action(msg tea.KeyMsg, scope string) string {
	pressed := normalizeKey(msg.String())
	for _, b := range r.bindings {
		if !scopeMatch(scope, b.Scopes) {
			continue
		}
		for _, k := range b.Keys {
			if normalizeKey(k) == pressed {
				return b.Action
			}
		}
	}
	return ""
}

func normalizeKey(k string) string {
	if k == " " {
		return "space"
	}
	return strings.ToLower(strings.TrimSpace(k))
}

func scopeMatch(scope string, scopes []string) bool {
	if len(scopes) == 0 {
		return true
	}
	for _, s := range scopes {
		if s == "*" || s == scope {
			return true
		}
	}
	return false
}

// DefaultKeyBindings are matched in order, so scope specific bindings come
// before the global ones.
func DefaultKeyBindings() []KeyBinding {
	return []KeyBinding{
		{Keys: []string{"enter"}, Action: actionSend, Description: "send", Scopes: []string{scopeChat}},
		{Keys: []string{"ctrl+l"}, Action: actionClearChat, Description: "clear chat", Scopes: []string{scopeChat}},

		{Keys: []string{"up"}, Action: actionPrevField, Description: "field up", Scopes: []string{scopeStrategy}},
		{Keys: []string{"down"}, Action: actionNextField, Description: "field down", Scopes: []string{scopeStrategy}},
		{Keys: []string{"enter"}, Action: actionActivate, Description: "next/generate", Scopes: []string{scopeStrategy}},
		{Keys: []string{"ctrl+g"}, Action: actionGenerate, Description: "generate config", Scopes: []string{scopeStrategy}},

		{Keys: []string{"up", "k"}, Action: actionUp, Description: "row up", Scopes: []string{scopeRisk}, Hidden: true},
		{Keys: []string{"down", "j"}, Action: actionDown, Description: "row down", Scopes: []string{scopeRisk}, Hidden: true},
		{Keys: []string{"left", "h"}, Action: actionLeft, Description: "prev/less", Scopes: []string{scopeRisk}},
		{Keys: []string{"right", "l"}, Action: actionRight, Description: "next/more", Scopes: []string{scopeRisk}},
		{Keys: []string{"shift+right", "pgup"}, Action: actionBigStepUp, Description: "+10x", Scopes: []string{scopeRisk}, Hidden: true},
		{Keys: []string{"shift+left", "pgdown"}, Action: actionBigStepDn, Description: "-10x", Scopes: []string{scopeRisk}, Hidden: true},
		{Keys: []string{"+", "="}, Action: actionLeverageUp, Description: "leverage +", Scopes: []string{scopeRisk}, Hidden: true},
		{Keys: []string{"-"}, Action: actionLeverageDn, Description: "leverage -", Scopes: []string{scopeRisk}, Hidden: true},
		{Keys: []string{"space"}, Action: actionToggle, Description: "toggle", Scopes: []string{scopeRisk}},
		{Keys: []string{"enter"}, Action: actionActivate, Description: "activate", Scopes: []string{scopeRisk}},
		{Keys: []string{"s"}, Action: actionToggleBot, Description: "start/stop bot", Scopes: []string{scopeRisk}},
		{Keys: []string{"1"}, Action: actionTab1, Description: "chat", Scopes: []string{scopeRisk}, Hidden: true},
		{Keys: []string{"2"}, Action: actionTab2, Description: "strategy", Scopes: []string{scopeRisk}, Hidden: true},
		{Keys: []string{"3"}, Action: actionTab3, Description: "risk", Scopes: []string{scopeRisk}, Hidden: true},
		{Keys: []string{"q"}, Action: actionQuit, Description: "quit", Scopes: []string{scopeRisk}, Hidden: true},

		{Keys: []string{"tab"}, Action: actionNextTab, Description: "next tab", Scopes: []string{"*"}},
		{Keys: []string{"shift+tab"}, Action: actionPrevTab, Description: "prev tab", Scopes: []string{"*"}, Hidden: true},
		{Keys: []string{"f1", "alt+1"}, Action: actionTab1, Description: "chat", Scopes: []string{"*"}, Hidden: true},
		{Keys: []string{"f2", "alt+2"}, Action: actionTab2, Description: "strategy", Scopes: []string{"*"}, Hidden: true},
		{Keys: []string{"f3", "alt+3"}, Action: actionTab3, Description: "risk", Scopes: []string{"*"}, Hidden: true},
		{Keys: []string{"ctrl+c"}, Action: actionQuit, Description: "quit", Scopes: []string{"*"}},
	}
}
