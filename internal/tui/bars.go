package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jask/derivbot/internal/viewmodel"
)

const appTitle = "Derivatives Bot"

func renderHeader(active viewmodel.Tab, width int) string {
	bg := colorMantle
	parts := []string{titleStyle.Background(bg).Padding(0, 1).Render(appTitle)}
	sep := tabSepStyle.Render("│")
	for i, t := range viewmodel.AllTabs() {
		label := fmt.Sprintf("%d %s", i+1, t)
		if t == active {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, inactiveTabStyle.Render(label))
		}
	}
	return renderBar(headerStyle, max(1, width), strings.Join(parts, sep), bg)
}

func renderFooter(keys *KeyRegistry, scope string, width int) string {
	bg := colorMantle
	space := lipgloss.NewStyle().Background(bg).Render(" ")
	sep := lipgloss.NewStyle().Background(bg).Render("  ")

	var parts []string
	for _, b := range keys.BindingsForScope(scope) {
		if b.Hidden || len(b.Keys) == 0 {
			continue
		}
		kb := key.NewBinding(key.WithKeys(b.Keys...), key.WithHelp(b.Keys[0], b.Description))
		h := kb.Help()
		parts = append(parts, keyStyle.Render(h.Key)+space+helpDescStyle.Render(h.Desc))
	}
	line := strings.Join(parts, sep)
	if line == "" {
		line = helpDescStyle.Render("No shortcuts")
	}
	return renderBar(footerStyle, max(1, width), line, bg)
}

func renderStatusBar(s viewmodel.State, width int) string {
	switch {
	case s.Err != nil:
		return renderBar(statusErrBarStyle, max(1, width), "Error: "+s.Err.Error(), colorSurface0)
	case s.Busy:
		msg := strings.TrimSpace(s.Status)
		if msg == "" {
			msg = "Working…"
		}
		return renderBar(statusBusyStyle, max(1, width), msg, colorSurface0)
	default:
		msg := strings.TrimSpace(s.Status)
		if msg == "" {
			msg = "Ready"
		}
		return renderBar(statusBarStyle, max(1, width), msg, colorSurface0)
	}
}

func renderBar(style lipgloss.Style, width int, text string, bg lipgloss.TerminalColor) string {
	line := strings.ReplaceAll(text, "\n", " ")
	line = ansi.Truncate(line, width, "")
	if w := ansi.StringWidth(line); w < width {
		line += strings.Repeat(" ", width-w)
	}
	return style.
		Background(bg).
		Width(width).
		MaxWidth(width).
		Render(line)
}

func clipHeight(s string, height int) string {
	if height <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}
