package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/derivbot/internal/viewmodel"
)

const chatPlaceholder = "Enter your strategy..."

type chatPane struct {
	input textinput.Model
}

func newChatPane() chatPane {
	in := textinput.New()
	in.Placeholder = chatPlaceholder
	in.Prompt = "› "
	in.PromptStyle = focusStyle
	in.CharLimit = 2000
	in.Width = 60
	return chatPane{input: in}
}

func (p *chatPane) update(m *ScreenView, msg tea.KeyMsg) tea.Cmd {
	switch m.keys.Action(msg, scopeChat) {
	case actionSend:
		return p.submit(m)
	case actionClearChat:
		return m.run("clear-chat", m.vm.ClearChat)
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return cmd
}

// submit hands the buffer to the view model and clears it right away,
// whatever the send ends up doing.
func (p *chatPane) submit(m *ScreenView) tea.Cmd {
	text := p.input.Value()
	p.input.Reset()
	return m.run("send", func(ctx context.Context) error {
		return m.vm.SendChatMessage(ctx, text)
	})
}

func (p *chatPane) view(s viewmodel.State, width, height int) string {
	inner := max(20, width-4)

	inputLine := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(max(10, inner-10)).Render(p.input.View()),
		" ",
		buttonStyle.Render("Send"),
	)
	inputBox := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorFocus).
		Width(inner - 2).
		Render(inputLine)

	listHeight := max(1, height-lipgloss.Height(inputBox)-1)
	var rows []string
	for _, msg := range s.Messages {
		rows = append(rows, renderMessageRow(msg, inner))
	}
	list := strings.Join(rows, "\n")
	if len(rows) == 0 {
		list = mutedStyle.Render("No messages yet. Describe a grid, for example \"BTC 60000-68000, 9 levels, volume 0.01, 10x\".")
	}
	// Keep the newest messages in view.
	if lines := strings.Split(list, "\n"); len(lines) > listHeight {
		list = strings.Join(lines[len(lines)-listHeight:], "\n")
	}
	list = lipgloss.NewStyle().Height(listHeight).Render(list)

	return lipgloss.NewStyle().Padding(0, 2).Render(lipgloss.JoinVertical(lipgloss.Left, list, inputBox))
}
