package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jask/derivbot/internal/viewmodel"
)

// renderMessageRow draws one chat line: the sender in bold, then the text
// wrapped under it.
func renderMessageRow(msg viewmodel.Message, width int) string {
	name := senderStyle
	if msg.FromMe {
		name = senderMeStyle
	}
	text := lipgloss.NewStyle().Foreground(colorText).Width(max(10, width-2)).Render(msg.Text)
	return name.Render(msg.Sender) + "\n" + indent(text, "  ")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
