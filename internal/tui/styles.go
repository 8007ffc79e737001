package tui

import "github.com/charmbracelet/lipgloss"

var (
	appStyle = lipgloss.NewStyle().Foreground(colorText)

	titleStyle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	headerStyle = lipgloss.NewStyle().Background(colorMantle).Foreground(colorText)
	tabSepStyle = lipgloss.NewStyle().Foreground(colorBorder).Background(colorMantle)

	activeTabStyle = lipgloss.NewStyle().
			Background(colorSurface0).
			Foreground(colorAccent).
			Bold(true).
			Padding(0, 1)
	inactiveTabStyle = lipgloss.NewStyle().
				Background(colorMantle).
				Foreground(colorTabOff).
				Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().Foreground(colorMauve).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	valueStyle   = lipgloss.NewStyle().Foreground(colorText)
	focusStyle   = lipgloss.NewStyle().Foreground(colorFocus).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorOverlay1)

	senderStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	senderMeStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPeach)

	buttonStyle = lipgloss.NewStyle().
			Foreground(colorCrust).
			Background(colorBlue).
			Bold(true).
			Padding(0, 2)
	startButtonStyle = buttonStyle.Background(colorSuccess)
	stopButtonStyle  = buttonStyle.Background(colorError)

	buyStyle  = lipgloss.NewStyle().Foreground(colorSuccess)
	sellStyle = lipgloss.NewStyle().Foreground(colorError)

	statusBarStyle    = lipgloss.NewStyle().Foreground(colorSuccess).Background(colorSurface0)
	statusBusyStyle   = lipgloss.NewStyle().Foreground(colorWarning).Background(colorSurface0)
	statusErrBarStyle = lipgloss.NewStyle().Foreground(colorError).Background(colorSurface0)
	footerStyle       = lipgloss.NewStyle().Background(colorMantle)
	keyStyle          = lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Background(colorMantle)
	helpDescStyle     = lipgloss.NewStyle().Foreground(colorMuted).Background(colorMantle)

	paneStyle = lipgloss.NewStyle().Padding(1, 2)
)
