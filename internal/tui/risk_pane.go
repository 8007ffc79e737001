package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/derivbot/internal/grid"
	"github.com/jask/derivbot/internal/viewmodel"
)

const (
	rowExchange = iota
	rowMarket
	rowLeverage
	rowIsolated
	rowBot
	rowCount
)

const maxFillRows = 8

type riskPane struct {
	row int
}

func (p *riskPane) update(m *ScreenView, msg tea.KeyMsg, s viewmodel.State) tea.Cmd {
	switch m.keys.Action(msg, scopeRisk) {
	case actionUp:
		p.row = (p.row - 1 + rowCount) % rowCount
	case actionDown:
		p.row = (p.row + 1) % rowCount
	case actionLeft:
		p.step(m, s, -1)
	case actionRight:
		p.step(m, s, 1)
	case actionBigStepUp:
		m.vm.SetLeverage(clampLeverage(s.Leverage+10, s.MaxLeverage))
	case actionBigStepDn:
		m.vm.SetLeverage(clampLeverage(s.Leverage-10, s.MaxLeverage))
	case actionLeverageUp:
		m.vm.SetLeverage(clampLeverage(s.Leverage+1, s.MaxLeverage))
	case actionLeverageDn:
		m.vm.SetLeverage(clampLeverage(s.Leverage-1, s.MaxLeverage))
	case actionToggle:
		if p.row == rowBot {
			return m.run("toggle-bot", m.vm.ToggleDerivativesBot)
		}
		m.vm.SetIsolated(!s.Isolated)
	case actionActivate:
		switch p.row {
		case rowBot:
			return m.run("toggle-bot", m.vm.ToggleDerivativesBot)
		case rowIsolated:
			m.vm.SetIsolated(!s.Isolated)
		default:
			p.row++
		}
	case actionToggleBot:
		return m.run("toggle-bot", m.vm.ToggleDerivativesBot)
	}
	return nil
}

// step cycles the picker or steps leverage on the focused row.
func (p *riskPane) step(m *ScreenView, s viewmodel.State, delta int) {
	switch p.row {
	case rowExchange:
		if len(s.Exchanges) == 0 {
			return
		}
		i := indexOf(len(s.Exchanges), func(i int) bool { return s.Exchanges[i].ID == s.SelectedExchangeID })
		m.vm.SelectExchange(s.Exchanges[wrap(i+delta, len(s.Exchanges))].ID)
	case rowMarket:
		if len(s.Markets) == 0 {
			return
		}
		i := indexOf(len(s.Markets), func(i int) bool { return s.Markets[i].ID == s.SelectedMarketID })
		m.vm.SelectMarket(s.Markets[wrap(i+delta, len(s.Markets))].ID)
	case rowLeverage:
		m.vm.SetLeverage(clampLeverage(s.Leverage+delta, s.MaxLeverage))
	case rowIsolated:
		m.vm.SetIsolated(!s.Isolated)
	}
}

func (p *riskPane) view(s viewmodel.State, width int) string {
	var b strings.Builder
	row := func(idx int, label, value string) {
		marker := "  "
		ls := labelStyle
		if p.row == idx {
			marker = focusStyle.Render("▸ ")
			ls = focusStyle
		}
		b.WriteString(marker + ls.Width(16).Render(label) + " " + value + "\n")
	}

	b.WriteString(sectionStyle.Render("Exchange & Market") + "\n\n")
	exName := "-"
	if ex, ok := s.SelectedExchange(); ok {
		exName = ex.Name
	}
	row(rowExchange, "Exchange", picker(exName))
	mkName := "-"
	if mk, ok := s.SelectedMarket(); ok {
		mkName = mk.Symbol
	}
	row(rowMarket, "Market", picker(mkName))

	var symbols []string
	for _, mk := range s.Markets {
		if mk.ID == s.SelectedMarketID {
			symbols = append(symbols, valueStyle.Bold(true).Render(mk.Symbol))
		} else {
			symbols = append(symbols, mutedStyle.Render(mk.Symbol))
		}
	}
	b.WriteString("    " + mutedStyle.Render("Markets: ") + strings.Join(symbols, mutedStyle.Render(" · ")) + "\n\n")

	b.WriteString(sectionStyle.Render("Risk Management") + "\n\n")
	row(rowLeverage, fmt.Sprintf("Leverage: %dx", clampLeverage(s.Leverage, s.MaxLeverage)),
		mutedStyle.Render(fmt.Sprintf("[−] 1…%dx [+]", max(1, s.MaxLeverage))))
	check := "[ ]"
	if s.Isolated {
		check = "[x]"
	}
	row(rowIsolated, "Isolated Margin", valueStyle.Render(check))
	b.WriteString("\n")

	marker := "  "
	if p.row == rowBot {
		marker = focusStyle.Render("▸ ")
	}
	b.WriteString(marker + botButton(s.Running) + "\n")

	if len(s.Fills) > 0 {
		b.WriteString("\n" + sectionStyle.Render("Recent Fills") + "\n")
		for i, f := range s.Fills {
			if i == maxFillRows {
				break
			}
			side := buyStyle.Render("BUY ")
			if f.Side == grid.Sell {
				side = sellStyle.Render("SELL")
			}
			fmt.Fprintf(&b, "  %s %s  L%-3d %s @ %s\n",
				mutedStyle.Render(f.Time.Local().Format("15:04:05")), side, f.Level, f.Volume, f.Price)
		}
	}
	return paneStyle.Width(max(20, width)).Render(strings.TrimRight(b.String(), "\n"))
}

// botButton derives its label and color from the running flag alone.
func botButton(running bool) string {
	if running {
		return stopButtonStyle.Render("Stop Bot")
	}
	return startButtonStyle.Render("Start Bot")
}

func picker(v string) string {
	return mutedStyle.Render("‹ ") + valueStyle.Render(v) + mutedStyle.Render(" ›")
}

func clampLeverage(n, maxLev int) int {
	maxLev = max(1, maxLev)
	return min(max(n, 1), maxLev)
}

func indexOf(n int, match func(int) bool) int {
	for i := range n {
		if match(i) {
			return i
		}
	}
	return 0
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}
