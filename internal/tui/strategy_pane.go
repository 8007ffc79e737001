package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/derivbot/internal/viewmodel"
)

const (
	fieldLower = iota
	fieldUpper
	fieldLevels
	fieldVolume
	fieldGenerate
	fieldCount
)

var fieldLabels = [...]string{"Lower Price", "Upper Price", "Grid Levels", "Order Volume"}

type strategyPane struct {
	inputs [fieldGenerate]textinput.Model
	focus  int
}

func newStrategyPane() strategyPane {
	var p strategyPane
	placeholders := [...]string{"e.g. 60000", "e.g. 68000", "e.g. 10", "e.g. 0.01"}
	for i := range p.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = placeholders[i]
		in.CharLimit = 32
		in.Width = 24
		p.inputs[i] = in
	}
	return p
}

// fieldValue returns the field as the view model holds it.
func fieldValue(s viewmodel.State, i int) string {
	switch i {
	case fieldLower:
		return s.LowerPrice
	case fieldUpper:
		return s.UpperPrice
	case fieldLevels:
		return s.GridLevels
	case fieldVolume:
		return s.OrderVolume
	}
	return ""
}

func (p *strategyPane) push(m *ScreenView, i int) {
	v := p.inputs[i].Value()
	switch i {
	case fieldLower:
		m.vm.SetLowerPrice(v)
	case fieldUpper:
		m.vm.SetUpperPrice(v)
	case fieldLevels:
		m.vm.SetGridLevels(v)
	case fieldVolume:
		m.vm.SetOrderVolume(v)
	}
}

func (p *strategyPane) sync(s viewmodel.State) {
	for i := range p.inputs {
		if v := fieldValue(s, i); p.inputs[i].Value() != v {
			p.inputs[i].SetValue(v)
		}
	}
}

func (p *strategyPane) blurAll() {
	for i := range p.inputs {
		p.inputs[i].Blur()
	}
}

func (p *strategyPane) focusCurrent() tea.Cmd {
	p.blurAll()
	if p.focus < fieldGenerate {
		return p.inputs[p.focus].Focus()
	}
	return nil
}

func (p *strategyPane) move(delta int) tea.Cmd {
	p.focus = (p.focus + delta + fieldCount) % fieldCount
	return p.focusCurrent()
}

func (p *strategyPane) update(m *ScreenView, msg tea.KeyMsg) tea.Cmd {
	switch m.keys.Action(msg, scopeStrategy) {
	case actionNextField:
		return p.move(1)
	case actionPrevField:
		return p.move(-1)
	case actionGenerate:
		return m.run("generate", m.vm.GenerateDerivativesConfig)
	case actionActivate:
		if p.focus == fieldGenerate {
			return m.run("generate", m.vm.GenerateDerivativesConfig)
		}
		return p.move(1)
	}
	if p.focus >= fieldGenerate {
		return nil
	}
	before := p.inputs[p.focus].Value()
	var cmd tea.Cmd
	p.inputs[p.focus], cmd = p.inputs[p.focus].Update(msg)
	if p.inputs[p.focus].Value() != before {
		p.push(m, p.focus)
	}
	return cmd
}

func (p *strategyPane) view(s viewmodel.State, width int) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Grid Settings"))
	b.WriteString("\n\n")
	for i, label := range fieldLabels {
		marker := "  "
		ls := labelStyle
		if p.focus == i {
			marker = focusStyle.Render("▸ ")
			ls = focusStyle
		}
		b.WriteString(marker + ls.Width(14).Render(label) + " " + p.inputs[i].View() + "\n")
	}
	b.WriteString("\n")

	btn := buttonStyle.Render("Generate Bot Config")
	if p.focus == fieldGenerate {
		btn = focusStyle.Render("▸ ") + buttonStyle.Background(colorFocus).Render("Generate Bot Config")
	} else {
		btn = "  " + btn
	}
	b.WriteString(btn + "\n")

	if cfg := s.LastConfig; cfg != nil {
		b.WriteString("\n" + sectionStyle.Render("Last Config") + "\n")
		rows := [][2]string{
			{"Market", cfg.ExchangeName + " " + cfg.MarketSymbol},
			{"Range", cfg.Params.Lower.String() + " – " + cfg.Params.Upper.String()},
			{"Levels", fmt.Sprintf("%d (step %s)", cfg.Params.GridLevels, cfg.Params.Step())},
			{"Volume", cfg.Params.OrderVolume.String()},
			{"Leverage", fmt.Sprintf("%dx %s", cfg.Leverage, cfg.MarginMode())},
			{"Margin", cfg.RequiredMargin().StringFixed(2)},
		}
		if s.ExportPath != "" {
			rows = append(rows, [2]string{"Exported", s.ExportPath})
		}
		for _, r := range rows {
			b.WriteString("  " + labelStyle.Width(10).Render(r[0]) + " " + valueStyle.Render(r[1]) + "\n")
		}
	}
	return paneStyle.Width(max(20, width)).Render(strings.TrimRight(b.String(), "\n"))
}
