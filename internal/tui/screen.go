// Package tui renders the derivatives bot screen with bubbletea. All state
// lives in the view model; the screen only keeps text input buffers and
// focus.
package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/derivbot/internal/viewmodel"
)

// ViewModel is what the screen needs from the view model.
type ViewModel interface {
	Subscribe() (<-chan struct{}, func())
	Snapshot() viewmodel.State

	SetTab(viewmodel.Tab)
	SetLowerPrice(string)
	SetUpperPrice(string)
	SetGridLevels(string)
	SetOrderVolume(string)
	SelectExchange(id string)
	SelectMarket(id string)
	SetLeverage(int)
	SetIsolated(bool)

	SendChatMessage(ctx context.Context, text string) error
	ClearChat(ctx context.Context) error
	GenerateDerivativesConfig(ctx context.Context) error
	ToggleDerivativesBot(ctx context.Context) error
}

type changedMsg struct{}

// opDoneMsg reports a finished view model operation. Failures are already
// part of the view model state.
type opDoneMsg struct {
	op  string
	err error
}

// ScreenView is the root tea.Model.
type ScreenView struct {
	ctx    context.Context
	vm     ViewModel
	keys   *KeyRegistry
	notify <-chan struct{}
	cancel func()

	width  int
	height int

	chat     chatPane
	strategy strategyPane
	risk     riskPane
}

func NewScreenView(ctx context.Context, vm ViewModel) *ScreenView {
	notify, cancel := vm.Subscribe()
	m := &ScreenView{
		ctx:      ctx,
		vm:       vm,
		keys:     NewKeyRegistry(DefaultKeyBindings()),
		notify:   notify,
		cancel:   cancel,
		width:    100,
		height:   30,
		chat:     newChatPane(),
		strategy: newStrategyPane(),
	}
	m.syncInputs(vm.Snapshot())
	m.focusTab(vm.Snapshot().Tab)
	return m
}

func (m *ScreenView) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), m.chat.input.Focus())
}

func (m *ScreenView) waitForChange() tea.Cmd {
	ch := m.notify
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// run wraps a blocking view model call as a command.
func (m *ScreenView) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m *ScreenView) scope(tab viewmodel.Tab) string {
	switch tab {
	case viewmodel.TabStrategy:
		return scopeStrategy
	case viewmodel.TabRisk:
		return scopeRisk
	default:
		return scopeChat
	}
}

func (m *ScreenView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.chat.input.Width = max(10, msg.Width-14)
		return m, nil
	case changedMsg:
		s := m.vm.Snapshot()
		m.syncInputs(s)
		return m, m.waitForChange()
	case opDoneMsg:
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *ScreenView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.vm.Snapshot()
	scope := m.scope(s.Tab)

	switch m.keys.Action(msg, scope) {
	case actionQuit:
		m.cancel()
		return m, tea.Quit
	case actionNextTab:
		return m, m.switchTab(cycleTab(s.Tab, 1))
	case actionPrevTab:
		return m, m.switchTab(cycleTab(s.Tab, -1))
	case actionTab1:
		return m, m.switchTab(viewmodel.TabChat)
	case actionTab2:
		return m, m.switchTab(viewmodel.TabStrategy)
	case actionTab3:
		return m, m.switchTab(viewmodel.TabRisk)
	}

	switch s.Tab {
	case viewmodel.TabChat:
		return m, m.chat.update(m, msg)
	case viewmodel.TabStrategy:
		return m, m.strategy.update(m, msg)
	case viewmodel.TabRisk:
		return m, m.risk.update(m, msg, s)
	}
	return m, nil
}

func (m *ScreenView) switchTab(t viewmodel.Tab) tea.Cmd {
	m.vm.SetTab(t)
	return m.focusTab(t)
}

func (m *ScreenView) focusTab(t viewmodel.Tab) tea.Cmd {
	m.chat.input.Blur()
	m.strategy.blurAll()
	switch t {
	case viewmodel.TabChat:
		return m.chat.input.Focus()
	case viewmodel.TabStrategy:
		return m.strategy.focusCurrent()
	}
	return nil
}

func cycleTab(t viewmodel.Tab, delta int) viewmodel.Tab {
	tabs := viewmodel.AllTabs()
	idx := 0
	for i, x := range tabs {
		if x == t {
			idx = i
		}
	}
	idx = (idx + delta + len(tabs)) % len(tabs)
	return tabs[idx]
}

// syncInputs copies view model values into the text inputs that differ,
// so assistant suggestions show up in the strategy fields.
func (m *ScreenView) syncInputs(s viewmodel.State) {
	m.strategy.sync(s)
}

func (m *ScreenView) View() string {
	s := m.vm.Snapshot()
	header := renderHeader(s.Tab, m.width)
	status := renderStatusBar(s, m.width)
	footer := renderFooter(m.keys, m.scope(s.Tab), m.width)

	bodyHeight := max(1, m.height-lipgloss.Height(header)-2)
	var body string
	switch s.Tab {
	case viewmodel.TabChat:
		body = m.chat.view(s, m.width, bodyHeight)
	case viewmodel.TabStrategy:
		body = m.strategy.view(s, m.width)
	case viewmodel.TabRisk:
		body = m.risk.view(s, m.width)
	}
	body = clipHeight(body, bodyHeight)
	if pad := bodyHeight - lipgloss.Height(body); pad > 0 {
		body += strings.Repeat("\n", pad)
	}
	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, body, status, footer))
}
