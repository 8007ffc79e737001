package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/derivbot/internal/viewmodel"
)

type fakeVM struct {
	state    viewmodel.State
	markets  map[string][]viewmodel.Market
	notify   chan struct{}
	sent     []string
	sendErr  error
	toggles  int
	generate int
	levers   []int
}

func newFakeVM() *fakeVM {
	vm := &fakeVM{
		notify: make(chan struct{}, 1),
		markets: map[string][]viewmodel.Market{
			"bin": {{ID: "bin-btc", Symbol: "BTCUSDT"}, {ID: "bin-eth", Symbol: "ETHUSDT"}},
			"der": {{ID: "der-btc", Symbol: "BTC-PERPETUAL"}},
		},
	}
	vm.state = viewmodel.State{
		Tab: viewmodel.TabChat,
		Exchanges: []viewmodel.Exchange{
			{ID: "bin", Name: "Binance Futures", MaxLeverage: 125},
			{ID: "der", Name: "Deribit", MaxLeverage: 50},
		},
		Leverage:    1,
		MaxLeverage: 125,
	}
	vm.SelectExchange("bin")
	return vm
}

func (f *fakeVM) Subscribe() (<-chan struct{}, func()) { return f.notify, func() {} }
func (f *fakeVM) Snapshot() viewmodel.State            { return f.state }
func (f *fakeVM) SetTab(t viewmodel.Tab)               { f.state.Tab = t }
func (f *fakeVM) SetLowerPrice(v string)               { f.state.LowerPrice = v }
func (f *fakeVM) SetUpperPrice(v string)               { f.state.UpperPrice = v }
func (f *fakeVM) SetGridLevels(v string)               { f.state.GridLevels = v }
func (f *fakeVM) SetOrderVolume(v string)              { f.state.OrderVolume = v }
func (f *fakeVM) SelectMarket(id string)               { f.state.SelectedMarketID = id }
func (f *fakeVM) SetIsolated(b bool)                   { f.state.Isolated = b }

func (f *fakeVM) SelectExchange(id string) {
	for _, e := range f.state.Exchanges {
		if e.ID == id {
			f.state.SelectedExchangeID = id
			f.state.MaxLeverage = e.MaxLeverage
		}
	}
	f.state.Markets = f.markets[id]
	if len(f.state.Markets) > 0 {
		f.state.SelectedMarketID = f.state.Markets[0].ID
	}
}

func (f *fakeVM) SetLeverage(n int) {
	f.levers = append(f.levers, n)
	f.state.Leverage = n
}

func (f *fakeVM) SendChatMessage(_ context.Context, text string) error {
	f.sent = append(f.sent, text)
	return f.sendErr
}

func (f *fakeVM) ClearChat(context.Context) error { f.state.Messages = nil; return nil }

func (f *fakeVM) GenerateDerivativesConfig(context.Context) error {
	f.generate++
	return nil
}

func (f *fakeVM) ToggleDerivativesBot(context.Context) error {
	f.toggles++
	f.state.Running = !f.state.Running
	return nil
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func press(t *testing.T, m *ScreenView, msg tea.KeyMsg) {
	t.Helper()
	_, cmd := m.Update(msg)
	if cmd == nil {
		return
	}
	// Only run view model operations; textinput blink commands would block.
	if done, ok := runOp(cmd); ok {
		m.Update(done)
	}
}

func runOp(cmd tea.Cmd) (tea.Msg, bool) {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		_, ok := msg.(opDoneMsg)
		return msg, ok
	case <-timeAfter():
		return nil, false
	}
}

func newTestScreen(vm *fakeVM) *ScreenView {
	m := NewScreenView(context.Background(), vm)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func TestEachTabRendersExactlyOnePane(t *testing.T) {
	markers := map[viewmodel.Tab]string{
		viewmodel.TabChat:     "Send",
		viewmodel.TabStrategy: "Grid Settings",
		viewmodel.TabRisk:     "Exchange & Market",
	}
	for _, tab := range viewmodel.AllTabs() {
		vm := newFakeVM()
		vm.state.Tab = tab
		out := newTestScreen(vm).View()
		if !strings.Contains(out, "Derivatives Bot") {
			t.Fatalf("%s: missing title", tab)
		}
		for other, marker := range markers {
			has := strings.Contains(out, marker)
			if other == tab && !has {
				t.Fatalf("%s: expected %q in view", tab, marker)
			}
			if other != tab && has {
				t.Fatalf("%s: unexpected %q from %s pane", tab, marker, other)
			}
		}
	}
}

func TestTabKeysSwitchTabs(t *testing.T) {
	vm := newFakeVM()
	m := newTestScreen(vm)
	press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if vm.state.Tab != viewmodel.TabStrategy {
		t.Fatalf("tab: got %s", vm.state.Tab)
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if vm.state.Tab != viewmodel.TabRisk {
		t.Fatalf("shift+tab should wrap to risk, got %s", vm.state.Tab)
	}
	press(t, m, runes("1"))
	if vm.state.Tab != viewmodel.TabChat {
		t.Fatalf("1 from risk should open chat, got %s", vm.state.Tab)
	}
	press(t, m, runes("3"))
	if vm.state.Tab != viewmodel.TabChat {
		t.Fatalf("digits must type into the chat input, got %s", vm.state.Tab)
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyF3})
	if vm.state.Tab != viewmodel.TabRisk {
		t.Fatalf("f3 should open risk, got %s", vm.state.Tab)
	}
}

func TestChatSubmitForwardsTextAndClears(t *testing.T) {
	vm := newFakeVM()
	m := newTestScreen(vm)

	press(t, m, runes("BTC 60000-68000"))
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(vm.sent) != 1 || vm.sent[0] != "BTC 60000-68000" {
		t.Fatalf("sent: %#v", vm.sent)
	}
	if got := m.chat.input.Value(); got != "" {
		t.Fatalf("buffer not cleared: %q", got)
	}

	vm.sendErr = errors.New("offline")
	press(t, m, runes("again"))
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if got := m.chat.input.Value(); got != "" {
		t.Fatalf("buffer not cleared after failure: %q", got)
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(vm.sent) != 3 || vm.sent[2] != "" {
		t.Fatalf("empty submit should still call send: %#v", vm.sent)
	}
}

func TestMessagesRenderInOrder(t *testing.T) {
	vm := newFakeVM()
	vm.state.Messages = []viewmodel.Message{
		{Sender: "You", Text: "first line", FromMe: true},
		{Sender: "Bot", Text: "second line"},
		{Sender: "You", Text: "third line", FromMe: true},
	}
	out := newTestScreen(vm).View()
	last := -1
	if !strings.Contains(out, "You") {
		t.Fatalf("sender missing")
	}
	for _, want := range []string{"first line", "second line", "third line"} {
		i := strings.Index(out, want)
		if i < 0 {
			t.Fatalf("missing %q", want)
		}
		if i < last {
			t.Fatalf("%q rendered out of order", want)
		}
		last = i
	}
}

func TestStrategyFieldsBindBothWays(t *testing.T) {
	vm := newFakeVM()
	m := newTestScreen(vm)
	press(t, m, tea.KeyMsg{Type: tea.KeyTab})

	press(t, m, runes("60000"))
	if vm.state.LowerPrice != "60000" {
		t.Fatalf("lower: %q", vm.state.LowerPrice)
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	press(t, m, runes("abc"))
	if vm.state.UpperPrice != "abc" {
		t.Fatalf("free text should pass through: %q", vm.state.UpperPrice)
	}

	vm.state.GridLevels = "12"
	m.Update(changedMsg{})
	if got := m.strategy.inputs[fieldLevels].Value(); got != "12" {
		t.Fatalf("levels input not synced: %q", got)
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlG})
	if vm.generate != 1 {
		t.Fatalf("generate calls: %d", vm.generate)
	}
	for range 3 {
		press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if vm.generate != 2 {
		t.Fatalf("enter on button should generate: %d", vm.generate)
	}
}

func TestMarketListFollowsExchange(t *testing.T) {
	vm := newFakeVM()
	vm.state.Tab = viewmodel.TabRisk
	m := newTestScreen(vm)

	out := m.View()
	if !strings.Contains(out, "BTCUSDT") || !strings.Contains(out, "ETHUSDT") {
		t.Fatalf("binance markets missing:\n%s", out)
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if vm.state.SelectedExchangeID != "der" {
		t.Fatalf("exchange: %s", vm.state.SelectedExchangeID)
	}
	out = m.View()
	if !strings.Contains(out, "BTC-PERPETUAL") || strings.Contains(out, "ETHUSDT") {
		t.Fatalf("market list should follow exchange:\n%s", out)
	}
}

func TestLeverageStaysInRange(t *testing.T) {
	vm := newFakeVM()
	vm.state.Tab = viewmodel.TabRisk
	vm.SelectExchange("der")
	vm.state.Leverage = 50
	m := newTestScreen(vm)
	press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	press(t, m, tea.KeyMsg{Type: tea.KeyDown})

	press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	press(t, m, tea.KeyMsg{Type: tea.KeyPgUp})
	for _, n := range vm.levers {
		if n < 1 || n > 50 {
			t.Fatalf("leverage %d outside 1..50", n)
		}
	}

	vm.state.Leverage = 1
	press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	if vm.state.Leverage != 1 {
		t.Fatalf("leverage went below 1: %d", vm.state.Leverage)
	}

	vm.state.Leverage = 400
	if out := m.View(); !strings.Contains(out, "Leverage: 50x") {
		t.Fatalf("out of range leverage should render clamped:\n%s", out)
	}
}

func TestBotButtonFollowsRunningFlag(t *testing.T) {
	vm := newFakeVM()
	vm.state.Tab = viewmodel.TabRisk
	m := newTestScreen(vm)

	if out := m.View(); !strings.Contains(out, "Start Bot") || strings.Contains(out, "Stop Bot") {
		t.Fatalf("stopped bot should offer Start Bot")
	}
	press(t, m, runes("s"))
	if vm.toggles != 1 {
		t.Fatalf("toggle calls: %d", vm.toggles)
	}
	if out := m.View(); !strings.Contains(out, "Stop Bot") || strings.Contains(out, "Start Bot") {
		t.Fatalf("running bot should offer Stop Bot")
	}

	vm.state.Running = false
	if out := m.View(); !strings.Contains(out, "Start Bot") {
		t.Fatalf("label must track the view model flag")
	}
}

func TestIsolatedToggle(t *testing.T) {
	vm := newFakeVM()
	vm.state.Tab = viewmodel.TabRisk
	m := newTestScreen(vm)
	press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if !vm.state.Isolated {
		t.Fatalf("space should toggle isolated margin")
	}
}

func TestStatusBarShowsError(t *testing.T) {
	vm := newFakeVM()
	vm.state.Err = errors.New("lower price: not a number")
	out := newTestScreen(vm).View()
	if !strings.Contains(out, "Error: lower price: not a number") {
		t.Fatalf("error not surfaced:\n%s", out)
	}
}

func timeAfter() <-chan time.Time { return time.After(100 * time.Millisecond) }
