// Package viewmodel holds the screen state of the derivatives bot and the
// operations behind it. Views read a Snapshot and re-render when a
// subscription channel fires.
package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jask/derivbot/internal/bot"
	"github.com/jask/derivbot/internal/database/repository"
	"github.com/jask/derivbot/internal/grid"
	"github.com/jask/derivbot/internal/llm"
	"github.com/jask/derivbot/internal/service"
)

const (
	defaultHistoryLimit = 200
	maxFills            = 50
)

type Chat interface {
	History(ctx context.Context, limit int) ([]repository.ChatMessage, error)
	Send(ctx context.Context, text string, sc llm.StrategyContext) (service.ChatResult, error)
	ClearHistory(ctx context.Context) error
}

type Catalog interface {
	ListExchanges(ctx context.Context) ([]repository.Exchange, error)
	MarketsFor(ctx context.Context, exchangeID string) ([]repository.Market, error)
}

type Configurator interface {
	Generate(ctx context.Context, f service.StrategyFields, sel service.Selection) (service.Generated, error)
	Latest(ctx context.Context) (*grid.Config, error)
}

type RiskStore interface {
	Load(ctx context.Context) (service.Selection, error)
	Save(ctx context.Context, sel service.Selection) error
}

// RunHistory reads back recorded bot runs.
type RunHistory interface {
	Latest(ctx context.Context) (*repository.BotRun, error)
	Fills(ctx context.Context, runID string) ([]repository.BotFill, error)
}

type Deps struct {
	Chat         Chat
	Catalog      Catalog
	Configurator Configurator
	Risk         RiskStore
	Runner       bot.Runner
	Runs         RunHistory
	Log          logrus.FieldLogger
	HistoryLimit int
	UserName     string
}

// ViewModel is safe for concurrent use. Mutators apply immediately;
// operations block and are meant to run off the UI loop.
type ViewModel struct {
	deps   Deps
	log    logrus.FieldLogger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	markets map[string][]Market
	subs    map[int]chan struct{}
	nextSub int
}

func New(deps Deps) *ViewModel {
	if deps.HistoryLimit <= 0 {
		deps.HistoryLimit = defaultHistoryLimit
	}
	if deps.UserName == "" {
		deps.UserName = "You"
	}
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	vm := &ViewModel{
		deps:    deps,
		log:     log.WithField("component", "viewmodel"),
		ctx:     ctx,
		cancel:  cancel,
		state:   State{Tab: TabChat, Leverage: 1, MaxLeverage: 1},
		markets: map[string][]Market{},
		subs:    map[int]chan struct{}{},
	}
	if deps.Runner != nil {
		go vm.watchRunner(deps.Runner.Events())
	}
	return vm
}

// Close stops the bot if it is running and ends background work.
func (vm *ViewModel) Close() {
	if vm.deps.Runner != nil && vm.deps.Runner.Running() {
		if err := vm.deps.Runner.Stop(); err != nil {
			vm.log.WithError(err).Warn("stop bot on close")
		}
	}
	vm.cancel()
}

// Subscribe returns a channel that receives a value after every change.
// Notifications coalesce: a slow reader sees one pending signal, never a
// backlog. The returned func unsubscribes and closes the channel.
func (vm *ViewModel) Subscribe() (<-chan struct{}, func()) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	id := vm.nextSub
	vm.nextSub++
	ch := make(chan struct{}, 1)
	vm.subs[id] = ch
	return ch, func() {
		vm.mu.Lock()
		defer vm.mu.Unlock()
		if _, ok := vm.subs[id]; ok {
			delete(vm.subs, id)
			close(ch)
		}
	}
}

// Snapshot returns a deep copy of the current state.
func (vm *ViewModel) Snapshot() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state.clone()
}

// update applies fn under the lock and notifies subscribers.
func (vm *ViewModel) update(fn func(s *State)) {
	vm.mu.Lock()
	fn(&vm.state)
	for _, ch := range vm.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	vm.mu.Unlock()
}

func (vm *ViewModel) fail(err error) {
	vm.log.WithError(err).Warn("operation failed")
	vm.update(func(s *State) {
		s.Busy = false
		s.Err = err
	})
}

func (vm *ViewModel) SetTab(t Tab) {
	switch t {
	case TabChat, TabStrategy, TabRisk:
	default:
		return
	}
	vm.update(func(s *State) { s.Tab = t })
}

func (vm *ViewModel) SetLowerPrice(v string)  { vm.update(func(s *State) { s.LowerPrice = v }) }
func (vm *ViewModel) SetUpperPrice(v string)  { vm.update(func(s *State) { s.UpperPrice = v }) }
func (vm *ViewModel) SetGridLevels(v string)  { vm.update(func(s *State) { s.GridLevels = v }) }
func (vm *ViewModel) SetOrderVolume(v string) { vm.update(func(s *State) { s.OrderVolume = v }) }

// SelectExchange switches exchange, reloads its markets, selects the first
// market and clamps leverage to the new maximum. Unknown ids are ignored.
func (vm *ViewModel) SelectExchange(id string) {
	changed := false
	vm.update(func(s *State) {
		changed = vm.selectExchangeLocked(s, id)
	})
	if changed {
		vm.persistSelection()
	}
}

func (vm *ViewModel) selectExchangeLocked(s *State, id string) bool {
	var ex *Exchange
	for i := range s.Exchanges {
		if s.Exchanges[i].ID == id {
			ex = &s.Exchanges[i]
			break
		}
	}
	if ex == nil {
		return false
	}
	s.SelectedExchangeID = ex.ID
	s.MaxLeverage = max(ex.MaxLeverage, 1)
	s.Leverage = clamp(s.Leverage, 1, s.MaxLeverage)
	s.Markets = append([]Market(nil), vm.markets[ex.ID]...)
	s.SelectedMarketID = ""
	if len(s.Markets) > 0 {
		s.SelectedMarketID = s.Markets[0].ID
	}
	return true
}

// SelectMarket picks a market of the current exchange.
func (vm *ViewModel) SelectMarket(id string) {
	changed := false
	vm.update(func(s *State) {
		for _, m := range s.Markets {
			if m.ID == id {
				s.SelectedMarketID = id
				changed = true
				return
			}
		}
	})
	if changed {
		vm.persistSelection()
	}
}

// SetLeverage stores n clamped to [1, MaxLeverage].
func (vm *ViewModel) SetLeverage(n int) {
	vm.update(func(s *State) { s.Leverage = clamp(n, 1, s.MaxLeverage) })
	vm.persistSelection()
}

func (vm *ViewModel) SetIsolated(b bool) {
	vm.update(func(s *State) { s.Isolated = b })
	vm.persistSelection()
}

func (vm *ViewModel) selection() service.Selection {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return service.Selection{
		ExchangeID: vm.state.SelectedExchangeID,
		MarketID:   vm.state.SelectedMarketID,
		Leverage:   vm.state.Leverage,
		Isolated:   vm.state.Isolated,
	}
}

func (vm *ViewModel) persistSelection() {
	if vm.deps.Risk == nil {
		return
	}
	if err := vm.deps.Risk.Save(vm.ctx, vm.selection()); err != nil {
		vm.fail(fmt.Errorf("save risk settings: %w", err))
	}
}

// Load fills the catalog, restores the saved selection, chat history and the
// last generated config.
func (vm *ViewModel) Load(ctx context.Context) error {
	exs, err := vm.deps.Catalog.ListExchanges(ctx)
	if err != nil {
		vm.fail(err)
		return err
	}
	exchanges := make([]Exchange, 0, len(exs))
	markets := make(map[string][]Market, len(exs))
	for _, e := range exs {
		exchanges = append(exchanges, Exchange{ID: e.ID, Name: e.Name, MaxLeverage: e.MaxLeverage})
		ms, err := vm.deps.Catalog.MarketsFor(ctx, e.ID)
		if err != nil {
			vm.fail(err)
			return err
		}
		for _, m := range ms {
			markets[e.ID] = append(markets[e.ID], Market{ID: m.ID, Symbol: m.Symbol, Title: m.Title, RefPrice: m.RefPrice})
		}
	}

	var sel service.Selection
	if vm.deps.Risk != nil {
		if sel, err = vm.deps.Risk.Load(ctx); err != nil {
			vm.log.WithError(err).Warn("load risk settings")
		}
	}

	history, err := vm.deps.Chat.History(ctx, vm.deps.HistoryLimit)
	if err != nil {
		vm.fail(err)
		return err
	}
	msgs := make([]Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, Message{Sender: m.Sender, Text: m.Body, FromMe: m.Role == repository.RoleUser})
	}

	last, err := vm.deps.Configurator.Latest(ctx)
	if err != nil {
		vm.log.WithError(err).Warn("load last config")
		last = nil
	}
	fills := vm.loadFills(ctx)

	vm.update(func(s *State) {
		vm.markets = markets
		s.Exchanges = exchanges
		s.Messages = msgs
		s.Fills = fills
		s.LastConfig = last
		if last != nil {
			s.LowerPrice = last.Params.Lower.String()
			s.UpperPrice = last.Params.Upper.String()
			s.GridLevels = strconv.Itoa(last.Params.GridLevels)
			s.OrderVolume = last.Params.OrderVolume.String()
		}

		exID := sel.ExchangeID
		if _, ok := markets[exID]; !ok && len(exchanges) > 0 {
			exID = exchanges[0].ID
		}
		if sel.Leverage > 0 {
			s.Leverage = sel.Leverage
		}
		s.Isolated = sel.Isolated
		if vm.selectExchangeLocked(s, exID) {
			for _, m := range s.Markets {
				if m.ID == sel.MarketID {
					s.SelectedMarketID = m.ID
				}
			}
		}
		if vm.deps.Runner != nil {
			s.Running = vm.deps.Runner.Running()
		}
		s.Status = fmt.Sprintf("%d exchanges loaded", len(exchanges))
		s.Err = nil
	})
	return nil
}

// loadFills returns the fills of the most recent run, newest first.
func (vm *ViewModel) loadFills(ctx context.Context) []Fill {
	if vm.deps.Runs == nil {
		return nil
	}
	run, err := vm.deps.Runs.Latest(ctx)
	if err != nil || run == nil {
		if err != nil {
			vm.log.WithError(err).Warn("load last run")
		}
		return nil
	}
	rows, err := vm.deps.Runs.Fills(ctx, run.ID)
	if err != nil {
		vm.log.WithError(err).WithField("run", run.ID).Warn("load fills")
		return nil
	}
	out := make([]Fill, 0, min(len(rows), maxFills))
	for i := len(rows) - 1; i >= 0 && len(out) < maxFills; i-- {
		f := rows[i]
		out = append(out, Fill{Side: grid.Side(f.Side), Level: f.Level, Price: f.Price, Volume: f.Volume, Time: f.FilledAt})
	}
	return out
}

// SendChatMessage sends text to the assistant. Blank text is ignored.
func (vm *ViewModel) SendChatMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	sc := vm.strategyContext()
	vm.update(func(s *State) {
		vm.appendMessageLocked(s, Message{Sender: vm.deps.UserName, Text: text, FromMe: true})
		s.Busy = true
		s.Status = "Waiting for assistant…"
		s.Err = nil
	})

	res, err := vm.deps.Chat.Send(ctx, text, sc)
	selectionChanged := false
	vm.update(func(s *State) {
		if res.Reply.Body != "" {
			vm.appendMessageLocked(s, Message{Sender: res.Reply.Sender, Text: res.Reply.Body})
		}
		s.Busy = false
		s.Status = ""
		if res.Suggestion != nil {
			selectionChanged = vm.applySuggestionLocked(s, *res.Suggestion)
			s.Status = "Assistant filled in the strategy fields"
		}
		s.Err = err
	})
	if err != nil {
		vm.log.WithError(err).Warn("chat send failed")
	}
	if selectionChanged {
		vm.persistSelection()
	}
	return err
}

// ClearChat deletes the conversation.
func (vm *ViewModel) ClearChat(ctx context.Context) error {
	if err := vm.deps.Chat.ClearHistory(ctx); err != nil {
		vm.fail(err)
		return err
	}
	vm.update(func(s *State) {
		s.Messages = nil
		s.Status = "Chat cleared"
		s.Err = nil
	})
	return nil
}

func (vm *ViewModel) appendMessageLocked(s *State, m Message) {
	s.Messages = append(s.Messages, m)
	if over := len(s.Messages) - vm.deps.HistoryLimit; over > 0 {
		s.Messages = append([]Message(nil), s.Messages[over:]...)
	}
}

// applySuggestionLocked copies suggested values into s and reports whether
// the risk selection changed.
func (vm *ViewModel) applySuggestionLocked(s *State, g llm.GridSuggestion) bool {
	exID, mktID, lev := s.SelectedExchangeID, s.SelectedMarketID, s.Leverage
	if g.Exchange != "" {
		for _, e := range s.Exchanges {
			if strings.EqualFold(e.Name, g.Exchange) && e.ID != s.SelectedExchangeID {
				vm.selectExchangeLocked(s, e.ID)
				break
			}
		}
	}
	if g.Market != "" {
		for _, m := range s.Markets {
			if strings.EqualFold(m.Symbol, g.Market) {
				s.SelectedMarketID = m.ID
				break
			}
		}
	}
	if g.LowerPrice != "" {
		s.LowerPrice = g.LowerPrice
	}
	if g.UpperPrice != "" {
		s.UpperPrice = g.UpperPrice
	}
	if g.GridLevels > 0 {
		s.GridLevels = strconv.Itoa(g.GridLevels)
	}
	if g.OrderVolume != "" {
		s.OrderVolume = g.OrderVolume
	}
	if g.Leverage > 0 {
		s.Leverage = clamp(g.Leverage, 1, s.MaxLeverage)
	}
	return exID != s.SelectedExchangeID || mktID != s.SelectedMarketID || lev != s.Leverage
}

func (vm *ViewModel) strategyContext() llm.StrategyContext {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s := vm.state
	sc := llm.StrategyContext{MaxLeverage: s.MaxLeverage}
	if ex, ok := s.SelectedExchange(); ok {
		sc.Exchange = ex.Name
	}
	if m, ok := s.SelectedMarket(); ok {
		sc.Market = m.Symbol
		sc.RefPrice = m.RefPrice.String()
	}
	for _, e := range s.Exchanges {
		sc.Exchanges = append(sc.Exchanges, e.Name)
	}
	for _, m := range s.Markets {
		sc.Markets = append(sc.Markets, m.Symbol)
	}
	return sc
}

// GenerateDerivativesConfig builds and saves a grid config from the current
// strategy fields and risk selection.
func (vm *ViewModel) GenerateDerivativesConfig(ctx context.Context) error {
	_, err := vm.generate(ctx)
	return err
}

func (vm *ViewModel) generate(ctx context.Context) (*grid.Config, error) {
	vm.mu.Lock()
	fields := service.StrategyFields{
		LowerPrice:  vm.state.LowerPrice,
		UpperPrice:  vm.state.UpperPrice,
		GridLevels:  vm.state.GridLevels,
		OrderVolume: vm.state.OrderVolume,
	}
	vm.mu.Unlock()
	sel := vm.selection()

	vm.update(func(s *State) {
		s.Busy = true
		s.Status = "Generating config…"
	})
	gen, err := vm.deps.Configurator.Generate(ctx, fields, sel)
	if err != nil && gen.Config.ID == "" {
		vm.fail(fmt.Errorf("generate config: %w", err))
		return nil, err
	}
	cfg := gen.Config
	vm.update(func(s *State) {
		s.Busy = false
		s.LastConfig = &cfg
		s.ExportPath = gen.ExportPath
		s.Status = fmt.Sprintf("Config %s: %d levels, margin %s", cfg.MarketSymbol, cfg.Params.GridLevels, cfg.RequiredMargin().StringFixed(2))
		if gen.ExportPath != "" {
			s.Status += " → " + gen.ExportPath
		}
		s.Err = err
	})
	return &cfg, err
}

// ToggleDerivativesBot starts the bot with the last generated config, or
// generates one first, and stops it when running.
func (vm *ViewModel) ToggleDerivativesBot(ctx context.Context) error {
	r := vm.deps.Runner
	if r == nil {
		err := errors.New("no bot runner configured")
		vm.fail(err)
		return err
	}

	if r.Running() {
		err := r.Stop()
		if err != nil && !errors.Is(err, bot.ErrNotRunning) {
			vm.fail(err)
			return err
		}
		vm.update(func(s *State) {
			s.Running = r.Running()
			s.Status = "Bot stopped"
			s.Err = nil
		})
		return nil
	}

	vm.mu.Lock()
	cfg := vm.state.LastConfig
	vm.mu.Unlock()
	if cfg == nil {
		generated, err := vm.generate(ctx)
		if err != nil {
			vm.update(func(s *State) { s.Running = r.Running() })
			return err
		}
		cfg = generated
	} else {
		c := *cfg
		cfg = &c
	}

	if err := r.Start(vm.ctx, *cfg, vm.refPrice(cfg.ExchangeID, cfg.MarketID)); err != nil {
		vm.fail(fmt.Errorf("start bot: %w", err))
		vm.update(func(s *State) { s.Running = r.Running() })
		return err
	}
	vm.update(func(s *State) {
		s.Running = r.Running()
		s.Fills = nil
		s.Status = fmt.Sprintf("Bot running on %s %s", cfg.ExchangeName, cfg.MarketSymbol)
		s.Err = nil
	})
	return nil
}

func (vm *ViewModel) refPrice(exchangeID, marketID string) decimal.Decimal {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, m := range vm.markets[exchangeID] {
		if m.ID == marketID {
			return m.RefPrice
		}
	}
	return decimal.Zero
}

func (vm *ViewModel) watchRunner(events <-chan bot.Event) {
	for {
		select {
		case <-vm.ctx.Done():
			return
		case e := <-events:
			vm.handleEvent(e)
		}
	}
}

func (vm *ViewModel) handleEvent(e bot.Event) {
	running := vm.deps.Runner.Running()
	vm.update(func(s *State) {
		s.Running = running
		switch e.Kind {
		case bot.EventFill:
			f := Fill{Side: e.Side, Level: e.Level, Price: e.Price, Volume: e.Volume, Time: e.Time}
			s.Fills = append([]Fill{f}, s.Fills...)
			if len(s.Fills) > maxFills {
				s.Fills = s.Fills[:maxFills]
			}
			s.Status = fmt.Sprintf("Filled %s level %d @ %s", e.Side, e.Level, e.Price)
		case bot.EventFailed:
			s.Err = fmt.Errorf("bot stopped: %w", e.Err)
			s.Status = ""
		}
	})
}

func clamp(n, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return min(max(n, lo), hi)
}
