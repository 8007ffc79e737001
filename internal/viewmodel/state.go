package viewmodel

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/derivbot/internal/grid"
)

// Tab selects which pane the screen shows.
type Tab int

const (
	TabChat Tab = iota
	TabStrategy
	TabRisk
)

// AllTabs lists the tabs in display order.
func AllTabs() []Tab { return []Tab{TabChat, TabStrategy, TabRisk} }

func (t Tab) String() string {
	switch t {
	case TabChat:
		return "Chat"
	case TabStrategy:
		return "Strategy"
	case TabRisk:
		return "Risk & Accounts"
	default:
		return "Unknown"
	}
}

// Message is one chat line.
type Message struct {
	Sender string
	Text   string
	FromMe bool
}

type Exchange struct {
	ID          string
	Name        string
	MaxLeverage int
}

type Market struct {
	ID       string
	Symbol   string
	Title    string
	RefPrice decimal.Decimal
}

// Fill is a paper fill reported by the running bot.
type Fill struct {
	Side   grid.Side
	Level  int
	Price  decimal.Decimal
	Volume decimal.Decimal
	Time   time.Time
}

// State is a point-in-time copy of everything the screen renders.
type State struct {
	Tab      Tab
	Messages []Message

	LowerPrice  string
	UpperPrice  string
	GridLevels  string
	OrderVolume string

	Exchanges          []Exchange
	Markets            []Market
	SelectedExchangeID string
	SelectedMarketID   string
	Leverage           int
	MaxLeverage        int
	Isolated           bool

	Running bool
	Busy    bool
	Status  string
	Err     error

	LastConfig *grid.Config
	ExportPath string
	Fills      []Fill
}

// SelectedExchange returns the current exchange, if any.
func (s State) SelectedExchange() (Exchange, bool) {
	for _, e := range s.Exchanges {
		if e.ID == s.SelectedExchangeID {
			return e, true
		}
	}
	return Exchange{}, false
}

// SelectedMarket returns the current market, if any.
func (s State) SelectedMarket() (Market, bool) {
	for _, m := range s.Markets {
		if m.ID == s.SelectedMarketID {
			return m, true
		}
	}
	return Market{}, false
}

func (s State) clone() State {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	out.Exchanges = append([]Exchange(nil), s.Exchanges...)
	out.Markets = append([]Market(nil), s.Markets...)
	out.Fills = append([]Fill(nil), s.Fills...)
	if s.LastConfig != nil {
		c := *s.LastConfig
		out.LastConfig = &c
	}
	return out
}
