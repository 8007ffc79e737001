package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// Exchange represents a derivatives venue row.
type Exchange struct {
	ID          string
	Name        string
	MaxLeverage int
	SortOrder   int
}

// Market represents a tradable contract on an exchange.
type Market struct {
	ID         string
	ExchangeID string
	Symbol     string
	Title      string
	RefPrice   decimal.Decimal
	SortOrder  int
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a persisted chat line.
type ChatMessage struct {
	ID        string
	Role      string
	Sender    string
	Body      string
	CreatedAt time.Time
}

// BotConfig represents a generated grid configuration.
type BotConfig struct {
	ID          string
	ExchangeID  string
	MarketID    string
	LowerPrice  decimal.Decimal
	UpperPrice  decimal.Decimal
	GridLevels  int
	OrderVolume decimal.Decimal
	Leverage    int
	Isolated    bool
	ExportPath  *string
	CreatedAt   time.Time
}

// Run statuses.
const (
	RunRunning = "running"
	RunStopped = "stopped"
	RunFailed  = "failed"
)

// BotRun is one start/stop session of the paper runner.
type BotRun struct {
	ID        string
	ConfigID  string
	Status    string
	StartedAt time.Time
	StoppedAt *time.Time
}

// BotFill is a simulated grid order fill.
type BotFill struct {
	ID       string
	RunID    string
	Side     string
	Level    int
	Price    decimal.Decimal
	Volume   decimal.Decimal
	FilledAt time.Time
}
