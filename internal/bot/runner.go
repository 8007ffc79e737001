// Package bot runs a grid configuration against a price feed in paper mode.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jask/derivbot/internal/database/repository"
	"github.com/jask/derivbot/internal/feed"
	"github.com/jask/derivbot/internal/grid"
)

var (
	ErrNoConfig       = errors.New("bot: no grid config")
	ErrAlreadyRunning = errors.New("bot: already running")
	ErrNotRunning     = errors.New("bot: not running")
	ErrFeedClosed     = errors.New("bot: price feed closed")
)

// Runner starts and stops a bot.
type Runner interface {
	Start(ctx context.Context, cfg grid.Config, ref decimal.Decimal) error
	Stop() error
	Running() bool
	Events() <-chan Event
}

// Recorder persists runs and fills.
type Recorder interface {
	Start(ctx context.Context, run repository.BotRun) error
	Finish(ctx context.Context, id, status string, at time.Time) error
	AddFill(ctx context.Context, f repository.BotFill) error
}

type EventKind string

const (
	EventStarted EventKind = "started"
	EventFill    EventKind = "fill"
	EventStopped EventKind = "stopped"
	EventFailed  EventKind = "failed"
)

// Event reports runner activity to the owner.
type Event struct {
	Kind   EventKind
	RunID  string
	Side   grid.Side
	Level  int
	Price  decimal.Decimal
	Volume decimal.Decimal
	Time   time.Time
	Err    error
}

// PaperRunner simulates grid fills. Prices stream in continuously; on every
// cron tick the levels crossed since the previous tick are filled.
type PaperRunner struct {
	feed     feed.Feed
	rec      Recorder
	log      logrus.FieldLogger
	interval time.Duration
	events   chan Event

	mu      sync.Mutex
	running bool
	runID   string
	cfg     grid.Config
	prices  []decimal.Decimal
	last    decimal.Decimal
	prev    decimal.Decimal
	cancel  context.CancelFunc
	sched   *cron.Cron
}

func NewPaperRunner(f feed.Feed, rec Recorder, interval time.Duration, log logrus.FieldLogger) *PaperRunner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PaperRunner{
		feed:     f,
		rec:      rec,
		log:      log.WithField("component", "paper-runner"),
		interval: interval,
		events:   make(chan Event, 64),
	}
}

func (r *PaperRunner) Events() <-chan Event { return r.events }

func (r *PaperRunner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *PaperRunner) Start(ctx context.Context, cfg grid.Config, ref decimal.Decimal) error {
	prices := cfg.Params.Prices()
	if cfg.ID == "" || len(prices) == 0 {
		return ErrNoConfig
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	ticks, err := r.feed.Subscribe(runCtx, cfg.MarketSymbol, ref)
	if err != nil {
		cancel()
		return fmt.Errorf("bot: subscribe %s: %w", cfg.MarketSymbol, err)
	}

	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	if err := r.rec.Start(ctx, repository.BotRun{ID: runID, ConfigID: cfg.ID, Status: repository.RunRunning, StartedAt: startedAt}); err != nil {
		cancel()
		return fmt.Errorf("bot: record run: %w", err)
	}

	sched := cron.New()
	if _, err := sched.AddFunc(fmt.Sprintf("@every %s", r.interval), r.evaluate); err != nil {
		cancel()
		_ = r.rec.Finish(ctx, runID, repository.RunFailed, time.Now().UTC())
		return fmt.Errorf("bot: schedule: %w", err)
	}

	r.running = true
	r.runID = runID
	r.cfg = cfg
	r.prices = prices
	r.last = decimal.Zero
	r.prev = decimal.Zero
	r.cancel = cancel
	r.sched = sched

	go r.consume(runID, ticks)
	sched.Start()

	r.log.WithFields(logrus.Fields{
		"run":    runID,
		"market": cfg.MarketSymbol,
		"levels": len(prices),
	}).Info("bot started")
	r.emit(Event{Kind: EventStarted, RunID: runID, Time: startedAt})
	return nil
}

func (r *PaperRunner) Stop() error {
	return r.halt("", repository.RunStopped, nil)
}

// halt stops the active run. A non-empty runID only stops that run, which
// keeps a late feed failure from stopping a newer session.
func (r *PaperRunner) halt(runID, status string, cause error) error {
	r.mu.Lock()
	if !r.running || (runID != "" && runID != r.runID) {
		r.mu.Unlock()
		return ErrNotRunning
	}
	id, cancel, sched := r.runID, r.cancel, r.sched
	r.running = false
	r.cancel = nil
	r.sched = nil
	r.mu.Unlock()

	cancel()
	<-sched.Stop().Done()

	at := time.Now().UTC()
	if err := r.rec.Finish(context.Background(), id, status, at); err != nil {
		r.log.WithError(err).WithField("run", id).Warn("record stop failed")
	}
	kind := EventStopped
	if cause != nil {
		kind = EventFailed
	}
	r.log.WithField("run", id).WithField("status", status).Info("bot stopped")
	r.emit(Event{Kind: kind, RunID: id, Time: at, Err: cause})
	return nil
}

func (r *PaperRunner) consume(runID string, ticks <-chan feed.Tick) {
	for tk := range ticks {
		r.mu.Lock()
		if r.runID == runID {
			r.last = tk.Price
		}
		r.mu.Unlock()
	}
	if r.Running() {
		_ = r.halt(runID, repository.RunFailed, ErrFeedClosed)
	}
}

// evaluate fills the levels crossed since the last evaluation.
func (r *PaperRunner) evaluate() {
	r.mu.Lock()
	if !r.running || r.last.IsZero() {
		r.mu.Unlock()
		return
	}
	if r.prev.IsZero() {
		r.prev = r.last
		r.mu.Unlock()
		return
	}
	crossings := grid.Crossings(r.prices, r.prev, r.last)
	r.prev = r.last
	runID, volume := r.runID, r.cfg.Params.OrderVolume
	r.mu.Unlock()

	for _, c := range crossings {
		fill := repository.BotFill{
			ID:       uuid.NewString(),
			RunID:    runID,
			Side:     string(c.Side),
			Level:    c.Level,
			Price:    c.Price,
			Volume:   volume,
			FilledAt: time.Now().UTC(),
		}
		if err := r.rec.AddFill(context.Background(), fill); err != nil {
			r.log.WithError(err).WithField("run", runID).Warn("record fill failed")
		}
		r.log.WithFields(logrus.Fields{"run": runID, "side": c.Side, "level": c.Level, "price": c.Price}).Debug("grid fill")
		r.emit(Event{Kind: EventFill, RunID: runID, Side: c.Side, Level: c.Level, Price: c.Price, Volume: volume, Time: fill.FilledAt})
	}
}

// emit never blocks; a slow consumer loses events, not the runner.
func (r *PaperRunner) emit(e Event) {
	select {
	case r.events <- e:
	default:
		r.log.WithField("kind", e.Kind).Warn("event dropped")
	}
}
