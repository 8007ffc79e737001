package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/derivbot/internal/database"
	"github.com/jask/derivbot/internal/database/repository"
	"github.com/jask/derivbot/internal/grid"
	"github.com/jask/derivbot/internal/llm"
	"github.com/jask/derivbot/internal/logging"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.SeedDefaults(context.Background(), db))
	return db
}

type stubProvider struct {
	resp llm.ChatResponse
	err  error
	got  []llm.ChatRequest
}

func (p *stubProvider) Reply(_ context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	p.got = append(p.got, req)
	return p.resp, p.err
}

func newCatalog(db *sql.DB) *CatalogService {
	return &CatalogService{Exchanges: repository.NewExchangeRepo(db), Markets: repository.NewMarketRepo(db)}
}

var (
	binance = database.ExchangeID("Binance Futures")
	btcusdt = database.MarketID("Binance Futures", "BTCUSDT")
	deribit = database.ExchangeID("Deribit")
)

func TestAssistantSendPersistsBothSides(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)
	prov := &stubProvider{resp: llm.ChatResponse{
		Text:       "Try 60000-68000 with 9 levels.",
		Suggestion: &llm.GridSuggestion{LowerPrice: "60000", UpperPrice: "68000", GridLevels: 9},
	}}
	svc := &AssistantService{Chat: repository.NewChatRepo(db), Provider: prov, Log: logging.Discard(), UserName: "Ana", BotName: "Grid"}

	res, err := svc.Send(ctx, "first", llm.StrategyContext{Exchange: "Binance Futures"})
	require.NoError(t, err)
	require.Equal(t, "Ana", res.User.Sender)
	require.Equal(t, "Grid", res.Reply.Sender)
	require.NotNil(t, res.Suggestion)
	require.Equal(t, 9, res.Suggestion.GridLevels)

	_, err = svc.Send(ctx, "second", llm.StrategyContext{})
	require.NoError(t, err)

	require.Len(t, prov.got, 2)
	require.Empty(t, prov.got[0].History)
	require.Equal(t, "Binance Futures", prov.got[0].Context.Exchange)
	require.Equal(t, []llm.Turn{
		{Role: repository.RoleUser, Text: "first"},
		{Role: repository.RoleAssistant, Text: "Try 60000-68000 with 9 levels."},
	}, prov.got[1].History)

	hist, err := svc.History(ctx, 10)
	require.NoError(t, err)
	var bodies []string
	for _, m := range hist {
		bodies = append(bodies, m.Body)
	}
	require.Equal(t, []string{"first", "Try 60000-68000 with 9 levels.", "second", "Try 60000-68000 with 9 levels."}, bodies)

	require.NoError(t, svc.ClearHistory(ctx))
	hist, err = svc.History(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, hist)
}

func TestAssistantProviderFailureStoresApology(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)
	boom := errors.New("upstream 500")
	svc := &AssistantService{
		Chat:     repository.NewChatRepo(db),
		Provider: &stubProvider{err: boom, resp: llm.ChatResponse{Suggestion: &llm.GridSuggestion{GridLevels: 3}}},
		Log:      logging.Discard(),
	}

	res, err := svc.Send(ctx, "hello", llm.StrategyContext{})
	require.ErrorIs(t, err, boom)
	require.Equal(t, apologyText, res.Reply.Body)
	require.Equal(t, "You", res.User.Sender)
	require.Equal(t, "Bot", res.Reply.Sender)
	require.Nil(t, res.Suggestion)

	hist, err := svc.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
}

func TestCatalogResolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cat := newCatalog(openTestDB(t))

	exs, err := cat.ListExchanges(ctx)
	require.NoError(t, err)
	require.Len(t, exs, 4)
	require.Equal(t, "Binance Futures", exs[0].Name)

	ms, err := cat.MarketsFor(ctx, deribit)
	require.NoError(t, err)
	require.Len(t, ms, 2)

	ex, m, err := cat.Resolve(ctx, binance, btcusdt)
	require.NoError(t, err)
	require.Equal(t, 125, ex.MaxLeverage)
	require.Equal(t, "BTCUSDT", m.Symbol)

	_, _, err = cat.Resolve(ctx, deribit, btcusdt)
	require.ErrorIs(t, err, ErrUnknownMarket)
	_, _, err = cat.Resolve(ctx, "nope", btcusdt)
	require.ErrorIs(t, err, ErrUnknownExchange)
}

func TestRiskSettingsRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := &RiskSettingsService{Settings: repository.NewSettingsRepo(openTestDB(t))}

	empty, err := svc.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, Selection{}, empty)

	want := Selection{ExchangeID: binance, MarketID: btcusdt, Leverage: 20, Isolated: true}
	require.NoError(t, svc.Save(ctx, want))
	got, err := svc.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestConfiguratorGenerateExportsYAML(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)
	dir := filepath.Join(t.TempDir(), "exports")
	svc := &ConfiguratorService{Catalog: newCatalog(db), Configs: repository.NewBotConfigRepo(db), ExportDir: dir, Log: logging.Discard()}

	gen, err := svc.Generate(ctx,
		StrategyFields{LowerPrice: "60,000", UpperPrice: "68000", GridLevels: "9", OrderVolume: "0.01"},
		Selection{ExchangeID: binance, MarketID: btcusdt, Leverage: 10, Isolated: true},
	)
	require.NoError(t, err)
	require.Equal(t, "Binance Futures", gen.Config.ExchangeName)
	require.Equal(t, "60000", gen.Config.Params.Lower.String())
	require.True(t, strings.HasPrefix(filepath.Base(gen.ExportPath), "grid-BTCUSDT-"))

	raw, err := os.ReadFile(gen.ExportPath)
	require.NoError(t, err)
	require.Contains(t, string(raw), "margin_mode: isolated")
	require.Contains(t, string(raw), "levels: 9")

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, gen.Config.ID, latest.ID)
	require.Equal(t, 9, latest.Params.GridLevels)
	require.True(t, latest.Isolated)

	row, err := repository.NewBotConfigRepo(db).Get(ctx, gen.Config.ID)
	require.NoError(t, err)
	require.NotNil(t, row.ExportPath)
	require.Equal(t, gen.ExportPath, *row.ExportPath)
}

func TestConfiguratorExportsDoNotCollide(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)
	svc := &ConfiguratorService{Catalog: newCatalog(db), Configs: repository.NewBotConfigRepo(db), ExportDir: t.TempDir(), Log: logging.Discard()}
	fields := StrategyFields{LowerPrice: "60000", UpperPrice: "68000", GridLevels: "9", OrderVolume: "0.01"}
	sel := Selection{ExchangeID: binance, MarketID: btcusdt, Leverage: 5}

	first, err := svc.Generate(ctx, fields, sel)
	require.NoError(t, err)
	second, err := svc.Generate(ctx, fields, sel)
	require.NoError(t, err)
	require.NotEqual(t, first.ExportPath, second.ExportPath)
	require.FileExists(t, first.ExportPath)
	require.FileExists(t, second.ExportPath)
}

func TestConfiguratorLatestReportsDatabaseErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)
	svc := &ConfiguratorService{Catalog: newCatalog(db), Configs: repository.NewBotConfigRepo(db), Log: logging.Discard()}
	_, err := svc.Generate(ctx,
		StrategyFields{LowerPrice: "60000", UpperPrice: "68000", GridLevels: "9", OrderVolume: "0.01"},
		Selection{ExchangeID: binance, MarketID: btcusdt, Leverage: 5},
	)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `ALTER TABLE markets RENAME TO markets_moved`)
	require.NoError(t, err)

	cfg, err := svc.Latest(ctx)
	require.Error(t, err)
	require.Nil(t, cfg)
	require.NotErrorIs(t, err, ErrUnknownMarket)
}

func TestConfiguratorRejectsBadInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)
	svc := &ConfiguratorService{Catalog: newCatalog(db), Configs: repository.NewBotConfigRepo(db), Log: logging.Discard()}
	fields := StrategyFields{LowerPrice: "60000", UpperPrice: "68000", GridLevels: "9", OrderVolume: "0.01"}

	_, err := svc.Generate(ctx, StrategyFields{LowerPrice: "70000", UpperPrice: "68000", GridLevels: "9", OrderVolume: "1"},
		Selection{ExchangeID: binance, MarketID: btcusdt, Leverage: 1})
	require.ErrorIs(t, err, grid.ErrInvalidRange)

	_, err = svc.Generate(ctx, fields, Selection{ExchangeID: binance, MarketID: btcusdt, Leverage: 126})
	require.ErrorIs(t, err, grid.ErrLeverage)

	_, err = svc.Generate(ctx, fields, Selection{ExchangeID: deribit, MarketID: btcusdt, Leverage: 5})
	require.ErrorIs(t, err, ErrUnknownMarket)

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	require.Nil(t, latest)
}
