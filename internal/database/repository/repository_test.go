package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/derivbot/internal/database"
	"github.com/jask/derivbot/internal/database/repository"
)

func openSeeded(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "repo.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.SeedDefaults(context.Background(), db))
	return db
}

func TestChatRecentIsOldestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewChatRepo(openSeeded(t))

	base := time.Date(2026, 5, 29, 10, 0, 0, 0, time.UTC)
	for i, body := range []string{"one", "two", "three", "four"} {
		require.NoError(t, repo.Add(ctx, repository.ChatMessage{
			ID:        body,
			Role:      repository.RoleUser,
			Sender:    "You",
			Body:      body,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "two", got[0].Body)
	require.Equal(t, "four", got[2].Body)

	require.NoError(t, repo.Clear(ctx))
	got, err = repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestChatRecentSameSecondKeepsInsertOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewChatRepo(openSeeded(t))

	at := time.Date(2026, 5, 29, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Add(ctx, repository.ChatMessage{ID: "a", Role: repository.RoleUser, Sender: "You", Body: "question", CreatedAt: at}))
	require.NoError(t, repo.Add(ctx, repository.ChatMessage{ID: "b", Role: repository.RoleAssistant, Sender: "Bot", Body: "answer", CreatedAt: at}))

	got, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"question", "answer"}, []string{got[0].Body, got[1].Body})
}

func TestBotConfigSaveAndLatest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewBotConfigRepo(openSeeded(t))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.Nil(t, latest)

	cfg := repository.BotConfig{
		ID:          "cfg-1",
		ExchangeID:  database.ExchangeID("Bybit"),
		MarketID:    database.MarketID("Bybit", "BTCUSDT"),
		LowerPrice:  decimal.RequireFromString("60000"),
		UpperPrice:  decimal.RequireFromString("68000.5"),
		GridLevels:  9,
		OrderVolume: decimal.RequireFromString("0.01"),
		Leverage:    5,
		Isolated:    true,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Save(ctx, cfg))
	require.NoError(t, repo.SetExportPath(ctx, "cfg-1", "/tmp/cfg-1.yaml"))

	got, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.UpperPrice.Equal(cfg.UpperPrice))
	require.Equal(t, 9, got.GridLevels)
	require.True(t, got.Isolated)
	require.NotNil(t, got.ExportPath)
	require.Equal(t, "/tmp/cfg-1.yaml", *got.ExportPath)

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestRunLifecycleAndFills(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openSeeded(t)
	configs := repository.NewBotConfigRepo(db)
	runs := repository.NewRunRepo(db)

	require.NoError(t, configs.Save(ctx, repository.BotConfig{
		ID: "cfg", ExchangeID: database.ExchangeID("OKX"), MarketID: database.MarketID("OKX", "BTC-USDT-SWAP"),
		LowerPrice: decimal.NewFromInt(1), UpperPrice: decimal.NewFromInt(2), GridLevels: 2,
		OrderVolume: decimal.NewFromInt(1), Leverage: 1, CreatedAt: time.Now().UTC().Truncate(time.Second),
	}))
	started := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, runs.Start(ctx, repository.BotRun{ID: "run", ConfigID: "cfg", Status: repository.RunRunning, StartedAt: started}))
	require.NoError(t, runs.AddFill(ctx, repository.BotFill{
		ID: "f1", RunID: "run", Side: "buy", Level: 0, Price: decimal.NewFromInt(1), Volume: decimal.NewFromInt(1), FilledAt: started,
	}))

	fills, err := runs.Fills(ctx, "run")
	require.NoError(t, err)
	require.Len(t, fills, 1)
	require.Equal(t, "buy", fills[0].Side)

	n, err := runs.MarkInterrupted(ctx, started.Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	run, err := runs.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, "run", run.ID)
	require.Equal(t, repository.RunFailed, run.Status)
	require.NotNil(t, run.StoppedAt)
}

func TestSettingsSetOverwrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewSettingsRepo(openSeeded(t))

	empty, err := repo.All(ctx)
	require.NoError(t, err)
	require.Empty(t, empty)

	require.NoError(t, repo.Set(ctx, "risk.leverage", "10"))
	require.NoError(t, repo.Set(ctx, "risk.leverage", "12"))
	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"risk.leverage": "12"}, all)
}

func TestLatestRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openSeeded(t)
	runs := repository.NewRunRepo(db)

	none, err := runs.Latest(ctx)
	require.NoError(t, err)
	require.Nil(t, none)

	require.NoError(t, repository.NewBotConfigRepo(db).Save(ctx, repository.BotConfig{
		ID: "cfg", ExchangeID: database.ExchangeID("OKX"), MarketID: database.MarketID("OKX", "BTC-USDT-SWAP"),
		LowerPrice: decimal.NewFromInt(1), UpperPrice: decimal.NewFromInt(2), GridLevels: 2,
		OrderVolume: decimal.NewFromInt(1), Leverage: 1, CreatedAt: time.Now().UTC(),
	}))
	t0 := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, runs.Start(ctx, repository.BotRun{ID: "old", ConfigID: "cfg", Status: repository.RunStopped, StartedAt: t0}))
	require.NoError(t, runs.Start(ctx, repository.BotRun{ID: "new", ConfigID: "cfg", Status: repository.RunRunning, StartedAt: t0.Add(time.Minute)}))

	latest, err := runs.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, "new", latest.ID)
}
