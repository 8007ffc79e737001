package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/jask/derivbot/internal/bot"
	"github.com/jask/derivbot/internal/config"
	"github.com/jask/derivbot/internal/database"
	"github.com/jask/derivbot/internal/database/repository"
	"github.com/jask/derivbot/internal/feed"
	"github.com/jask/derivbot/internal/llm"
	"github.com/jask/derivbot/internal/logging"
	"github.com/jask/derivbot/internal/prefs"
	"github.com/jask/derivbot/internal/secrets"
	"github.com/jask/derivbot/internal/service"
	"github.com/jask/derivbot/internal/tui"
	"github.com/jask/derivbot/internal/viewmodel"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if len(os.Args) > 1 {
		if err := subcommand(cfg, os.Args[1:]); err != nil {
			log.Fatalf("%s: %v", os.Args[1], err)
		}
		return
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer closer.Close()

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := database.RunMigrations(cfg.Database.Path); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	if err := database.SeedDefaults(ctx, db); err != nil {
		log.Fatalf("seed defaults: %v", err)
	}

	// user defined exchanges and markets
	if path, err := prefs.CatalogPath(); err == nil {
		extra, err := prefs.LoadCatalog(path)
		if err != nil {
			log.Fatalf("catalog: %v", err)
		}
		if err := database.UpsertCatalog(ctx, db, extra, 100); err != nil {
			log.Fatalf("catalog: %v", err)
		}
	}

	// repositories
	exRepo := repository.NewExchangeRepo(db)
	mkRepo := repository.NewMarketRepo(db)
	chatRepo := repository.NewChatRepo(db)
	cfgRepo := repository.NewBotConfigRepo(db)
	settingsRepo := repository.NewSettingsRepo(db)
	runRepo := repository.NewRunRepo(db)

	if n, err := runRepo.MarkInterrupted(ctx, time.Now().UTC()); err != nil {
		logger.WithError(err).Warn("mark interrupted runs")
	} else if n > 0 {
		logger.WithField("runs", n).Info("marked interrupted runs as failed")
	}

	provider := llmProvider(cfg.LLM, resolveAPIKey(cfg.LLM), logger)

	catalog := &service.CatalogService{Exchanges: exRepo, Markets: mkRepo}
	assistant := &service.AssistantService{
		Chat:     chatRepo,
		Provider: provider,
		Log:      logger,
		UserName: cfg.UI.UserName,
		BotName:  cfg.UI.AssistantName,
	}
	configurator := &service.ConfiguratorService{Catalog: catalog, Configs: cfgRepo, ExportDir: cfg.Bot.ExportDir, Log: logger}
	risk := &service.RiskSettingsService{Settings: settingsRepo}

	runner := bot.NewPaperRunner(priceFeed(cfg.Bot, logger), runRepo, cfg.Bot.TickInterval, logger)

	vm := viewmodel.New(viewmodel.Deps{
		Chat:         assistant,
		Catalog:      catalog,
		Configurator: configurator,
		Risk:         risk,
		Runner:       runner,
		Runs:         runRepo,
		Log:          logger,
		HistoryLimit: cfg.Bot.HistoryLimit,
		UserName:     cfg.UI.UserName,
	})
	defer vm.Close()

	if err := vm.Load(ctx); err != nil {
		log.Fatalf("load: %v", err)
	}

	logger.WithFields(logrus.Fields{"provider": cfg.LLM.Provider, "feed": cfg.Bot.Feed}).Info("derivbot starting")
	p := tea.NewProgram(tui.NewScreenView(ctx, vm), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

func llmProvider(cfg config.LLMConfig, apiKey string, logger logrus.FieldLogger) llm.Provider {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		if apiKey == "" {
			logger.Warn("openai selected without an API key; using the offline assistant")
			return llm.NewHeuristicProvider()
		}
		return llm.NewOpenAIProvider(apiKey, cfg.Model, cfg.BaseURL)
	default:
		return llm.NewHeuristicProvider()
	}
}

func priceFeed(cfg config.BotConfig, logger logrus.FieldLogger) feed.Feed {
	if cfg.Feed == "websocket" {
		return feed.NewWebsocket(cfg.FeedURL, logger)
	}
	return feed.NewSimulated(500*time.Millisecond, 0.002, time.Now().UnixNano())
}

// resolveAPIKey checks the environment, then the secrets store, then the
// config file.
func resolveAPIKey(cfg config.LLMConfig) string {
	env := strings.TrimSpace(cfg.APIKeyEnv)
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	if store, err := secrets.OpenDefault(); err == nil {
		if k, err := store.Get(providerName(cfg)); err == nil {
			return k
		}
	}
	return strings.TrimSpace(cfg.APIKey)
}

func providerName(cfg config.LLMConfig) string {
	return strings.ToLower(strings.TrimSpace(cfg.Provider))
}

// subcommand handles "init-config", which writes the effective config to
// disk, and "set-key <provider>", which stores an API key read from stdin.
func subcommand(cfg config.Config, args []string) error {
	switch args[0] {
	case "init-config":
		return config.Save(cfg)
	case "set-key":
		if len(args) < 2 {
			return fmt.Errorf("usage: derivbot set-key <provider>")
		}
		return setKey(args[1])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func setKey(provider string) error {
	fmt.Fprintf(os.Stderr, "%s API key: ", provider)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return err
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return fmt.Errorf("empty key")
	}
	store, err := secrets.OpenDefault()
	if err != nil {
		return err
	}
	if err := store.Put(strings.ToLower(provider), key); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "saved")
	return nil
}
