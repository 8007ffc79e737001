package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Log      LogConfig      `mapstructure:"log"`
	Bot      BotConfig      `mapstructure:"bot"`
	UI       UIConfig       `mapstructure:"ui"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LLMConfig holds assistant provider settings.
type LLMConfig struct {
	Provider  string `mapstructure:"provider"`
	APIKeyEnv string `mapstructure:"api_key_env"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
}

// LogConfig controls the rotating log file. The TUI owns stdout so logs never go there.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// BotConfig holds paper runner and export settings.
type BotConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	Feed         string        `mapstructure:"feed"`
	FeedURL      string        `mapstructure:"feed_url"`
	ExportDir    string        `mapstructure:"export_dir"`
	HistoryLimit int           `mapstructure:"history_limit"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	AssistantName string `mapstructure:"assistant_name"`
	UserName      string `mapstructure:"user_name"`
}

// Load reads configuration from .env, file and env. Env var overrides use prefix DERIVBOT_.
func Load() (Config, error) {
	// a missing .env is the common case
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if cfgPath := os.Getenv("DERIVBOT_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(configDir())
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("DERIVBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, c.Validate()
}

// Validate rejects settings the runtime cannot work with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("config: database.path is required")
	}
	if c.Bot.TickInterval <= 0 {
		return fmt.Errorf("config: bot.tick_interval must be positive, got %s", c.Bot.TickInterval)
	}
	if c.Bot.HistoryLimit <= 0 {
		return fmt.Errorf("config: bot.history_limit must be positive, got %d", c.Bot.HistoryLimit)
	}
	switch strings.ToLower(c.Bot.Feed) {
	case "simulated":
	case "websocket":
		if strings.TrimSpace(c.Bot.FeedURL) == "" {
			return fmt.Errorf("config: bot.feed_url is required for the websocket feed")
		}
	default:
		return fmt.Errorf("config: unknown bot.feed %q", c.Bot.Feed)
	}
	return nil
}

// Save writes the provided config to disk, creating the config directory if needed.
// The API key is stored in plain text; prefer env vars or the secrets store.
func Save(cfg Config) error {
	path := os.Getenv("DERIVBOT_CONFIG")
	if path == "" {
		path = filepath.Join(configDir(), "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("llm.provider", cfg.LLM.Provider)
	v.Set("llm.api_key_env", cfg.LLM.APIKeyEnv)
	v.Set("llm.api_key", cfg.LLM.APIKey)
	v.Set("llm.model", cfg.LLM.Model)
	v.Set("llm.base_url", cfg.LLM.BaseURL)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.file", cfg.Log.File)
	v.Set("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.Set("log.max_backups", cfg.Log.MaxBackups)
	v.Set("log.max_age_days", cfg.Log.MaxAgeDays)
	v.Set("log.compress", cfg.Log.Compress)
	v.Set("bot.tick_interval", cfg.Bot.TickInterval.String())
	v.Set("bot.feed", cfg.Bot.Feed)
	v.Set("bot.feed_url", cfg.Bot.FeedURL)
	v.Set("bot.export_dir", cfg.Bot.ExportDir)
	v.Set("bot.history_limit", cfg.Bot.HistoryLimit)
	v.Set("ui.assistant_name", cfg.UI.AssistantName)
	v.Set("ui.user_name", cfg.UI.UserName)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	dataDir := filepath.Join(os.Getenv("HOME"), ".local", "share", "derivbot")
	v.SetDefault("database.path", filepath.Join(dataDir, "derivbot.db"))
	v.SetDefault("llm.provider", "heuristic")
	v.SetDefault("llm.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dataDir, "derivbot.log"))
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("log.compress", false)
	v.SetDefault("bot.tick_interval", "2s")
	v.SetDefault("bot.feed", "simulated")
	v.SetDefault("bot.feed_url", "")
	v.SetDefault("bot.export_dir", filepath.Join(dataDir, "configs"))
	v.SetDefault("bot.history_limit", 200)
	v.SetDefault("ui.assistant_name", "Bot")
	v.SetDefault("ui.user_name", "You")
}

func configDir() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "derivbot")
}
