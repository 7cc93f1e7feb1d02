package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type StoreBackend string

const (
	StoreFile   StoreBackend = "file"
	StoreSQLite StoreBackend = "sqlite"
	StoreMemory StoreBackend = "memory"
)

type Config struct {
	HTTPPort      int    `env:"HTTP_PORT" envDefault:"8080"`
	SpreadsheetID string `env:"SPREADSHEET_ID" envDefault:"1v9_...x8A1"`

	// Storage
	StoreBackend    StoreBackend `env:"STORE_BACKEND" envDefault:"file"`
	StoreFilePath   string       `env:"STORE_FILE_PATH" envDefault:"data/sheet_tracker.json"`
	StoreSQLitePath string       `env:"STORE_SQLITE_PATH" envDefault:"data/sheet_tracker.db"`
	RunsFilePath    string       `env:"RUNS_FILE_PATH" envDefault:"data/runs.jsonl"`

	// LLM settings
	LLMProvider      LLMProvider   `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL"`
	OpenAIModel      string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	YandexOAuthToken string        `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string        `env:"YANDEX_FOLDER_ID"`
	SummaryTimeout   time.Duration `env:"SUMMARY_TIMEOUT" envDefault:"30s"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Prompts
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH"`

	// Scheduled runs, standard 5-field cron spec
	AutoRunSchedule string `env:"AUTO_RUN_SCHEDULE"`

	// Telegram (optional)
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID"`

	// MCP server: SSE on this port when set, stdio otherwise
	MCPHTTPPort string `env:"MCP_HTTP_PORT"`
}

func New() *Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}

// Parse reads the config from the environment without exiting on error.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
