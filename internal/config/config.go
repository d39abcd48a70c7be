package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	DatabaseURL string
	LogLevel    string
	NatsURL     string
	NatsToken   string
	CORSOrigins []string

	LLMBaseURL       string
	OpenAIAPIKey     string
	Model            string
	ChatTemperature  float64
	ChatTopP         float64
	SummaryTemp      float64
	SummaryTopP      float64
	MaxContextTokens int
	LLMRatePerSecond float64

	SummaryChunkTokens int
	SummaryConcurrency int

	NotionAPIKey       string
	NotionParentPageID string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the environment win.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	return Config{
		Port:        envInt("SCRIBE_PORT", 8760),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		CORSOrigins: envList("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),

		LLMBaseURL:       envStr("LLM_BASE_URL", "http://localhost:4000/v1"),
		OpenAIAPIKey:     envStr("OPENAI_API_KEY", ""),
		Model:            envStr("SCRIBE_MODEL", "gpt-4o-mini"),
		ChatTemperature:  envFloat("CHAT_TEMPERATURE", 0.7),
		ChatTopP:         envFloat("CHAT_TOP_P", 1.0),
		SummaryTemp:      envFloat("SUMMARY_TEMPERATURE", 0.3),
		SummaryTopP:      envFloat("SUMMARY_TOP_P", 1.0),
		MaxContextTokens: envInt("MAX_CONTEXT_TOKENS", 5000),
		LLMRatePerSecond: envFloat("LLM_REQUESTS_PER_SECOND", 0),

		SummaryChunkTokens: envInt("SUMMARY_CHUNK_TOKENS", 3000),
		SummaryConcurrency: envInt("SUMMARY_CONCURRENCY", 1),

		NotionAPIKey:       envStr("NOTION_API_KEY", ""),
		NotionParentPageID: envStr("NOTION_PARENT_PAGE_ID", ""),
	}
}

// Validate reports every required setting that is missing.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	return errors.Join(errs...)
}

// NotionEnabled reports whether both Notion settings are present.
func (c Config) NotionEnabled() bool {
	return c.NotionAPIKey != "" && c.NotionParentPageID != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping empty entries.
func envList(key, fallback string) []string {
	var out []string
	for _, item := range strings.Split(envStr(key, fallback), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
