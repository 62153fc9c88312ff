// Package assistant – config.go defines all configuration structures for
// the ChatClaw assistant.
package assistant

import (
	"github.com/jholhewres/chatclaw/pkg/chatclaw/channels/telegram"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/websearch"
)

// Config holds all assistant configuration.
type Config struct {
	// Name is the assistant name shown in responses.
	Name string `yaml:"name"`

	// Model is the LLM model to use (e.g. "gpt-4o-mini").
	Model string `yaml:"model"`

	// Language is the preferred response language (e.g. "en").
	Language string `yaml:"language"`

	// API configures the LLM provider endpoint.
	API APIConfig `yaml:"api"`

	// Telegram configures the Telegram transport.
	Telegram telegram.Config `yaml:"telegram"`

	// WebSearch configures the web search tool.
	WebSearch websearch.Config `yaml:"web_search"`

	// Weather configures the weather command.
	Weather WeatherConfig `yaml:"weather"`

	// History configures the transcript store.
	History HistoryConfig `yaml:"history"`

	// Confirm configures pending-confirmation lifetime.
	Confirm ConfirmConfig `yaml:"confirm"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the LLM provider endpoint.
type APIConfig struct {
	// BaseURL is the OpenAI-compatible API base URL.
	BaseURL string `yaml:"base_url"`

	// APIKey is the API key. Prefer leaving this empty and supplying the
	// key via OPENAI_API_KEY, a .env file, or the OS keyring.
	APIKey string `yaml:"api_key"`
}

// WeatherConfig configures the OpenWeatherMap-backed weather command.
type WeatherConfig struct {
	// APIKey is the OpenWeatherMap API key. Empty disables /weather.
	APIKey string `yaml:"api_key"`
}

// HistoryConfig configures the transcript store.
type HistoryConfig struct {
	// Path is the SQLite database file for transcripts.
	Path string `yaml:"path"`

	// ContextTurns is how many recent turns are folded into each
	// generation call.
	ContextTurns int `yaml:"context_turns"`
}

// ConfirmConfig configures pending-confirmation eviction. An unanswered
// confirmation older than the TTL is swept; 0 disables eviction entirely.
type ConfirmConfig struct {
	// TTLMinutes is how long an unanswered confirmation stays valid.
	TTLMinutes int `yaml:"ttl_minutes"`

	// SweepSchedule is the cron spec for the eviction sweep.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:      "ChatClaw",
		Model:     "gpt-4o-mini",
		Language:  "en",
		API:       APIConfig{BaseURL: "https://api.openai.com/v1"},
		Telegram:  telegram.DefaultConfig(),
		WebSearch: websearch.DefaultConfig(),
		History: HistoryConfig{
			Path:         "chatclaw.db",
			ContextTurns: 10,
		},
		Confirm: ConfirmConfig{
			TTLMinutes:    30,
			SweepSchedule: "@every 10m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
