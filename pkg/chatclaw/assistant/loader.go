// Package assistant – loader.go handles loading configuration from YAML
// files with credential resolution via environment variables, .env files,
// and the OS keyring.
package assistant

import (
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches environment variable references in config values:
//   - ${VAR_NAME}          - simple variable
//   - ${VAR_NAME:-default} - default value if not set
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// LoadConfigFromFile reads and parses a YAML configuration file.
// Automatically loads .env files and expands environment variables.
func LoadConfigFromFile(path string) (*Config, error) {
	// Load .env files (silently ignore if not found). godotenv does NOT
	// overwrite variables already set in the environment.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg, err := ParseConfig([]byte(expanded))
	if err != nil {
		return nil, err
	}

	resolveSecrets(cfg)
	return cfg, nil
}

// ParseConfig parses YAML bytes into a Config.
// Starts with defaults and overlays values from the YAML.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// SaveConfigToFile writes a Config as YAML to the specified path. Secrets
// are replaced with environment variable references so the file stays safe
// to commit.
func SaveConfigToFile(cfg *Config, path string) error {
	sanitized := *cfg
	sanitized.API.APIKey = sanitizeSecret(cfg.API.APIKey, "OPENAI_API_KEY")
	sanitized.Telegram.Token = sanitizeSecret(cfg.Telegram.Token, "BOT_TOKEN")
	sanitized.WebSearch.GoogleAPIKey = sanitizeSecret(cfg.WebSearch.GoogleAPIKey, "GOOGLE_API_KEY")
	sanitized.Weather.APIKey = sanitizeSecret(cfg.Weather.APIKey, "OPENWEATHERMAP_API_KEY")

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} references with values
// from the environment.
func expandEnvVars(data string) string {
	return envVarPattern.ReplaceAllStringFunc(data, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[2]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return def
	})
}

// ResolveSecrets fills a config's credential fields without a config file:
// .env is loaded first, then each secret resolves env var → OS keyring.
func ResolveSecrets(cfg *Config) {
	_ = godotenv.Load()
	resolveSecrets(cfg)
}

// resolveSecrets fills empty credential fields from the environment first
// and the OS keyring second. Config values already set win.
func resolveSecrets(cfg *Config) {
	cfg.Telegram.Token = resolveSecret(cfg.Telegram.Token, "BOT_TOKEN", keyringBotToken)
	cfg.API.APIKey = resolveSecret(cfg.API.APIKey, "OPENAI_API_KEY", keyringAPIKey)
	cfg.WebSearch.GoogleAPIKey = resolveSecret(cfg.WebSearch.GoogleAPIKey, "GOOGLE_API_KEY", keyringGoogleKey)
	if cfg.WebSearch.GoogleCXID == "" {
		cfg.WebSearch.GoogleCXID = os.Getenv("GOOGLE_CX_ID")
	}
	cfg.Weather.APIKey = resolveSecret(cfg.Weather.APIKey, "OPENWEATHERMAP_API_KEY", keyringWeatherKey)
}

// resolveSecret resolves one secret: config value → env var → OS keyring.
func resolveSecret(current, envName, keyringName string) string {
	if current != "" {
		return current
	}
	if val := os.Getenv(envName); val != "" {
		return val
	}
	return GetKeyring(keyringName)
}

// sanitizeSecret replaces a non-empty secret with an env var reference.
func sanitizeSecret(value, envName string) string {
	if value == "" {
		return ""
	}
	return "${" + envName + "}"
}
