// Package assistant – keyring.go provides credential storage using the
// operating system's native keyring (Linux: Secret Service/GNOME Keyring,
// macOS: Keychain, Windows: Credential Manager).
//
// Priority for resolving secrets:
//  1. config.yaml value
//  2. Environment variable (BOT_TOKEN, OPENAI_API_KEY, etc.)
//  3. .env file (loaded by godotenv)
//  4. OS keyring
package assistant

import "github.com/zalando/go-keyring"

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "chatclaw"

	keyringBotToken   = "bot_token"
	keyringAPIKey     = "api_key"
	keyringGoogleKey  = "google_api_key"
	keyringWeatherKey = "weather_api_key"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring.
// Returns empty string if not found.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable checks if the OS keyring is accessible.
func KeyringAvailable() bool {
	testKey := "__chatclaw_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}

// KeyringSecret pairs a setup prompt label with its keyring key name.
type KeyringSecret struct {
	Label string
	Key   string
}

// KeyringSecretNames lists the secrets the setup flow can store, in
// prompt order.
var KeyringSecretNames = []KeyringSecret{
	{"Telegram bot token", keyringBotToken},
	{"OpenAI API key", keyringAPIKey},
	{"Google search API key", keyringGoogleKey},
	{"OpenWeatherMap API key", keyringWeatherKey},
}
