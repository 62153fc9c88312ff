package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/assistant"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/channels/telegram"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/history"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/websearch"
)

// botMenu is the command menu registered with Telegram on connect.
var botMenu = []telegram.BotCommand{
	{Command: "help", Description: "Show available commands"},
	{Command: "gpt", Description: "Ask a question"},
	{Command: "weather", Description: "Current weather for a city"},
	{Command: "empty", Description: "Clear your conversation history"},
}

// newServeCmd creates the `chatclaw serve` command that starts the bot.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the bot and process Telegram messages",
		Long: `Start ChatClaw as a long-running process, polling Telegram for
messages and button clicks.

Examples:
  chatclaw serve
  chatclaw serve --config ./config.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// ── Configure logger ──
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logLevel := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("no Telegram bot token configured; run `chatclaw setup` or set BOT_TOKEN")
	}
	if cfg.API.APIKey == "" {
		return fmt.Errorf("no LLM API key configured; run `chatclaw setup` or set OPENAI_API_KEY")
	}

	// ── Build collaborators ──
	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer store.Close()

	llm := assistant.NewLLMClient(cfg, logger)
	search := websearch.New(cfg.WebSearch, logger)

	tg := telegram.New(cfg.Telegram, logger)
	tg.SetCommands(botMenu)

	bot := assistant.New(cfg, logger, tg, llm, search, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Start(ctx)
	}()

	logger.Info("ChatClaw running. Press Ctrl+C to stop.",
		"name", cfg.Name,
		"model", cfg.Model,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("assistant failed: %w", err)
		}
		return nil
	case <-sigChan:
	}

	logger.Info("shutdown signal received, stopping...")
	cancel()

	done := make(chan struct{})
	go func() {
		bot.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}

// resolveConfig loads configuration from the --config flag, falling back
// to config.yaml in the working directory, then to built-in defaults.
func resolveConfig(cmd *cobra.Command) (*assistant.Config, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	if configPath != "" {
		cfg, err := assistant.LoadConfigFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		cfg, err := assistant.LoadConfigFromFile("config.yaml")
		if err != nil {
			return nil, fmt.Errorf("loading config from config.yaml: %w", err)
		}
		slog.Info("config loaded", "path", "config.yaml")
		return cfg, nil
	}

	// No config file. Defaults plus env/keyring secrets still make a
	// runnable bot.
	cfg := assistant.DefaultConfig()
	assistant.ResolveSecrets(cfg)
	return cfg, nil
}
