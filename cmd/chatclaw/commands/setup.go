package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/assistant"
)

// newSetupCmd creates the `chatclaw setup` command that stores credentials
// in the OS keyring and writes a starter config.yaml.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Store credentials in the OS keyring and write config.yaml",
		Long: `Interactive first-run setup. Secrets are read with terminal echo
disabled and stored in the OS keyring (GNOME Keyring, macOS Keychain,
Windows Credential Manager). The written config.yaml contains no secrets.`,
		RunE: runSetup,
	}
}

func runSetup(cmd *cobra.Command, _ []string) error {
	fmt.Println("ChatClaw setup")
	fmt.Println()

	if !assistant.KeyringAvailable() {
		fmt.Println("⚠️  OS keyring is not available. Secrets can still be supplied")
		fmt.Println("   via environment variables or a .env file:")
		fmt.Println("   BOT_TOKEN, OPENAI_API_KEY, GOOGLE_API_KEY, OPENWEATHERMAP_API_KEY")
		fmt.Println()
	} else {
		for _, secret := range assistant.KeyringSecretNames {
			value, err := promptSecret(secret.Label)
			if err != nil {
				return err
			}
			if value == "" {
				fmt.Printf("  %s: skipped\n", secret.Label)
				continue
			}
			if err := assistant.StoreKeyring(secret.Key, value); err != nil {
				return fmt.Errorf("storing %s: %w", secret.Label, err)
			}
			fmt.Printf("  %s: stored\n", secret.Label)
		}
		fmt.Println()
	}

	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	if configPath == "" {
		configPath = "config.yaml"
	}
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("%s already exists, leaving it untouched.\n", configPath)
		return nil
	}

	cfg := assistant.DefaultConfig()
	if err := assistant.SaveConfigToFile(cfg, configPath); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	fmt.Printf("Wrote %s. Run `chatclaw serve` to start the bot.\n", configPath)
	return nil
}

// promptSecret reads a secret with echo disabled. Falls back to a plain
// line read when stdin is not a terminal (piped setup).
func promptSecret(label string) (string, error) {
	fmt.Printf("  %s (enter to skip): ", label)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", label, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", label, err)
	}
	return strings.TrimSpace(line), nil
}
