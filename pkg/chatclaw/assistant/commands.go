// Package assistant – commands.go implements the simple slash commands
// that do not go through the confirmation flow.
package assistant

import (
	"context"
	"log/slog"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/channels"
)

const helpText = `*Available commands*
/gpt <question> - ask a question (bare text works too)
/weather <city> - current weather for a city
/empty - clear your conversation history
/help - show this message`

func (a *Assistant) handleStart(ctx context.Context, ev *channels.Event) {
	a.reply(ctx, ev.ChatID, "*I'm a bot, please talk to me!*")
}

func (a *Assistant) handleHelp(ctx context.Context, ev *channels.Event) {
	a.reply(ctx, ev.ChatID, helpText)
}

func (a *Assistant) handleUnknown(ctx context.Context, ev *channels.Event, logger *slog.Logger) {
	logger.Info("unknown command", "content", truncate(ev.Content, 40))
	a.reply(ctx, ev.ChatID, "*Sorry, I didn't understand that command.*")
}

// handleEmpty clears the user's stored transcript. Any pending
// confirmation is dropped as well so a stale button cannot answer
// against an emptied history.
func (a *Assistant) handleEmpty(ctx context.Context, ev *channels.Event, logger *slog.Logger) {
	a.sessions.Take(ev.UserID)

	if err := a.store.Clear(ev.UserID, ev.Handle); err != nil {
		logger.Error("failed to clear history", "error", err)
		a.reply(ctx, ev.ChatID, "⚠️ Could not clear your history. Please try again.")
		return
	}
	logger.Info("history cleared")
	a.reply(ctx, ev.ChatID, "🗑 Your conversation history has been cleared.")
}

// handleWeather answers with current conditions for a city.
func (a *Assistant) handleWeather(ctx context.Context, ev *channels.Event, city string, logger *slog.Logger) {
	if a.weather == nil {
		a.reply(ctx, ev.ChatID, "⚠️ Weather lookups are not configured.")
		return
	}
	if city == "" {
		a.reply(ctx, ev.ChatID, "⚠️ Please provide a city, e.g. /weather Seoul")
		return
	}

	report, err := a.weather.Current(ctx, city)
	if err != nil {
		logger.Warn("weather lookup failed", "city", city, "error", err)
		a.reply(ctx, ev.ChatID, "⚠️ Could not fetch the weather for that city.")
		return
	}
	a.reply(ctx, ev.ChatID, report.Format())
}
