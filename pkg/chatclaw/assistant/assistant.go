// Package assistant implements the ChatClaw orchestrator: it receives
// inbound messages and button clicks from a transport, drives the
// confirmation-gated search flow, calls the generation and search adapters,
// persists conversation turns, and replies through the MarkdownV2 escaper.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/channels"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/history"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/websearch"
)

// Choice tags delivered back by the confirmation buttons.
const (
	callbackConfirmSearch = "confirm_search"
	callbackDeclineSearch = "decline_search"
)

// responseInstruction is the base system instruction for answer generation.
const responseInstruction = `You are a helpful assistant answering questions in a chat.
Write plain text. You may use *asterisks* for bold and _underscores_ for italic emphasis, and nothing else.
Answer in the user's language.`

// keywordInstruction asks for the short topic keyword shown in the
// confirmation prompt.
const keywordInstruction = `Extract a short topic keyword from the user's question.
Respond in the user's language, with at most 30 characters, and output the keyword only.`

// Generator produces text from a system instruction and a user turn.
// Implementations return a diagnostic string on failure, never an error.
type Generator interface {
	Respond(ctx context.Context, systemPrompt, userPrompt string) string
	RespondWithHistory(ctx context.Context, systemPrompt string, turns []history.Turn, userPrompt string) string
}

// Searcher performs a web search and returns page-backed results.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) []websearch.Result
}

// HistoryStore persists per-user conversation transcripts.
type HistoryStore interface {
	Record(userID int64, handle string, sender history.Sender, text string) error
	Load(userID int64, handle string) ([]history.Turn, error)
	Clear(userID int64, handle string) error
}

// Assistant wires the transport, adapters, and stores together.
type Assistant struct {
	cfg       *Config
	logger    *slog.Logger
	transport channels.Transport
	llm       Generator
	search    Searcher
	store     HistoryStore
	weather   *WeatherClient
	sessions  *ConfirmationSessions
	sweeper   *cron.Cron
}

// New creates an assistant from its collaborators.
func New(cfg *Config, logger *slog.Logger, transport channels.Transport, llm Generator, search Searcher, store HistoryStore) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Assistant{
		cfg:       cfg,
		logger:    logger.With("component", "assistant"),
		transport: transport,
		llm:       llm,
		search:    search,
		store:     store,
		sessions:  NewConfirmationSessions(),
	}
	if cfg.Weather.APIKey != "" {
		a.weather = NewWeatherClient(cfg.Weather, logger)
	}
	return a
}

// Start connects the transport and processes inbound events until the
// context is cancelled. Each event is handled in its own goroutine so a
// slow backend call stalls only that one conversation.
func (a *Assistant) Start(ctx context.Context) error {
	if err := a.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connecting transport: %w", err)
	}

	a.startSweeper()

	a.logger.Info("assistant started", "transport", a.transport.Name())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-a.transport.Receive():
			if !ok {
				return nil
			}
			go a.handleEvent(ctx, ev)
		}
	}
}

// Stop shuts down the sweeper and disconnects the transport.
func (a *Assistant) Stop() {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if err := a.transport.Disconnect(); err != nil {
		a.logger.Warn("transport disconnect failed", "error", err)
	}
	a.logger.Info("assistant stopped")
}

// startSweeper schedules eviction of unanswered confirmations. TTL 0
// disables eviction entirely.
func (a *Assistant) startSweeper() {
	if a.cfg.Confirm.TTLMinutes <= 0 {
		return
	}
	ttl := time.Duration(a.cfg.Confirm.TTLMinutes) * time.Minute
	schedule := a.cfg.Confirm.SweepSchedule
	if schedule == "" {
		schedule = "@every 10m"
	}

	a.sweeper = cron.New()
	_, err := a.sweeper.AddFunc(schedule, func() {
		if n := a.sessions.EvictOlderThan(ttl); n > 0 {
			a.logger.Info("evicted stale confirmations", "count", n)
		}
	})
	if err != nil {
		a.logger.Warn("failed to schedule confirmation sweep", "error", err)
		return
	}
	a.sweeper.Start()
}

// handleEvent routes one inbound event through the state machine.
func (a *Assistant) handleEvent(ctx context.Context, ev *channels.Event) {
	logger := a.logger.With("trace", uuid.NewString()[:8], "user", ev.UserID, "handle", ev.Handle)

	switch ev.Type {
	case channels.EventCallback:
		a.handleCallback(ctx, ev, logger)
	case channels.EventMessage:
		a.handleMessage(ctx, ev, logger)
	default:
		logger.Warn("unknown event type", "type", ev.Type)
	}
}

// handleMessage dispatches commands; bare text is treated as a question.
func (a *Assistant) handleMessage(ctx context.Context, ev *channels.Event, logger *slog.Logger) {
	name, args := parseCommand(ev.Content)

	switch name {
	case "start":
		a.handleStart(ctx, ev)
	case "help":
		a.handleHelp(ctx, ev)
	case "weather":
		a.handleWeather(ctx, ev, args, logger)
	case "empty":
		a.handleEmpty(ctx, ev, logger)
	case "gpt", "":
		a.handleQuestion(ctx, ev, args, logger)
	default:
		a.handleUnknown(ctx, ev, logger)
	}
}

// parseCommand splits "/cmd rest" into a lowercase command name and its
// argument string. Non-command text returns ("", text). A "/cmd@botname"
// suffix is stripped.
func parseCommand(content string) (name, args string) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "/") {
		return "", content
	}
	rest := content[1:]
	if i := strings.IndexAny(rest, " \t\n"); i >= 0 {
		name, args = rest[:i], strings.TrimSpace(rest[i+1:])
	} else {
		name = rest
	}
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), args
}

// handleQuestion opens a confirmation session: extract a topic keyword,
// store the pending question, and ask whether to search. A fresh question
// silently discards any previous pending one.
func (a *Assistant) handleQuestion(ctx context.Context, ev *channels.Event, question string, logger *slog.Logger) {
	if strings.TrimSpace(question) == "" {
		logger.Warn("empty question received")
		a.reply(ctx, ev.ChatID, "⚠️ Please provide a valid question.")
		return
	}

	logger.Info("question received", "question", truncate(question, 80))

	keyword := a.llm.Respond(ctx, keywordInstruction, question)
	logger.Info("keyword extracted", "keyword", keyword)

	a.sessions.Put(ev.UserID, question)

	text := EscapeMarkdownV2(fmt.Sprintf("🔍 Search for `%s`?", keyword))
	err := a.transport.SendChoicePrompt(ctx, ev.ChatID, text, []channels.Choice{
		{Label: "🔎 Yes", Data: callbackConfirmSearch},
		{Label: "❌ No", Data: callbackDeclineSearch},
	})
	if err != nil {
		logger.Error("failed to send choice prompt", "error", err)
	}
}

// handleCallback closes the confirmation session. The callback is
// acknowledged before any adapter work so the sender's client stops
// showing a progress indicator.
func (a *Assistant) handleCallback(ctx context.Context, ev *channels.Event, logger *slog.Logger) {
	if err := a.transport.AcknowledgeCallback(ctx, ev.CallbackID); err != nil {
		logger.Warn("failed to acknowledge callback", "error", err)
	}

	// Unknown tags must not consume the pending question.
	if ev.CallbackData != callbackConfirmSearch && ev.CallbackData != callbackDeclineSearch {
		logger.Warn("unknown callback data", "data", ev.CallbackData)
		return
	}

	question, ok := a.sessions.Take(ev.UserID)
	if !ok {
		logger.Warn("callback without pending question", "data", ev.CallbackData)
		a.reply(ctx, ev.ChatID, "⚠️ That question has already been answered or expired. Please ask again.")
		return
	}

	logger.Info("confirmation received", "data", ev.CallbackData)

	var answer string
	if ev.CallbackData == callbackConfirmSearch {
		answer = a.answerWithSearch(ctx, ev, question, logger)
	} else {
		answer = a.answerDirect(ctx, ev, question)
	}

	// Both turns are durable before the reply goes out. Storage failures
	// are logged inside the store; the conversation continues either way.
	_ = a.store.Record(ev.UserID, ev.Handle, history.SenderUser, question)
	_ = a.store.Record(ev.UserID, ev.Handle, history.SenderAssistant, answer)

	a.reply(ctx, ev.ChatID, answer)
}

// answerWithSearch runs the search tool and folds the first successful
// result into the generation call. A failed or empty search folds the
// search diagnostic into a no-context instruction instead; the diagnostic
// reaches the model, never the user verbatim.
func (a *Assistant) answerWithSearch(ctx context.Context, ev *channels.Event, question string, logger *slog.Logger) string {
	results := a.search.Search(ctx, "Explain about "+question, a.cfg.WebSearch.MaxResults)

	if len(results) > 0 && results[0].Status == websearch.StatusSuccess {
		systemPrompt := fmt.Sprintf(`%s
Explain about the following contents:
<Content>%s</Content>

Think step-by-step before responding.`, responseInstruction, results[0].Content)

		answer := a.llm.RespondWithHistory(ctx, systemPrompt, a.recentTurns(ev), question)
		return "🔍 *Search result*\n" + answer
	}

	diagnostic := "no results"
	if len(results) > 0 {
		diagnostic = results[0].Content
	}
	logger.Warn("search yielded no usable content", "diagnostic", diagnostic)

	systemPrompt := fmt.Sprintf(`%s
Web search did not provide context (%s). Answer from your own knowledge.
Think step-by-step before responding.`, responseInstruction, diagnostic)
	return a.llm.RespondWithHistory(ctx, systemPrompt, a.recentTurns(ev), question)
}

// answerDirect asks the LLM to answer from the question and history alone.
func (a *Assistant) answerDirect(ctx context.Context, ev *channels.Event, question string) string {
	systemPrompt := responseInstruction + "\nThink step-by-step before responding."
	return a.llm.RespondWithHistory(ctx, systemPrompt, a.recentTurns(ev), question)
}

// recentTurns loads the user's transcript and keeps the most recent
// context window. Load failures degrade to an empty context.
func (a *Assistant) recentTurns(ev *channels.Event) []history.Turn {
	turns, err := a.store.Load(ev.UserID, ev.Handle)
	if err != nil {
		a.logger.Warn("failed to load history", "user", ev.UserID, "error", err)
		return nil
	}
	window := a.cfg.History.ContextTurns
	if window <= 0 {
		window = 10
	}
	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	return turns
}

// reply escapes and sends a text message, logging send failures.
func (a *Assistant) reply(ctx context.Context, chatID, text string) {
	if err := a.transport.SendText(ctx, chatID, EscapeMarkdownV2(text)); err != nil {
		a.logger.Error("failed to send reply", "chat", chatID, "error", err)
	}
}
