// Package telegram implements the Telegram transport for ChatClaw using the
// Telegram Bot API directly via HTTP, without a bot framework.
//
// Features:
//   - Long polling for updates (getUpdates)
//   - Send text with MarkdownV2 formatting
//   - Inline keyboards for yes/no choice prompts
//   - Callback query delivery and acknowledgement (answerCallbackQuery)
//   - Bot command menu registration (setMyCommands)
//   - Group and DM support
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/channels"
)

// Config holds Telegram transport configuration.
type Config struct {
	// Token is the Telegram Bot API token (from @BotFather).
	Token string `yaml:"token"`

	// AllowedChats restricts which chat IDs the bot responds to.
	// Empty means respond to all chats.
	AllowedChats []int64 `yaml:"allowed_chats"`

	// RespondToGroups enables responding in group chats.
	RespondToGroups bool `yaml:"respond_to_groups"`

	// RespondToDMs enables responding in direct messages.
	RespondToDMs bool `yaml:"respond_to_dms"`

	// ParseMode sets the parse mode for outgoing messages.
	ParseMode string `yaml:"parse_mode"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RespondToGroups: true,
		RespondToDMs:    true,
		ParseMode:       "MarkdownV2",
	}
}

// BotCommand is a command registered in the Telegram command menu.
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// Telegram implements channels.Transport.
type Telegram struct {
	cfg    Config
	logger *slog.Logger
	client *http.Client

	// baseURL is the Telegram Bot API base URL (https://api.telegram.org/bot<token>).
	baseURL string

	// commands are registered in the bot menu at connect time.
	commands []BotCommand

	// events is the channel for inbound events forwarded to the assistant.
	events chan *channels.Event

	// connected tracks connection state.
	connected atomic.Bool

	// lastEvent tracks the last event timestamp for health.
	lastEvent atomic.Value // time.Time

	// errorCount tracks consecutive polling errors.
	errorCount atomic.Int64

	// offset is the last processed update ID + 1.
	offset int64

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Telegram transport instance.
func New(cfg Config, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = "MarkdownV2"
	}
	return &Telegram{
		cfg:     cfg,
		logger:  logger.With("component", "telegram"),
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: "https://api.telegram.org/bot" + cfg.Token,
		events:  make(chan *channels.Event, 256),
	}
}

// SetCommands sets the command menu registered at connect time.
func (t *Telegram) SetCommands(cmds []BotCommand) {
	t.commands = cmds
}

// ---------- Transport Interface ----------

// Name returns "telegram".
func (t *Telegram) Name() string { return "telegram" }

// Connect verifies the token, registers the command menu, and starts the
// long-polling loop.
func (t *Telegram) Connect(ctx context.Context) error {
	if t.cfg.Token == "" {
		return fmt.Errorf("telegram: bot token is required")
	}

	// Prevent double-connect goroutine leak.
	if t.connected.Load() {
		return nil
	}

	t.ctx, t.cancel = context.WithCancel(ctx)

	// Verify token by calling getMe.
	me, err := t.getMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: failed to verify token: %w", err)
	}
	t.logger.Info("telegram: connected", "bot", me.Username, "id", me.ID)

	if len(t.commands) > 0 {
		if _, err := t.apiCall(ctx, "setMyCommands", map[string]any{"commands": t.commands}); err != nil {
			t.logger.Warn("telegram: failed to register command menu", "error", err)
		}
	}

	t.connected.Store(true)
	go t.pollLoop()

	return nil
}

// Disconnect stops the polling loop.
func (t *Telegram) Disconnect() error {
	if t.cancel != nil {
		t.cancel()
	}
	t.connected.Store(false)
	t.logger.Info("telegram: disconnected")
	return nil
}

// SendText sends a text message to the specified chat.
func (t *Telegram) SendText(ctx context.Context, chatID, text string) error {
	return t.sendMessage(ctx, chatID, text, nil)
}

// SendChoicePrompt sends a text message with one row of inline buttons.
func (t *Telegram) SendChoicePrompt(ctx context.Context, chatID, text string, choices []channels.Choice) error {
	if len(choices) == 0 {
		return t.sendMessage(ctx, chatID, text, nil)
	}
	row := make([]map[string]any, 0, len(choices))
	for _, c := range choices {
		data := c.Data
		// Telegram caps callback_data at 64 bytes.
		if len(data) > 64 {
			data = data[:64]
		}
		row = append(row, map[string]any{"text": c.Label, "callback_data": data})
	}
	markup := map[string]any{"inline_keyboard": [][]map[string]any{row}}
	return t.sendMessage(ctx, chatID, text, markup)
}

// AcknowledgeCallback answers a callback query so the client stops showing
// its progress indicator.
func (t *Telegram) AcknowledgeCallback(ctx context.Context, callbackID string) error {
	if !t.connected.Load() {
		return channels.ErrTransportDisconnected
	}
	_, err := t.apiCall(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
	})
	return err
}

// Receive returns the inbound events channel.
func (t *Telegram) Receive() <-chan *channels.Event {
	return t.events
}

// IsConnected returns true if the bot is connected.
func (t *Telegram) IsConnected() bool { return t.connected.Load() }

// Health returns the transport health status.
func (t *Telegram) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := t.lastEvent.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{
		Connected:   t.connected.Load(),
		LastEventAt: lastAt,
		ErrorCount:  int(t.errorCount.Load()),
	}
}

// ---------- Internal Methods ----------

func (t *Telegram) sendMessage(ctx context.Context, chatID, text string, replyMarkup map[string]any) error {
	if !t.connected.Load() {
		return channels.ErrTransportDisconnected
	}
	cid, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat ID %q: %w", chatID, err)
	}

	payload := map[string]any{
		"chat_id":    cid,
		"text":       text,
		"parse_mode": t.cfg.ParseMode,
	}
	if replyMarkup != nil {
		payload["reply_markup"] = replyMarkup
	}

	_, err = t.apiCall(ctx, "sendMessage", payload)
	return err
}

// pollLoop runs the getUpdates long-polling loop.
func (t *Telegram) pollLoop() {
	t.logger.Info("telegram: polling started")
	backoff := time.Second

	for {
		select {
		case <-t.ctx.Done():
			t.logger.Info("telegram: polling stopped")
			return
		default:
		}

		updates, err := t.getUpdates(t.ctx, t.offset, 100, 30)
		if err != nil {
			t.errorCount.Add(1)
			t.logger.Warn("telegram: getUpdates error", "error", err, "backoff", backoff)
			select {
			case <-t.ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		backoff = time.Second
		t.errorCount.Store(0)

		for _, u := range updates {
			if u.UpdateID >= t.offset {
				t.offset = u.UpdateID + 1
			}
			t.processUpdate(u)
		}
	}
}

// processUpdate converts a Telegram update into an Event.
func (t *Telegram) processUpdate(u tgUpdate) {
	if u.CallbackQuery != nil {
		t.processCallbackQuery(u.CallbackQuery)
		return
	}

	msg := u.Message
	if msg == nil {
		if u.EditedMessage != nil {
			msg = u.EditedMessage // treat edits as new messages
		} else {
			return
		}
	}
	if msg.Text == "" {
		return
	}

	if !t.chatAllowed(msg.Chat) {
		return
	}

	var userID int64
	handle := ""
	if msg.From != nil {
		userID = msg.From.ID
		handle = senderHandle(msg.From)
	}

	t.emit(&channels.Event{
		Type:      channels.EventMessage,
		Transport: "telegram",
		UserID:    userID,
		Handle:    handle,
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		Content:   msg.Text,
		Timestamp: time.Unix(int64(msg.Date), 0),
	})
}

// processCallbackQuery converts a button click into an Event.
func (t *Telegram) processCallbackQuery(q *tgCallbackQuery) {
	chatID := ""
	if q.Message != nil {
		if !t.chatAllowed(q.Message.Chat) {
			return
		}
		chatID = strconv.FormatInt(q.Message.Chat.ID, 10)
	}

	t.emit(&channels.Event{
		Type:         channels.EventCallback,
		Transport:    "telegram",
		UserID:       q.From.ID,
		Handle:       senderHandle(&q.From),
		ChatID:       chatID,
		CallbackID:   q.ID,
		CallbackData: q.Data,
		Timestamp:    time.Now(),
	})
}

func (t *Telegram) emit(ev *channels.Event) {
	t.lastEvent.Store(time.Now())
	select {
	case t.events <- ev:
	default:
		t.logger.Warn("telegram: event buffer full, dropping event", "type", ev.Type, "user", ev.UserID)
	}
}

func (t *Telegram) chatAllowed(chat tgChat) bool {
	if len(t.cfg.AllowedChats) > 0 {
		allowed := false
		for _, id := range t.cfg.AllowedChats {
			if id == chat.ID {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	isGroup := chat.Type == "group" || chat.Type == "supergroup"
	if isGroup && !t.cfg.RespondToGroups {
		return false
	}
	if !isGroup && !t.cfg.RespondToDMs {
		return false
	}
	return true
}

// senderHandle returns the best display handle for a user: username first,
// then the trimmed full name, then the numeric ID.
func senderHandle(u *tgUser) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return strconv.FormatInt(u.ID, 10)
}

// ---------- Telegram Bot API Types ----------

type tgUpdate struct {
	UpdateID      int64            `json:"update_id"`
	Message       *tgMessage       `json:"message"`
	EditedMessage *tgMessage       `json:"edited_message"`
	CallbackQuery *tgCallbackQuery `json:"callback_query"`
}

type tgCallbackQuery struct {
	ID      string     `json:"id"`
	From    tgUser     `json:"from"`
	Message *tgMessage `json:"message"`
	Data    string     `json:"data"`
}

type tgMessage struct {
	MessageID int     `json:"message_id"`
	From      *tgUser `json:"from"`
	Chat      tgChat  `json:"chat"`
	Date      int     `json:"date"`
	Text      string  `json:"text"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	IsBot     bool   `json:"is_bot"`
}

type tgChat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"` // "private", "group", "supergroup", "channel"
	Title string `json:"title"`
}

type tgBotUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// ---------- API Helpers ----------

// apiCall makes a POST request to the Telegram Bot API.
func (t *Telegram) apiCall(ctx context.Context, method string, payload map[string]any) (json.RawMessage, error) {
	url := t.baseURL + "/" + method
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram: marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: creating request for %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("telegram: decoding %s response: %w", method, err)
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram: %s: %s", method, result.Description)
	}
	return result.Result, nil
}

// getMe verifies the bot token and returns bot info.
func (t *Telegram) getMe(ctx context.Context) (*tgBotUser, error) {
	data, err := t.apiCall(ctx, "getMe", nil)
	if err != nil {
		return nil, err
	}
	var user tgBotUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("telegram: parsing getMe: %w", err)
	}
	return &user, nil
}

// getUpdates fetches new updates using long polling.
func (t *Telegram) getUpdates(ctx context.Context, offset int64, limit, timeoutSecs int) ([]tgUpdate, error) {
	payload := map[string]any{
		"offset":          offset,
		"limit":           limit,
		"timeout":         timeoutSecs,
		"allowed_updates": []string{"message", "edited_message", "callback_query"},
	}
	data, err := t.apiCall(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}
	var updates []tgUpdate
	if err := json.Unmarshal(data, &updates); err != nil {
		return nil, fmt.Errorf("telegram: parsing updates: %w", err)
	}
	return updates, nil
}

// Compile-time interface verification.
var _ channels.Transport = (*Telegram)(nil)
