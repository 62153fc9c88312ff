package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/channels"
)

func testTransport(t *testing.T, cfg Config, handler http.HandlerFunc) (*Telegram, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tg := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tg.baseURL = server.URL
	tg.connected.Store(true)
	return tg, server
}

func TestChatAllowed(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		chat tgChat
		want bool
	}{
		{"dm allowed by default", DefaultConfig(), tgChat{ID: 1, Type: "private"}, true},
		{"group allowed by default", DefaultConfig(), tgChat{ID: 2, Type: "group"}, true},
		{"supergroup allowed by default", DefaultConfig(), tgChat{ID: 3, Type: "supergroup"}, true},
		{
			"groups disabled",
			Config{RespondToDMs: true},
			tgChat{ID: 2, Type: "group"},
			false,
		},
		{
			"dms disabled",
			Config{RespondToGroups: true},
			tgChat{ID: 1, Type: "private"},
			false,
		},
		{
			"allowlist match",
			Config{AllowedChats: []int64{5}, RespondToDMs: true},
			tgChat{ID: 5, Type: "private"},
			true,
		},
		{
			"allowlist miss",
			Config{AllowedChats: []int64{5}, RespondToDMs: true},
			tgChat{ID: 6, Type: "private"},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg := New(tt.cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
			if got := tg.chatAllowed(tt.chat); got != tt.want {
				t.Errorf("chatAllowed(%+v) = %v, want %v", tt.chat, got, tt.want)
			}
		})
	}
}

func TestSenderHandle(t *testing.T) {
	tests := []struct {
		name string
		user *tgUser
		want string
	}{
		{"nil user", nil, ""},
		{"username wins", &tgUser{ID: 1, Username: "alice", FirstName: "Alice"}, "alice"},
		{"full name fallback", &tgUser{ID: 1, FirstName: "Alice", LastName: "Smith"}, "Alice Smith"},
		{"first name only", &tgUser{ID: 1, FirstName: "Alice"}, "Alice"},
		{"id fallback", &tgUser{ID: 42}, "42"},
	}

	for _, tt := range tests {
		if got := senderHandle(tt.user); got != tt.want {
			t.Errorf("%s: senderHandle = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestProcessUpdate_Message(t *testing.T) {
	tg := New(DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	tg.processUpdate(tgUpdate{
		UpdateID: 1,
		Message: &tgMessage{
			From: &tgUser{ID: 7, Username: "bob"},
			Chat: tgChat{ID: 100, Type: "private"},
			Text: "/gpt hello",
			Date: 1700000000,
		},
	})

	select {
	case ev := <-tg.Receive():
		if ev.Type != channels.EventMessage {
			t.Errorf("event type = %q, want message", ev.Type)
		}
		if ev.UserID != 7 || ev.Handle != "bob" {
			t.Errorf("sender lost: id=%d handle=%q", ev.UserID, ev.Handle)
		}
		if ev.ChatID != "100" || ev.Content != "/gpt hello" {
			t.Errorf("message lost: chat=%q content=%q", ev.ChatID, ev.Content)
		}
	default:
		t.Fatal("expected an emitted event")
	}
}

func TestProcessUpdate_Callback(t *testing.T) {
	tg := New(DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	tg.processUpdate(tgUpdate{
		UpdateID: 2,
		CallbackQuery: &tgCallbackQuery{
			ID:      "cb-77",
			From:    tgUser{ID: 7, Username: "bob"},
			Message: &tgMessage{Chat: tgChat{ID: 100, Type: "private"}},
			Data:    "confirm_search",
		},
	})

	select {
	case ev := <-tg.Receive():
		if ev.Type != channels.EventCallback {
			t.Errorf("event type = %q, want callback", ev.Type)
		}
		if ev.CallbackID != "cb-77" || ev.CallbackData != "confirm_search" {
			t.Errorf("callback lost: id=%q data=%q", ev.CallbackID, ev.CallbackData)
		}
	default:
		t.Fatal("expected an emitted event")
	}
}

func TestProcessUpdate_Filtered(t *testing.T) {
	tg := New(Config{RespondToDMs: true}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Group message with groups disabled.
	tg.processUpdate(tgUpdate{
		Message: &tgMessage{
			From: &tgUser{ID: 7},
			Chat: tgChat{ID: 100, Type: "group"},
			Text: "hi",
		},
	})
	// Empty text (stickers, photos).
	tg.processUpdate(tgUpdate{
		Message: &tgMessage{
			From: &tgUser{ID: 7},
			Chat: tgChat{ID: 100, Type: "private"},
		},
	})

	select {
	case ev := <-tg.Receive():
		t.Fatalf("unexpected event emitted: %+v", ev)
	default:
	}
}

func TestSendChoicePrompt(t *testing.T) {
	var gotPayload map[string]any
	tg, _ := testTransport(t, DefaultConfig(), func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sendMessage" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	choices := []channels.Choice{
		{Label: "🔎 Yes", Data: "confirm_search"},
		{Label: "❌ No", Data: "decline_search"},
	}
	if err := tg.SendChoicePrompt(context.Background(), "100", "Search?", choices); err != nil {
		t.Fatalf("SendChoicePrompt failed: %v", err)
	}

	if gotPayload["parse_mode"] != "MarkdownV2" {
		t.Errorf("parse_mode = %v, want MarkdownV2", gotPayload["parse_mode"])
	}
	markup, ok := gotPayload["reply_markup"].(map[string]any)
	if !ok {
		t.Fatal("reply_markup missing")
	}
	rows, ok := markup["inline_keyboard"].([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("expected one keyboard row, got %v", markup["inline_keyboard"])
	}
	row := rows[0].([]any)
	if len(row) != 2 {
		t.Fatalf("expected two buttons, got %d", len(row))
	}
	first := row[0].(map[string]any)
	if first["callback_data"] != "confirm_search" {
		t.Errorf("callback_data = %v", first["callback_data"])
	}
}

func TestSendText_RequiresConnection(t *testing.T) {
	tg := New(DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := tg.SendText(context.Background(), "100", "hi")
	if err != channels.ErrTransportDisconnected {
		t.Errorf("expected ErrTransportDisconnected, got %v", err)
	}
}

func TestSendText_HonorsCallerContext(t *testing.T) {
	tg, _ := testTransport(t, DefaultConfig(), func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tg.SendText(ctx, "100", "hi"); err == nil {
		t.Error("expected an error when the caller's context is cancelled")
	}
}

func TestSendText_InvalidChatID(t *testing.T) {
	tg, _ := testTransport(t, DefaultConfig(), func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	if err := tg.SendText(context.Background(), "not-a-number", "hi"); err == nil {
		t.Error("expected an error for a non-numeric chat ID")
	}
}

func TestAcknowledgeCallback(t *testing.T) {
	var gotPayload map[string]any
	tg, _ := testTransport(t, DefaultConfig(), func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/answerCallbackQuery" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	})

	if err := tg.AcknowledgeCallback(context.Background(), "cb-9"); err != nil {
		t.Fatalf("AcknowledgeCallback failed: %v", err)
	}
	if gotPayload["callback_query_id"] != "cb-9" {
		t.Errorf("callback_query_id = %v", gotPayload["callback_query_id"])
	}
}

func TestAPICall_ErrorDescription(t *testing.T) {
	tg, _ := testTransport(t, DefaultConfig(), func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
	})

	_, err := tg.apiCall(context.Background(), "getMe", nil)
	if err == nil || !strings.Contains(err.Error(), "Unauthorized") {
		t.Errorf("expected the API description in the error, got %v", err)
	}
}
