// Package channels defines the interface and types for ChatClaw messaging
// transports. A transport delivers inbound text messages and button-click
// callbacks, and exposes a small send surface: plain text, text with a row
// of inline choices, and callback acknowledgement.
package channels

import (
	"context"
	"fmt"
	"time"
)

// EventType identifies the kind of inbound event.
type EventType string

const (
	EventMessage  EventType = "message"
	EventCallback EventType = "callback"
)

// Transport defines the interface every messaging transport must implement.
type Transport interface {
	// Name returns the transport identifier (e.g. "telegram").
	Name() string

	// Connect establishes the connection to the messaging platform and
	// starts delivering events.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// SendText sends a plain text message to the specified chat.
	SendText(ctx context.Context, chatID, text string) error

	// SendChoicePrompt sends a text message with a row of inline choices.
	// Each choice's Data comes back verbatim in a callback event.
	SendChoicePrompt(ctx context.Context, chatID, text string, choices []Choice) error

	// AcknowledgeCallback confirms receipt of a button click so the sender's
	// client stops showing a progress indicator.
	AcknowledgeCallback(ctx context.Context, callbackID string) error

	// Receive returns a Go channel that emits inbound events.
	Receive() <-chan *Event

	// IsConnected returns true if the transport is connected.
	IsConnected() bool

	// Health returns the transport health status.
	Health() HealthStatus
}

// Choice is an inline button attached to a choice prompt.
type Choice struct {
	// Label is the text shown on the button.
	Label string

	// Data is the opaque tag delivered back in the callback event.
	Data string
}

// Event represents an inbound message or button click from a transport.
type Event struct {
	// Type distinguishes text messages from button clicks.
	Type EventType

	// Transport identifies the source transport (e.g. "telegram").
	Transport string

	// UserID is the stable numeric identity of the sender.
	UserID int64

	// Handle is the sender's display handle (mutable, for logging/storage).
	Handle string

	// ChatID is the conversation to reply into.
	ChatID string

	// Content is the message text (EventMessage only).
	Content string

	// CallbackID identifies the click for acknowledgement (EventCallback only).
	CallbackID string

	// CallbackData is the opaque choice tag (EventCallback only).
	CallbackData string

	// Timestamp is when the event was produced on the platform.
	Timestamp time.Time
}

// HealthStatus represents the health state of a transport.
type HealthStatus struct {
	Connected   bool
	LastEventAt time.Time
	ErrorCount  int
}

// Errors.
var (
	ErrTransportDisconnected = fmt.Errorf("transport is not connected")
	ErrSendFailed            = fmt.Errorf("failed to send message")
)
