// Package assistant – llm.go implements the LLM client for chat
// completions. Uses the OpenAI-compatible API format, which works with
// OpenAI and any compatible endpoint.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/history"
)

// Fixed sampling parameters applied to every generation call.
const (
	samplingTemperature      = 0.5
	samplingMaxTokens        = 500
	samplingTopP             = 1.0
	samplingFrequencyPenalty = 0.0
	samplingPresencePenalty  = 0.6
)

// LLMClient handles communication with the LLM provider API.
type LLMClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLLMClient creates a new LLM client from config.
func NewLLMClient(cfg *Config, logger *slog.Logger) *LLMClient {
	baseURL := cfg.API.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &LLMClient{
		baseURL: baseURL,
		apiKey:  cfg.API.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger.With("component", "llm"),
	}
}

// Respond generates a reply from a system instruction and a single user
// turn. On any backend failure it returns a human-readable diagnostic
// prefixed with a warning glyph instead of an error, so failures stay
// visible inline without crashing the session.
func (c *LLMClient) Respond(ctx context.Context, systemPrompt, userPrompt string) string {
	return c.RespondWithHistory(ctx, systemPrompt, nil, userPrompt)
}

// RespondWithHistory generates a reply with prior conversation turns folded
// in as alternating user/assistant messages before the new user turn.
func (c *LLMClient) RespondWithHistory(ctx context.Context, systemPrompt string, turns []history.Turn, userPrompt string) string {
	messages := make([]chatMessage, 0, len(turns)+2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, t := range turns {
		role := "user"
		if t.Sender == history.SenderAssistant {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: t.Text})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	text, err := c.completeOnce(ctx, messages)
	if err != nil {
		c.logger.Error("response generation failed", "err", err)
		return fmt.Sprintf("⚠️ Response generation failed: %v", err)
	}
	return text
}

// ---------- Wire Types ----------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// completeOnce sends a single chat completion request. No retries: each
// call is at-most-once, and the caller surfaces failures inline.
func (c *LLMClient) completeOnce(ctx context.Context, messages []chatMessage) (string, error) {
	reqBody := chatRequest{
		Model:            c.model,
		Messages:         messages,
		Temperature:      samplingTemperature,
		MaxTokens:        samplingMaxTokens,
		TopP:             samplingTopP,
		FrequencyPenalty: samplingFrequencyPenalty,
		PresencePenalty:  samplingPresencePenalty,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("sending chat completion", "model", c.model, "messages", len(messages))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	c.logger.Info("chat completion done",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens,
	)

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// truncate shortens s to max characters for log output.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
