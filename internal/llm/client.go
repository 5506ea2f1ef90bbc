// Package llm generates reflective replies through an OpenAI-compatible chat
// completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sotto-note/internal/model"
)

const maxReplyTokens = 300

type Client struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	client       *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
	Error   *chatError   `json:"error,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

type chatUsage struct {
	TotalTokens int `json:"total_tokens"`
}

type chatError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// New returns nil when apiKey is empty. A nil *Client reports Enabled false.
func New(apiKey string, baseURL string, model string, systemPrompt string, timeout time.Duration) *Client {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		systemPrompt: systemPrompt,
		client:       &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c != nil
}

// Reflect asks the model for a short reply to a journal entry.
func (c *Client) Reflect(ctx context.Context, entry model.JournalEntry) (string, error) {
	if c == nil {
		return "", model.ErrAIUnavailable
	}

	messages := make([]chatMessage, 0, 2)
	if c.systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: c.systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt(entry)})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   maxReplyTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var out chatResponse
	if resp.StatusCode != http.StatusOK {
		if err := json.Unmarshal(raw, &out); err == nil && out.Error != nil {
			return "", fmt.Errorf("llm error (%d): %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("llm http error %d", resp.StatusCode)
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}

	reply := strings.TrimSpace(out.Choices[0].Message.Content)
	if reply == "" {
		return "", errors.New("llm returned an empty reply")
	}

	slog.Debug("ai reflection generated",
		"model", out.Model,
		"tokens", out.Usage.TotalTokens,
		"latency", time.Since(started),
	)

	return reply, nil
}

func prompt(entry model.JournalEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mood: %s\n\n", entry.Mood)
	b.WriteString("Journal entry:\n")
	b.WriteString(entry.Content)
	return b.String()
}
