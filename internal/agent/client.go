// Package agent is the HTTP client for the external assistant service.
// The gateway posts the conversation state and gets raw reply text back;
// everything the reply means (markers, silence tokens) is interpreted by
// the pipeline, not here.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hostalia/concierge/internal/config"
	"github.com/hostalia/concierge/internal/pipeline"
	"github.com/hostalia/concierge/internal/store"
)

const maxAttempts = 3

// Client implements pipeline.Agent against an assistant service speaking
// JSON over HTTP.
type Client struct {
	baseURL   string
	token     string
	client    *http.Client
	retryWait time.Duration
}

// NewClient builds a client from config. The base URL must be set; the
// token is optional (sent as a bearer header when present).
func NewClient(cfg config.AgentConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("agent base_url is not configured")
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		client:    &http.Client{Timeout: cfg.Timeout()},
		retryWait: time.Second,
	}, nil
}

type historyLine struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type runRequest struct {
	ConversationID string            `json:"conversation_id"`
	Channel        string            `json:"channel"`
	ChatID         string            `json:"chat_id"`
	Kind           string            `json:"kind"`
	Text           string            `json:"text"`
	History        []historyLine     `json:"history,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type runResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Run posts the request to /v1/run and returns the raw reply text.
// 429 and 5xx responses are retried with exponential backoff; everything
// else fails immediately.
func (c *Client) Run(ctx context.Context, req pipeline.Request) (pipeline.Reply, error) {
	body, err := json.Marshal(runRequest{
		ConversationID: req.ConversationID,
		Channel:        req.Channel,
		ChatID:         req.ChatID,
		Kind:           req.Kind,
		Text:           req.Text,
		History:        toHistoryLines(req.History),
		Metadata:       req.Metadata,
	})
	if err != nil {
		return pipeline.Reply{}, fmt.Errorf("agent: encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := c.retryWait << (attempt - 1)
			select {
			case <-ctx.Done():
				return pipeline.Reply{}, ctx.Err()
			case <-time.After(wait):
			}
		}

		reply, retryable, err := c.doRun(ctx, body)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !retryable {
			return pipeline.Reply{}, err
		}
	}
	return pipeline.Reply{}, fmt.Errorf("agent: %d attempts failed: %w", maxAttempts, lastErr)
}

func (c *Client) doRun(ctx context.Context, body []byte) (pipeline.Reply, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/run", bytes.NewReader(body))
	if err != nil {
		return pipeline.Reply{}, false, fmt.Errorf("agent: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return pipeline.Reply{}, true, fmt.Errorf("agent: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return pipeline.Reply{}, true, fmt.Errorf("agent: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return pipeline.Reply{}, false, fmt.Errorf("agent: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out runResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return pipeline.Reply{}, false, fmt.Errorf("agent: decode response: %w", err)
	}
	if out.Error != "" {
		return pipeline.Reply{}, false, fmt.Errorf("agent: %s", out.Error)
	}
	return pipeline.Reply{Text: out.Text}, false, nil
}

func toHistoryLines(entries []store.HistoryEntry) []historyLine {
	if len(entries) == 0 {
		return nil
	}
	lines := make([]historyLine, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, historyLine{Role: e.Role, Content: e.Content})
	}
	return lines
}
