// Package openrouter implements the oracle port over an OpenRouter-style
// chat-completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avesafe/taskpilot/internal/config"
	"github.com/avesafe/taskpilot/internal/domain"
	"github.com/avesafe/taskpilot/internal/port/oracle"
	"github.com/avesafe/taskpilot/internal/resilience"
)

// Client talks to an OpenRouter-compatible chat-completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	breaker     *resilience.Breaker
}

// NewClient creates an oracle client from config.
func NewClient(cfg config.Oracle) *Client {
	return &Client{
		baseURL:     cfg.URL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

var _ oracle.Oracle = (*Client)(nil)

// Classify asks the oracle to judge a batch of active tasks.
func (c *Client) Classify(ctx context.Context, tasks []oracle.TaskContext) (*oracle.Judgment, error) {
	prompt, err := classifyPrompt(tasks)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	content, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return parseJudgment(content)
}

// Extract pulls actionable tasks out of a text blob.
func (c *Client) Extract(ctx context.Context, text string) ([]oracle.Draft, error) {
	content, err := c.complete(ctx, extractPrompt(text))
	if err != nil {
		return nil, err
	}

	return parseDrafts(content)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete sends one user message and returns the first choice's content.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: missing API key", domain.ErrConfiguration)
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	data, err := c.doRequest(ctx, body)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", domain.ErrParse)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read response: %v", domain.ErrUpstream, err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("%w: %s", domain.ErrUpstream, upstreamMessage(resp.StatusCode, data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			if err == resilience.ErrCircuitOpen {
				return nil, fmt.Errorf("%w: circuit open", domain.ErrUpstream)
			}
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}

// upstreamMessage surfaces the oracle-provided error message when the body
// carries one, falling back to the status code.
func upstreamMessage(status int, body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return fmt.Sprintf("oracle API error %d", status)
}
