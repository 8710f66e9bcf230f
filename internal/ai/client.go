// Package ai talks to an OpenAI-compatible chat completions endpoint to
// break tasks into focus sessions and to suggest break activities.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel   = "llama-3.3-70b-versatile"

	// FallbackSuggestion is returned by SuggestBreak whenever the provider
	// cannot produce one.
	FallbackSuggestion = "Stand up, stretch your arms and legs, and look at something 20 feet away for 20 seconds to rest your eyes."

	maxRetries   = 3
	initialDelay = 1 * time.Second
)

// Kind classifies adapter failures.
type Kind int

const (
	KindTransport Kind = iota + 1 // provider unreachable, non-2xx, or not configured
	KindParse                     // output was not the JSON we asked for
	KindInvalid                   // JSON parsed but failed structural validation
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindParse:
		return "parse"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error is returned for every adapter failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ai %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an adapter error of the given kind.
func IsKind(err error, kind Kind) bool {
	var aiErr *Error
	return errors.As(err, &aiErr) && aiErr.Kind == kind
}

var ErrNotConfigured = errors.New("AI API key not set")

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Client handles chat completion requests.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	client     *http.Client
	retryDelay time.Duration
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func New(cfg Config) *Client {
	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		client:     cfg.HTTPClient,
		retryDelay: initialDelay,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// complete sends a single-message chat and returns the trimmed reply text.
func (c *Client) complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Kind: KindTransport, Err: ErrNotConfigured}
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", &Error{Kind: KindTransport, Err: fmt.Errorf("marshal request: %w", err)}
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.retryDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", &Error{Kind: KindTransport, Err: ctx.Err()}
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return "", &Error{Kind: KindTransport, Err: fmt.Errorf("create request: %w", err)}
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response body: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr chatError
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
				lastErr = fmt.Errorf("provider error (%d): %s", resp.StatusCode, apiErr.Error.Message)
			} else {
				lastErr = fmt.Errorf("provider error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return "", &Error{Kind: KindTransport, Err: lastErr}
		}

		var chat chatResponse
		if err := json.Unmarshal(respBody, &chat); err != nil {
			return "", &Error{Kind: KindParse, Err: fmt.Errorf("decode response: %w", err)}
		}
		if len(chat.Choices) == 0 {
			return "", &Error{Kind: KindParse, Err: errors.New("response has no choices")}
		}
		return strings.TrimSpace(chat.Choices[0].Message.Content), nil
	}

	return "", &Error{Kind: KindTransport, Err: fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)}
}
