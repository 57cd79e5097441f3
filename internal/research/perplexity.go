// Package research runs research-assistant queries for a market and joins
// them with structured provider data into a single report.
package research

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
)

const (
	// DefaultURL is the Perplexity chat completions endpoint.
	DefaultURL = "https://api.perplexity.ai/chat/completions"
	// DefaultModel is the online model used for research queries.
	DefaultModel = "llama-3.1-sonar-small-128k-online"

	maxTokens   = 1024
	temperature = 0.2

	systemPrompt = "You are a research assistant focused on prediction markets, financial analysis, and current events. " +
		"Provide concise, factual answers with relevant data points. " +
		"Focus on information that would help predict market outcomes."
)

// Answer is the result of one research query. Error is set instead of
// Answer when the call failed.
type Answer struct {
	Query     string   `json:"query"`
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
	Error     string   `json:"error,omitempty"`
}

// OK reports whether the query succeeded.
func (a Answer) OK() bool {
	return a.Error == ""
}

// APIError is a non-2xx response from the research API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("research api error (%d): %s", e.StatusCode, e.Body)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model           string        `json:"model"`
	Messages        []chatMessage `json:"messages"`
	MaxTokens       int           `json:"max_tokens"`
	Temperature     float64       `json:"temperature"`
	ReturnCitations bool          `json:"return_citations"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// Client talks to a Perplexity-compatible chat completions API.
type Client struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a research client authenticating with apiKey.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		url:    DefaultURL,
		apiKey: apiKey,
		model:  DefaultModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithURL overrides the API endpoint.
func WithURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.url = url
		}
	}
}

// WithModel overrides the model name.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Ask sends a single query. Failures are carried in Answer.Error.
func (c *Client) Ask(ctx context.Context, query string) Answer {
	ans, err := c.ask(ctx, query)
	if err != nil {
		c.logger.Warn("research_query_failed", "error", err)
		return Answer{Query: query, Citations: []string{}, Error: err.Error()}
	}
	return ans
}

func (c *Client) ask(ctx context.Context, query string) (Answer, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: query},
		},
		MaxTokens:       maxTokens,
		Temperature:     temperature,
		ReturnCitations: true,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Answer{}, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Answer{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Answer{}, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Answer{}, fmt.Errorf("decode failed: %w", err)
	}

	ans := Answer{Query: query, Citations: decoded.Citations}
	if len(decoded.Choices) > 0 {
		ans.Answer = decoded.Choices[0].Message.Content
	}
	if ans.Citations == nil {
		ans.Citations = []string{}
	}
	return ans, nil
}
