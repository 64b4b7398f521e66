package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"docflow-backend/internal/llm"
	"docflow-backend/internal/shared/telemetry"
	"docflow-backend/internal/shared/util"
)

const (
	DefaultURL   = "https://api.mistral.ai/v1/chat/completions"
	DefaultModel = "mistral-large-latest"
)

// Client implements llm.Summarizer using Mistral chat completions.
type Client struct {
	url         string
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	base        *http.Client
	limiter     *rate.Limiter
	httpClient  *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithURL overrides the chat completions endpoint.
func WithURL(url string) Option {
	return func(c *Client) {
		if strings.TrimSpace(url) != "" {
			c.url = url
		}
	}
}

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(c *Client) {
		if strings.TrimSpace(model) != "" {
			c.model = model
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient sets the base client the bearer transport wraps.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.base = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient constructs a Mistral client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("MISTRAL_API_KEY is required")
	}
	c := &Client{
		url:         DefaultURL,
		model:       DefaultModel,
		temperature: 0.2,
		maxTokens:   300,
		timeout:     60 * time.Second,
		limiter:     rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	ctx := context.Background()
	if c.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	}
	c.httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(apiKey)}))
	c.httpClient.Timeout = c.timeout
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Message string `json:"message,omitempty"`
}

// Summarize sends prompt, truncated to llm.MaxInputRunes, and returns the
// first choice. A response without choices yields "", nil.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", errors.Wrap(err, "mistral rate limit wait")
		}
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: llm.SystemPrompt},
			{Role: "user", Content: util.TruncateRunes(prompt, llm.MaxInputRunes)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "mistral request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "mistral read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Newf("mistral status %d: %s", resp.StatusCode, util.TruncateRunes(strings.TrimSpace(string(body)), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Wrap(err, "mistral response parse")
	}
	fields := map[string]any{
		"model":       c.model,
		"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if parsed.Usage != nil {
		fields["prompt_tokens"] = parsed.Usage.PromptTokens
		fields["completion_tokens"] = parsed.Usage.CompletionTokens
	}
	telemetry.Info("summarizer.response", fields)

	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
