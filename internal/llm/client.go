package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/MikeSquared-Agency/scribe/internal/metrics"
)

// ErrUpstream marks every failure that originates in the completion backend:
// transport errors, non-2xx responses and unreadable payloads.
var ErrUpstream = errors.New("upstream generation failure")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn sent to the completion backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the sampling knobs for one request.
type Params struct {
	Temperature float64
	TopP        float64
}

type Options struct {
	BaseURL           string // OpenAI-compatible root, e.g. http://localhost:4000/v1
	APIKey            string
	Model             string
	RequestsPerSecond float64 // 0 disables rate limiting
	Timeout           time.Duration
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	sdk     *openai.Client
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewClient(opts Options, m *metrics.Metrics, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		sdk: openai.NewClientWithConfig(cfg),
		// No timeout: stream lifetime is bounded by the request ctx.
		http:    &http.Client{},
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		model:   opts.Model,
		limiter: limiter,
		metrics: m,
		logger:  logger,
	}
}

func (c *Client) Model() string {
	return c.model
}

// Complete sends the messages and returns the full completion text.
func (c *Client) Complete(ctx context.Context, messages []Message, p Params) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.sdk.CreateChatCompletion(ctx, c.request(messages, p, false))
	if err != nil {
		c.metrics.ObserveLLM("complete", "error", time.Since(start))
		return "", fmt.Errorf("%w: completion: %w", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		c.metrics.ObserveLLM("complete", "error", time.Since(start))
		return "", fmt.Errorf("%w: empty completion choices", ErrUpstream)
	}

	c.metrics.ObserveLLM("complete", "ok", time.Since(start))
	c.logger.Debug("completion finished",
		"model", c.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) request(messages []Message, p Params, stream bool) openai.ChatCompletionRequest {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    out,
		Stream:      stream,
		Temperature: sampling(p.Temperature),
		TopP:        sampling(p.TopP),
	}
}

// sampling converts a sampling value for the request. The SDK omits zero
// fields, so an explicit 0 is sent as the smallest positive float32.
func sampling(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait: %w", ErrUpstream, err)
	}
	return nil
}
