package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/alnah/go-voicepipe/internal/apierr"
)

// OpenAI defaults.
const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultMaxInputTokens = 100000
	defaultMaxTokens      = 1500

	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// chatCompleter is an internal interface for OpenAI chat completion.
// *openai.Client implements this implicitly, so tests can inject mocks.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Compile-time interface compliance check.
var _ Client = (*OpenAIClient)(nil)

// OpenAIClient executes chat completions through the official OpenAI SDK.
// It retries transient errors with exponential backoff and paces requests
// when a per-minute budget is configured.
type OpenAIClient struct {
	client         chatCompleter
	model          string
	maxInputTokens int
	maxTokens      int
	maxRetries     int
	baseDelay      time.Duration
	maxDelay       time.Duration
	limiter        *rate.Limiter
}

// Option configures an OpenAIClient.
type Option func(*OpenAIClient)

// WithModel sets the completion model.
func WithModel(model string) Option {
	return func(c *OpenAIClient) {
		c.model = model
	}
}

// WithMaxTokens sets the default completion token budget.
func WithMaxTokens(n int) Option {
	return func(c *OpenAIClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithMaxInputTokens sets the maximum input token limit.
func WithMaxInputTokens(n int) Option {
	return func(c *OpenAIClient) {
		if n > 0 {
			c.maxInputTokens = n
		}
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(c *OpenAIClient) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, max time.Duration) Option {
	return func(c *OpenAIClient) {
		if base > 0 {
			c.baseDelay = base
		}
		if max > 0 {
			c.maxDelay = max
		}
	}
}

// WithRequestsPerMinute paces outgoing requests. Zero disables pacing.
func WithRequestsPerMinute(rpm int) Option {
	return func(c *OpenAIClient) {
		if rpm > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rpm)/60, 1)
		}
	}
}

// withChatCompleter sets a custom chat completer (for testing).
func withChatCompleter(cc chatCompleter) Option {
	return func(c *OpenAIClient) {
		c.client = cc
	}
}

// NewOpenAIClient creates an OpenAIClient with the given SDK client.
func NewOpenAIClient(client *openai.Client, opts ...Option) *OpenAIClient {
	c := &OpenAIClient{
		client:         client,
		model:          defaultOpenAIModel,
		maxInputTokens: defaultMaxInputTokens,
		maxTokens:      defaultMaxTokens,
		maxRetries:     defaultMaxRetries,
		baseDelay:      defaultBaseDelay,
		maxDelay:       defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete executes the chat completion with retry.
// Returns ErrInputTooLong if the user content exceeds the token limit
// (estimated) and ErrEmptyCompletion when the API returns no choice.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	estimated := estimateTokens(req.User)
	if estimated > c.maxInputTokens {
		return "", fmt.Errorf("input %dK tokens estimated, max %dK: %w",
			estimated/1000, c.maxInputTokens/1000, ErrInputTooLong)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	apiReq := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: 0, // Deterministic output for reproducibility.
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	cfg := apierr.RetryConfig{
		MaxRetries: c.maxRetries,
		BaseDelay:  c.baseDelay,
		MaxDelay:   c.maxDelay,
	}
	return apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		resp, err := c.client.CreateChatCompletion(ctx, apiReq)
		if err != nil {
			return "", classifySDKError(err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyCompletion
		}
		return resp.Choices[0].Message.Content, nil
	}, apierr.IsTransient)
}

// classifySDKError maps go-openai errors to apierr sentinel errors.
// Uses errors.As for robust error type checking instead of string matching.
func classifySDKError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apierr.ClassifyStatus(apiErr.HTTPStatusCode, apiErr.Message, 0)
	}

	// Transport-level failures from the SDK carry the status separately.
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return apierr.ClassifyStatus(reqErr.HTTPStatusCode, reqErr.Error(), 0)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}

	return err
}
