package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alnah/go-voicepipe/internal/apierr"
)

// Compat client defaults.
const (
	defaultCompatTimeout = 2 * time.Minute

	// Response size limit to prevent OOM from malformed responses (10MB).
	maxResponseSize = 10 * 1024 * 1024
)

// httpDoer abstracts the HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Compile-time interface compliance check.
var _ Client = (*CompatClient)(nil)

// CompatClient executes chat completions against any OpenAI-compatible
// endpoint (self-hosted gateways, alternate providers) over plain HTTP.
// Unlike the SDK client it reads the Retry-After header on 429 responses,
// so the backoff waits exactly as long as the server asks.
type CompatClient struct {
	apiKey         string
	baseURL        string
	model          string
	maxInputTokens int
	maxTokens      int
	maxRetries     int
	baseDelay      time.Duration
	maxDelay       time.Duration
	httpTimeout    time.Duration
	httpClient     httpDoer
	limiter        *rate.Limiter
}

// CompatOption configures a CompatClient.
type CompatOption func(*CompatClient)

// WithCompatModel sets the completion model.
func WithCompatModel(model string) CompatOption {
	return func(c *CompatClient) {
		c.model = model
	}
}

// WithCompatMaxTokens sets the default completion token budget.
func WithCompatMaxTokens(n int) CompatOption {
	return func(c *CompatClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithCompatMaxRetries sets the maximum number of retry attempts.
func WithCompatMaxRetries(n int) CompatOption {
	return func(c *CompatClient) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithCompatRetryDelays sets the base and max delays for exponential backoff.
func WithCompatRetryDelays(base, max time.Duration) CompatOption {
	return func(c *CompatClient) {
		if base > 0 {
			c.baseDelay = base
		}
		if max > 0 {
			c.maxDelay = max
		}
	}
}

// WithCompatHTTPTimeout sets the HTTP client timeout.
func WithCompatHTTPTimeout(timeout time.Duration) CompatOption {
	return func(c *CompatClient) {
		if timeout > 0 {
			c.httpTimeout = timeout
		}
	}
}

// WithCompatRequestsPerMinute paces outgoing requests. Zero disables pacing.
func WithCompatRequestsPerMinute(rpm int) CompatOption {
	return func(c *CompatClient) {
		if rpm > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rpm)/60, 1)
		}
	}
}

// withCompatHTTPClient sets a custom HTTP client (for testing).
func withCompatHTTPClient(client httpDoer) CompatOption {
	return func(c *CompatClient) {
		c.httpClient = client
	}
}

// NewCompatClient creates a CompatClient for the given endpoint.
// apiKey is required; baseURL must point at an OpenAI-compatible server.
func NewCompatClient(apiKey, baseURL string, opts ...CompatOption) (*CompatClient, error) {
	if apiKey == "" {
		return nil, ErrEmptyAPIKey
	}

	c := &CompatClient{
		apiKey:         apiKey,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		model:          defaultOpenAIModel,
		maxInputTokens: defaultMaxInputTokens,
		maxTokens:      defaultMaxTokens,
		maxRetries:     defaultMaxRetries,
		baseDelay:      defaultBaseDelay,
		maxDelay:       defaultMaxDelay,
		httpTimeout:    defaultCompatTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	// Create HTTP client after options are applied (timeout may be customized).
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.httpTimeout}
	}
	return c, nil
}

// Complete executes the chat completion with retry.
func (c *CompatClient) Complete(ctx context.Context, req Request) (string, error) {
	estimated := estimateTokens(req.User)
	if estimated > c.maxInputTokens {
		return "", fmt.Errorf("input %dK tokens estimated, max %dK: %w",
			estimated/1000, c.maxInputTokens/1000, ErrInputTooLong)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	apiReq := chatRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: 0,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
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
		resp, err := c.callAPI(ctx, apiReq)
		if err != nil {
			return "", classifyCompatError(err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyCompletion
		}
		return resp.Choices[0].Message.Content, nil
	}, apierr.IsTransient)
}

// chatRequest represents an OpenAI-compatible chat completion request.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// chatMessage represents a message in the conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents an OpenAI-compatible chat completion response.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// chatErrorResponse represents the JSON error envelope.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// callAPI makes an HTTP request to the chat completion endpoint.
func (c *CompatClient) callAPI(ctx context.Context, reqBody chatRequest) (_ *chatResponse, err error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	// Limit response size to prevent OOM from malformed responses.
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseCompatError(resp, respBody)
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}

// compatAPIError represents a typed error from the endpoint.
type compatAPIError struct {
	StatusCode int
	Message    string
	Type       string
	RetryAfter time.Duration
}

func (e *compatAPIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// parseCompatError parses an error response, capturing Retry-After.
func parseCompatError(resp *http.Response, body []byte) *compatAPIError {
	apiErr := &compatAPIError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
		RetryAfter: apierr.ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
	var errResp chatErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
	}
	return apiErr
}

// classifyCompatError maps endpoint errors to apierr sentinel errors.
func classifyCompatError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *compatAPIError
	if errors.As(err, &apiErr) {
		return apierr.ClassifyStatus(apiErr.StatusCode, apiErr.Message, apiErr.RetryAfter)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}

	return err
}
