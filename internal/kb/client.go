// Package kb talks to the knowledge base: a Notion-style HTTP JSON API
// of pages, properties, and child blocks grouped into database
// collections. The Client covers the raw endpoints; the Adapter maps
// routed records onto them and implements the verify contract the
// cleanup protocol depends on.
package kb

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

	"github.com/alnah/go-voicepipe/internal/apierr"
)

// Client defaults.
const (
	DefaultBaseURL = "https://api.notion.com"
	DefaultVersion = "2022-06-28"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second

	// Response size limit to prevent OOM from malformed responses (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// The API caps children per create or append call.
	maxBlocksPerCall = 100
)

// httpDoer abstracts the HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client executes raw knowledge base API calls with retry. Transient
// failures (429 with Retry-After, 5xx, conflicts) back off and retry;
// schema and auth failures surface immediately.
type Client struct {
	token       string
	baseURL     string
	version     string
	maxRetries  int
	baseDelay   time.Duration
	maxDelay    time.Duration
	httpTimeout time.Duration
	httpClient  httpDoer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API host.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithVersion sets the API version header value.
func WithVersion(v string) ClientOption {
	return func(c *Client) {
		if v != "" {
			c.version = v
		}
	}
}

// WithHTTPTimeout sets the HTTP client timeout.
func WithHTTPTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpTimeout = timeout
		}
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, max time.Duration) ClientOption {
	return func(c *Client) {
		if base > 0 {
			c.baseDelay = base
		}
		if max > 0 {
			c.maxDelay = max
		}
	}
}

// withHTTPClient sets a custom HTTP client (for testing).
func withHTTPClient(client httpDoer) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a Client authenticated by token.
func NewClient(token string, opts ...ClientOption) (*Client, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	c := &Client{
		token:       token,
		baseURL:     DefaultBaseURL,
		version:     DefaultVersion,
		maxRetries:  defaultMaxRetries,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		httpTimeout: defaultTimeout,
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

// CreatePage creates a page with its properties and first content
// blocks, returning the server's view of it.
func (c *Client) CreatePage(ctx context.Context, page Page) (PageRef, error) {
	var ref PageRef
	if err := c.doRetry(ctx, http.MethodPost, "/v1/pages", page, &ref); err != nil {
		return PageRef{}, err
	}
	return ref, nil
}

// GetPage retrieves a page by id. A missing page is ErrNotFound.
func (c *Client) GetPage(ctx context.Context, pageID string) (PageRef, error) {
	var ref PageRef
	if err := c.doRetry(ctx, http.MethodGet, "/v1/pages/"+pageID, nil, &ref); err != nil {
		return PageRef{}, err
	}
	return ref, nil
}

// AppendBlocks appends child blocks to a page, batching to the API's
// per-call limit.
func (c *Client) AppendBlocks(ctx context.Context, parentID string, blocks []Block) error {
	for len(blocks) > 0 {
		batch := blocks
		if len(batch) > maxBlocksPerCall {
			batch = batch[:maxBlocksPerCall]
		}
		blocks = blocks[len(batch):]

		body := struct {
			Children []Block `json:"children"`
		}{Children: batch}
		if err := c.doRetry(ctx, http.MethodPatch, "/v1/blocks/"+parentID+"/children", body, nil); err != nil {
			return err
		}
	}
	return nil
}

// QueryDatabase fetches one result page from a collection query.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, q DatabaseQuery) (QueryResult, error) {
	var result QueryResult
	if err := c.doRetry(ctx, http.MethodPost, "/v1/databases/"+databaseID+"/query", q, &result); err != nil {
		return QueryResult{}, err
	}
	return result, nil
}

// doRetry runs one call with exponential backoff on transient failures.
func (c *Client) doRetry(ctx context.Context, method, path string, body, out any) error {
	cfg := apierr.RetryConfig{
		MaxRetries: c.maxRetries,
		BaseDelay:  c.baseDelay,
		MaxDelay:   c.maxDelay,
	}
	_, err := apierr.RetryWithBackoff(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, c.do(ctx, method, path, body, out)
	}, apierr.IsTransient)
	return err
}

// do executes one API call, classifying failures into apierr sentinels.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (err error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
		}
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	// Limit response size to prevent OOM from malformed responses.
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return classifyResponse(resp, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// errorEnvelope is the API's JSON error shape.
type errorEnvelope struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classifyResponse maps an error response to the apierr sentinels. The
// mapping drives retry: only rate limits, timeouts, 5xx, and conflicts
// come back transient.
func classifyResponse(resp *http.Response, body []byte) error {
	msg := string(body)
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		msg = envelope.Message
		if envelope.Code != "" {
			msg = envelope.Code + ": " + msg
		}
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &apierr.RateLimitError{
			Msg:        msg,
			RetryAfter: apierr.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w", msg, apierr.ErrAuthFailed)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	case http.StatusConflict:
		// Data collisions resolve on retry.
		return fmt.Errorf("%s: %w", msg, apierr.ErrUnavailable)
	case http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%s: %w", msg, apierr.ErrOversize)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%s: %w", msg, apierr.ErrTimeout)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		// Schema mismatch; retrying cannot help.
		return fmt.Errorf("%s: %w", msg, apierr.ErrPermanent)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("%s: %w", msg, apierr.ErrUnavailable)
	default:
		return fmt.Errorf("API error %d: %s", resp.StatusCode, msg)
	}
}
