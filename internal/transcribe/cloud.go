package transcribe

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-voicepipe/internal/apierr"
)

// Cloud backend defaults.
const (
	// DefaultCloudModel is the cost-effective transcription model.
	DefaultCloudModel = "gpt-4o-mini-transcribe"

	// defaultCloudMaxFileBytes is the provider's upload cap (25 MB).
	defaultCloudMaxFileBytes = 25 * 1024 * 1024

	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// audioTranscriber is an internal interface for OpenAI audio
// transcription. *openai.Client implements this implicitly, so tests
// can inject mocks.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Backend          = (*CloudBackend)(nil)
	_ audioTranscriber = (*openai.Client)(nil)
)

// CloudBackend transcribes audio through the OpenAI audio API. It
// retries transient errors with exponential backoff; an oversize
// rejection or exhausted quota fails immediately so the caller can
// fall over to the next backend.
type CloudBackend struct {
	client     audioTranscriber
	apiKey     string
	model      string
	prompt     string
	language   string
	maxBytes   int64
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// CloudOption configures a CloudBackend.
type CloudOption func(*CloudBackend)

// WithCloudModel sets the transcription model.
func WithCloudModel(model string) CloudOption {
	return func(b *CloudBackend) {
		if model != "" {
			b.model = model
		}
	}
}

// WithCloudPrompt provides context to improve transcription accuracy,
// such as domain vocabulary the recordings tend to use.
func WithCloudPrompt(prompt string) CloudOption {
	return func(b *CloudBackend) { b.prompt = prompt }
}

// WithCloudLanguage pins the audio language (ISO 639-1 base code).
// Empty means auto-detect.
func WithCloudLanguage(code string) CloudOption {
	return func(b *CloudBackend) { b.language = code }
}

// WithCloudMaxFileBytes overrides the advertised upload size limit.
func WithCloudMaxFileBytes(n int64) CloudOption {
	return func(b *CloudBackend) {
		if n > 0 {
			b.maxBytes = n
		}
	}
}

// WithCloudMaxRetries sets the maximum number of retry attempts.
func WithCloudMaxRetries(n int) CloudOption {
	return func(b *CloudBackend) {
		if n >= 0 {
			b.maxRetries = n
		}
	}
}

// WithCloudRetryDelays sets the base and max delays for backoff.
func WithCloudRetryDelays(base, max time.Duration) CloudOption {
	return func(b *CloudBackend) {
		if base > 0 {
			b.baseDelay = base
		}
		if max > 0 {
			b.maxDelay = max
		}
	}
}

// withCloudTranscriber sets a custom audio transcriber (for testing).
func withCloudTranscriber(at audioTranscriber) CloudOption {
	return func(b *CloudBackend) { b.client = at }
}

// NewCloudBackend creates a CloudBackend with the given SDK client.
// apiKey only gates availability; the client carries its own copy.
func NewCloudBackend(client *openai.Client, apiKey string, opts ...CloudOption) *CloudBackend {
	b := &CloudBackend{
		client:     client,
		apiKey:     apiKey,
		model:      DefaultCloudModel,
		maxBytes:   defaultCloudMaxFileBytes,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements Backend.
func (b *CloudBackend) Name() string { return BackendCloud }

// Available reports whether an API key is configured.
func (b *CloudBackend) Available(context.Context) bool { return b.apiKey != "" }

// MaxFileBytes implements Backend.
func (b *CloudBackend) MaxFileBytes() int64 { return b.maxBytes }

// Transcribe converts an audio file to text via the API, retrying
// transient errors.
func (b *CloudBackend) Transcribe(ctx context.Context, path string) (string, error) {
	req := openai.AudioRequest{
		Model:    b.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatJSON,
		Prompt:   b.prompt,
		Language: b.language,
	}

	cfg := apierr.RetryConfig{
		MaxRetries: b.maxRetries,
		BaseDelay:  b.baseDelay,
		MaxDelay:   b.maxDelay,
	}
	return apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		resp, err := b.client.CreateTranscription(ctx, req)
		if err != nil {
			return "", classifyCloudError(err)
		}
		return resp.Text, nil
	}, apierr.IsTransient)
}

// classifyCloudError maps go-openai errors to apierr sentinel errors.
func classifyCloudError(err error) error {
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
