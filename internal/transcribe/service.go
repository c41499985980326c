package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/alnah/go-voicepipe/internal/logging"
)

// Per-call timeout defaults: half the estimated audio duration, never
// below the floor. Long recordings get proportionally more time.
const (
	defaultTimeoutFloor  = 20 * time.Minute
	defaultTimeoutFactor = 0.5
)

// Service runs an ordered backend chain over one file at a time.
type Service struct {
	backends      []Backend
	timeoutFloor  time.Duration
	timeoutFactor float64
	log           zerolog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTimeoutFloor sets the minimum per-call timeout.
func WithTimeoutFloor(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeoutFloor = d
		}
	}
}

// WithTimeoutFactor sets the fraction of the estimated duration granted
// as call timeout.
func WithTimeoutFactor(f float64) ServiceOption {
	return func(s *Service) {
		if f > 0 {
			s.timeoutFactor = f
		}
	}
}

// NewService creates a Service trying backends in the given order.
func NewService(backends []Backend, opts ...ServiceOption) *Service {
	s := &Service{
		backends:      backends,
		timeoutFloor:  defaultTimeoutFloor,
		timeoutFactor: defaultTimeoutFactor,
		log:           logging.WithComponent("transcribe"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chain resolves a configured backend mode to an ordered backend list.
// ModeAuto tries cloud first, then local.
func Chain(mode string, cloud, local Backend) ([]Backend, error) {
	switch mode {
	case "", ModeAuto:
		return []Backend{cloud, local}, nil
	case BackendCloud:
		return []Backend{cloud}, nil
	case BackendLocal:
		return []Backend{local}, nil
	}
	return nil, fmt.Errorf("unknown transcription backend %q", mode)
}

// Available reports whether any backend in the chain could take a call
// right now. Validation uses it as a pre-flight check before staging.
func (s *Service) Available(ctx context.Context) bool {
	for _, b := range s.backends {
		if b.Available(ctx) {
			return true
		}
	}
	return false
}

// Transcribe converts one audio file to text. Backends that are
// unavailable or whose size limit the file exceeds are skipped; a
// backend failure logs and falls over to the next. The per-backend
// call timeout scales with the estimated audio duration.
func (s *Service) Transcribe(ctx context.Context, path string, estimated time.Duration) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat audio file: %w", err)
	}
	size := info.Size()
	timeout := s.callTimeout(estimated)
	file := filepath.Base(path)

	var lastErr error
	for _, b := range s.backends {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if !b.Available(ctx) {
			s.log.Debug().
				Str(logging.FieldEvent, "transcribe.backend.skipped").
				Str(logging.FieldBackend, b.Name()).
				Str(logging.FieldFile, file).
				Str(logging.FieldReason, "unavailable").
				Msg("backend skipped")
			continue
		}
		if limit := b.MaxFileBytes(); limit > 0 && size > limit {
			s.log.Info().
				Str(logging.FieldEvent, "transcribe.backend.skipped").
				Str(logging.FieldBackend, b.Name()).
				Str(logging.FieldFile, file).
				Str(logging.FieldReason, "oversize").
				Int64(logging.FieldSize, size).
				Int64("limit", limit).
				Msg("file exceeds backend size limit")
			continue
		}

		s.log.Debug().
			Str(logging.FieldEvent, "transcribe.backend.selected").
			Str(logging.FieldBackend, b.Name()).
			Str(logging.FieldFile, file).
			Dur("timeout", timeout).
			Msg("backend selected")

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		text, err := b.Transcribe(callCtx, path)
		cancel()
		if err == nil {
			s.log.Info().
				Str(logging.FieldEvent, "transcribe.done").
				Str(logging.FieldBackend, b.Name()).
				Str(logging.FieldFile, file).
				Int("chars", len(text)).
				Msg("transcription complete")
			return Result{Text: text, Backend: b.Name()}, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		lastErr = err
		s.log.Warn().
			Str(logging.FieldEvent, "transcribe.backend.failed").
			Str(logging.FieldBackend, b.Name()).
			Str(logging.FieldFile, file).
			Err(err).
			Msg("backend failed, trying next")
	}

	if lastErr != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
	}
	return Result{}, fmt.Errorf("%w for %s (%d bytes)", ErrNoBackend, file, size)
}

// callTimeout scales the estimate by the factor and applies the floor.
func (s *Service) callTimeout(estimated time.Duration) time.Duration {
	scaled := time.Duration(float64(estimated) * s.timeoutFactor)
	if scaled > s.timeoutFloor {
		return scaled
	}
	return s.timeoutFloor
}
