package transcribe

import "time"

// Export internal identifiers for black-box tests.
var (
	WithCloudTranscriber = withCloudTranscriber
	WithLocalRunner      = withLocalRunner
	WithLocalLookPath    = withLocalLookPath
	ClassifyCloudError   = classifyCloudError
)

// TimeoutFor exposes the per-call timeout computation.
func (s *Service) TimeoutFor(estimated time.Duration) time.Duration {
	return s.callTimeout(estimated)
}
