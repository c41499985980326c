package orchestrate

import "errors"

// ErrSourceUnreachable indicates the recorder volume is missing and no
// transcript backlog exists to work on instead.
var ErrSourceUnreachable = errors.New("source volume unreachable and no backlog")

// ErrNoTranscriber indicates files need transcription but no backend in
// the chain is available.
var ErrNoTranscriber = errors.New("no transcription backend available")

// Retain and skip reasons surfaced in the journal and the run summary.
const (
	ReasonTooShort         = "too_short"
	ReasonTooLong          = "too_long"
	ReasonDuplicate        = "duplicate"
	ReasonUnreadable       = "unreadable"
	ReasonTranscribeFailed = "transcribe_failed"
	ReasonParseFailed      = "parse_failed"
	ReasonAnalysisFailed   = "analysis_failed"
	ReasonRoutingFailed    = "routing_failed"
	ReasonCreateFailed     = "remote_create_failed"
	ReasonVerifyFailed     = "remote_verify_failed"
	ReasonUnverified       = "unverified_remote"
	ReasonSidecarFailed    = "sidecar_write_failed"
	ReasonArchiveFailed    = "archive_failed"
	ReasonDeleteFailed     = "source_delete_failed"
	ReasonCancelled        = "cancelled"
	ReasonStageSkipped     = "stage_skipped"
)
