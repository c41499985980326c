// Package session persists the run journal: which files the current run
// discovered, staged, transcribed, analyzed and archived, which past runs
// processed (for duplicate detection), and which source deletions are
// still pending. The orchestrator is the journal's only writer.
package session

import "time"

// idLayout formats session ids as session_<YYYYMMDD>_<HHMMSS>.
const idLayout = "20060102_150405"

// NewID derives the session id for a run started at t.
func NewID(t time.Time) string {
	return "session_" + t.Format(idLayout)
}

// StageFlag names one of the per-run checkpoint booleans.
type StageFlag string

const (
	FlagTranscriptionComplete StageFlag = "transcription_complete"
	FlagProcessingComplete    StageFlag = "processing_complete"
	FlagArchiveComplete       StageFlag = "archive_complete"
	FlagCleanupReady          StageFlag = "cleanup_ready"
)

// StageFlags records which stages of the run finished cleanly.
// CleanupReady implies ArchiveComplete.
type StageFlags struct {
	TranscriptionComplete bool `json:"transcription_complete"`
	ProcessingComplete    bool `json:"processing_complete"`
	ArchiveComplete       bool `json:"archive_complete"`
	CleanupReady          bool `json:"cleanup_ready"`
}

// Current is the open session. Arrays only grow while the session is
// open and hold plain path strings; Fingerprints tracks the stem:size
// identity of every file that reached a verified archive copy.
type Current struct {
	SessionID         string     `json:"session_id"`
	StartedAt         time.Time  `json:"started_at"`
	Discovered        []string   `json:"discovered"`
	Staged            []string   `json:"staged"`
	Transcribed       []string   `json:"transcribed"`
	AnalyzedOK        []string   `json:"analyzed_ok"`
	AnalyzedFail      []string   `json:"analyzed_fail"`
	DuplicatesSkipped []string   `json:"duplicates_skipped"`
	CleanupCandidates []string   `json:"cleanup_candidates"`
	Fingerprints      []string   `json:"fingerprints"`
	StageFlags        StageFlags `json:"stage_flags"`
}

// Closed is a finished session. Its arrays never change again;
// FilesToDelete lists sources whose deletion did not complete before
// the session ended.
type Closed struct {
	SessionID     string    `json:"session_id"`
	StartedAt     time.Time `json:"started_at"`
	ClosedAt      time.Time `json:"closed_at"`
	CleanupDate   time.Time `json:"cleanup_date"`
	FilesToDelete []string  `json:"files_to_delete"`
	Fingerprints  []string  `json:"fingerprints"`
}

// ArchiveManagement is the cross-session deletion queue. Unlike session
// arrays it shrinks as pending deletions resolve.
type ArchiveManagement struct {
	LastCleanup       time.Time `json:"last_cleanup"`
	FilesToDelete     []string  `json:"files_to_delete"`
	DeletionScheduled bool      `json:"deletion_scheduled"`
}

// document is the on-disk shape of the journal.
type document struct {
	Current           *Current          `json:"current_session"`
	PreviousSessions  []Closed          `json:"previous_sessions"`
	ArchiveManagement ArchiveManagement `json:"archive_management"`
}
