package orchestrate

import "time"

// Skip is one file dropped during validation.
type Skip struct {
	Path   string
	Reason string
}

// Retained is one file kept on the source volume with the reason it
// could not finish.
type Retained struct {
	Path   string
	Reason string
}

// Summary is the user-visible outcome of a run.
type Summary struct {
	SessionID     string
	DryRun        bool
	Detected      int
	Transcribed   int
	ProcessedOK   int
	ProcessedFail int
	Verified      int
	Archived      int
	Deleted       int
	Skipped       []Skip
	Retained      []Retained
	Elapsed       time.Duration
}

// Partial reports whether the run left work behind: retained sources or
// failed transcripts that a later run must pick up again.
func (s Summary) Partial() bool {
	return len(s.Retained) > 0 || s.ProcessedFail > 0
}

// record adds a file that ended in RETAINED or ANALYZED_FAIL to the
// retained list. Stage counters are bumped as the stages run.
func (s *Summary) record(f *File) {
	switch f.State {
	case StateRetained, StateAnalyzedFail:
		path := f.Item.Path
		if path == "" {
			path = f.TranscriptPath
		}
		s.Retained = append(s.Retained, Retained{Path: path, Reason: f.Reason})
	}
}
