package orchestrate

import (
	"fmt"

	"github.com/alnah/go-voicepipe/internal/audio"
	"github.com/alnah/go-voicepipe/internal/pipeline"
)

// FileState is one recording's position in the run. Transitions only
// move forward; RETAINED is the safe terminal for anything that cannot
// finish, and is reachable from every non-terminal state.
type FileState string

const (
	StateDiscovered     FileState = "DISCOVERED"
	StateValidated      FileState = "VALIDATED"
	StateStaged         FileState = "STAGED"
	StateTranscribed    FileState = "TRANSCRIBED"
	StateAnalyzedOK     FileState = "ANALYZED_OK"
	StateAnalyzedFail   FileState = "ANALYZED_FAIL"
	StateVerifiedRemote FileState = "VERIFIED_REMOTE"
	StateArchived       FileState = "ARCHIVED"
	StateSourceDeleted  FileState = "SOURCE_DELETED"
	StateRetained       FileState = "RETAINED"
)

// IsTerminal returns true if the state is a final state.
func (s FileState) IsTerminal() bool {
	switch s {
	case StateSourceDeleted, StateRetained:
		return true
	}
	return false
}

// transitions lists the legal next states. ANALYZED_OK may demote to
// ANALYZED_FAIL when remote verification comes back false; nothing ever
// moves to an earlier stage.
var transitions = map[FileState][]FileState{
	StateDiscovered:     {StateValidated, StateRetained},
	StateValidated:      {StateStaged, StateRetained},
	StateStaged:         {StateTranscribed, StateRetained},
	StateTranscribed:    {StateAnalyzedOK, StateAnalyzedFail, StateRetained},
	StateAnalyzedOK:     {StateVerifiedRemote, StateAnalyzedFail, StateRetained},
	StateAnalyzedFail:   {StateRetained},
	StateVerifiedRemote: {StateArchived, StateRetained},
	StateArchived:       {StateSourceDeleted, StateRetained},
}

// File tracks one recording through the run.
type File struct {
	Item   audio.Item
	State  FileState
	Staged audio.Staged
	// TranscriptPath is set once transcription lands. Backlog files
	// start here with a zero Item.
	TranscriptPath string
	// Result is the processing outcome for ANALYZED_OK files.
	Result pipeline.Result
	// Reason names why a file ended in ANALYZED_FAIL or RETAINED.
	Reason string
	// Skipped marks validation drops; they are listed as skips, not
	// retained files.
	Skipped bool
}

// NewFile starts a discovered recording's tracker.
func NewFile(item audio.Item) *File {
	return &File{Item: item, State: StateDiscovered}
}

// NewBacklogFile tracks a leftover transcript with no source recording
// behind it. It enters the run at TRANSCRIBED.
func NewBacklogFile(transcriptPath string) *File {
	return &File{TranscriptPath: transcriptPath, State: StateTranscribed}
}

// Advance moves the file to next, rejecting transitions the state
// machine does not allow.
func (f *File) Advance(next FileState) error {
	for _, allowed := range transitions[f.State] {
		if next == allowed {
			f.State = next
			return nil
		}
	}
	return fmt.Errorf("illegal state transition %s -> %s for %s", f.State, next, f.Stem())
}

// Retain moves the file to RETAINED with a reason. Terminal states stay
// as they are: a deleted source cannot become retained, and a retained
// reason is not overwritten.
func (f *File) Retain(reason string) {
	if f.State.IsTerminal() {
		return
	}
	f.State = StateRetained
	if f.Reason == "" {
		f.Reason = reason
	}
}

// Stem is the file's stable identity across source, transcript, and
// sidecar paths.
func (f *File) Stem() string {
	if f.Item.Stem != "" {
		return f.Item.Stem
	}
	return audio.Stem(f.TranscriptPath)
}

// HasSource reports whether a source recording exists for this file.
// Backlog transcripts have none; they are processed but never archived.
func (f *File) HasSource() bool {
	return f.Item.Path != ""
}
