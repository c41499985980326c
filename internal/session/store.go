package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// Store owns the journal file. Every mutation is persisted with an
// atomic write-rename before it returns, so a crash never observes a
// half-written journal.
type Store struct {
	mu   sync.Mutex
	path string
	doc  document
}

// Open loads the journal at path, or starts an empty one when the file
// does not exist yet. A journal that exists but cannot be decoded is an
// error: silently discarding it would erase the duplicate history that
// keeps re-presented files from creating second records.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path) // #nosec G304 -- journal path comes from local configuration
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session journal: %w", err)
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("decode session journal %s: %w", path, err)
	}
	return s, nil
}

// Path returns the journal file location.
func (s *Store) Path() string { return s.path }

// Begin opens a new session started at now. A current session left over
// from a crashed run is closed first with every cleanup candidate kept
// as pending deletion: its archived copies were verified but whether the
// sources were removed is unknown, and a duplicate skip is cheaper than
// a second record.
func (s *Store) Begin(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.Current != nil {
		s.closeCurrent(now, s.doc.Current.CleanupCandidates)
	}
	s.doc.Current = &Current{
		SessionID: NewID(now),
		StartedAt: now,
	}
	return s.save()
}

// ID returns the open session's id, or "" when none is open.
func (s *Store) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Current == nil {
		return ""
	}
	return s.doc.Current.SessionID
}

// Current returns a copy of the open session.
func (s *Store) Current() (Current, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Current == nil {
		return Current{}, false
	}
	cur := *s.doc.Current
	cur.Discovered = cloneStrings(cur.Discovered)
	cur.Staged = cloneStrings(cur.Staged)
	cur.Transcribed = cloneStrings(cur.Transcribed)
	cur.AnalyzedOK = cloneStrings(cur.AnalyzedOK)
	cur.AnalyzedFail = cloneStrings(cur.AnalyzedFail)
	cur.DuplicatesSkipped = cloneStrings(cur.DuplicatesSkipped)
	cur.CleanupCandidates = cloneStrings(cur.CleanupCandidates)
	cur.Fingerprints = cloneStrings(cur.Fingerprints)
	return cur, true
}

// AddDiscovered records files found on the source volume.
func (s *Store) AddDiscovered(paths ...string) error {
	return s.appendTo(func(c *Current) { c.Discovered = append(c.Discovered, paths...) })
}

// AddStaged records files copied to local fast storage.
func (s *Store) AddStaged(paths ...string) error {
	return s.appendTo(func(c *Current) { c.Staged = append(c.Staged, paths...) })
}

// AddTranscribed records files whose transcript was produced.
func (s *Store) AddTranscribed(paths ...string) error {
	return s.appendTo(func(c *Current) { c.Transcribed = append(c.Transcribed, paths...) })
}

// AddAnalyzedOK records files whose analysis produced a remote record.
func (s *Store) AddAnalyzedOK(paths ...string) error {
	return s.appendTo(func(c *Current) { c.AnalyzedOK = append(c.AnalyzedOK, paths...) })
}

// AddAnalyzedFail records files whose analysis failed; their sources are
// retained.
func (s *Store) AddAnalyzedFail(paths ...string) error {
	return s.appendTo(func(c *Current) { c.AnalyzedFail = append(c.AnalyzedFail, paths...) })
}

// AddDuplicateSkipped records files skipped because an earlier session
// already processed them.
func (s *Store) AddDuplicateSkipped(paths ...string) error {
	return s.appendTo(func(c *Current) { c.DuplicatesSkipped = append(c.DuplicatesSkipped, paths...) })
}

// AddCleanupCandidate records a source whose archived copy verified, so
// it is eligible for deletion. The fingerprint makes the file a
// duplicate in later sessions even if deletion never completes.
func (s *Store) AddCleanupCandidate(path, fingerprint string) error {
	return s.appendTo(func(c *Current) {
		c.CleanupCandidates = append(c.CleanupCandidates, path)
		c.Fingerprints = append(c.Fingerprints, fingerprint)
	})
}

// MarkStageComplete sets one of the checkpoint flags.
func (s *Store) MarkStageComplete(flag StageFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Current == nil {
		return ErrNoSession
	}
	switch flag {
	case FlagTranscriptionComplete:
		s.doc.Current.StageFlags.TranscriptionComplete = true
	case FlagProcessingComplete:
		s.doc.Current.StageFlags.ProcessingComplete = true
	case FlagArchiveComplete:
		s.doc.Current.StageFlags.ArchiveComplete = true
	case FlagCleanupReady:
		s.doc.Current.StageFlags.CleanupReady = true
	default:
		return fmt.Errorf("unknown stage flag %q", flag)
	}
	return s.save()
}

// IsDuplicate reports whether any earlier session processed a file with
// this fingerprint.
func (s *Store) IsDuplicate(fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, prev := range s.doc.PreviousSessions {
		for _, fp := range prev.Fingerprints {
			if fp == fingerprint {
				return true
			}
		}
	}
	return false
}

// Close ends the open session at now. pendingDeletions lists sources
// whose deletion did not complete; they move into the closed session's
// record and onto the cross-session deletion queue so the next run can
// retry them.
func (s *Store) Close(now time.Time, pendingDeletions []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Current == nil {
		return ErrNoSession
	}
	s.closeCurrent(now, pendingDeletions)
	return s.save()
}

// PendingDeletions returns the cross-session deletion queue.
func (s *Store) PendingDeletions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneStrings(s.doc.ArchiveManagement.FilesToDelete)
}

// MarkDeleted removes resolved paths from the deletion queue and stamps
// the cleanup time. A path counts as resolved whether it was removed or
// found already gone.
func (s *Store) MarkDeleted(now time.Time, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := make(map[string]bool, len(paths))
	for _, p := range paths {
		done[p] = true
	}
	var remaining []string
	for _, p := range s.doc.ArchiveManagement.FilesToDelete {
		if !done[p] {
			remaining = append(remaining, p)
		}
	}
	s.doc.ArchiveManagement.FilesToDelete = remaining
	s.doc.ArchiveManagement.DeletionScheduled = len(remaining) > 0
	s.doc.ArchiveManagement.LastCleanup = now
	return s.save()
}

// PruneClosed drops closed sessions older than cutoff that have no
// pending deletions left. Their fingerprints leave the duplicate window
// with them, matching the archive retention horizon.
func (s *Store) PruneClosed(cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.doc.PreviousSessions[:0]
	for _, prev := range s.doc.PreviousSessions {
		if prev.ClosedAt.Before(cutoff) && len(prev.FilesToDelete) == 0 {
			continue
		}
		kept = append(kept, prev)
	}
	s.doc.PreviousSessions = kept
	return s.save()
}

// closeCurrent freezes the open session into the previous-sessions list.
// Caller holds the lock.
func (s *Store) closeCurrent(now time.Time, pendingDeletions []string) {
	cur := s.doc.Current
	s.doc.PreviousSessions = append(s.doc.PreviousSessions, Closed{
		SessionID:     cur.SessionID,
		StartedAt:     cur.StartedAt,
		ClosedAt:      now,
		CleanupDate:   now,
		FilesToDelete: cloneStrings(pendingDeletions),
		Fingerprints:  cloneStrings(cur.Fingerprints),
	})
	if len(pendingDeletions) > 0 {
		s.doc.ArchiveManagement.FilesToDelete = append(
			s.doc.ArchiveManagement.FilesToDelete, pendingDeletions...)
		s.doc.ArchiveManagement.DeletionScheduled = true
	}
	s.doc.Current = nil
}

func (s *Store) appendTo(mutate func(*Current)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Current == nil {
		return ErrNoSession
	}
	mutate(s.doc.Current)
	return s.save()
}

// save persists the journal atomically. Caller holds the lock.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session journal: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write session journal: %w", err)
	}
	return nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
