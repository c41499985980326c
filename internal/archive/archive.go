// Package archive owns the safety-critical end of a run: copying a
// verified source into the date-partitioned archive tree, re-checking
// the copy on disk, and minting the deletion token that is the only way
// to remove a source recording.
package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/alnah/go-voicepipe/internal/logging"
)

// DirName is the archive tree's directory under the project root.
const DirName = "Recording Archives"

// DefaultRetentionDays is how long archived sessions are kept before
// pruning.
const DefaultRetentionDays = 7

const dateLayout = "2006-01-02"

// Store places archived recordings under dir/<YYYY-MM-DD>/<session-id>/.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore returns a Store rooted at dir, typically
// filepath.Join(projectRoot, DirName).
func NewStore(dir string) *Store {
	return &Store{
		dir: dir,
		log: logging.WithComponent("archive"),
	}
}

// Dir returns the archive tree root.
func (s *Store) Dir() string { return s.dir }

// Archive copies the source into day's session folder, re-reads the
// copy's size from disk, and only on a match mints the Deletable token
// for the source. size is the source's size at discovery; a mismatch at
// any point aborts without a token.
func (s *Store) Archive(sourcePath string, size int64, day time.Time, sessionID string) (Deletable, error) {
	destDir := filepath.Join(s.dir, day.Format(dateLayout), sessionID)
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return Deletable{}, fmt.Errorf("create archive dir: %w", err)
	}
	dest := filepath.Join(destDir, filepath.Base(sourcePath))

	if err := copyFile(sourcePath, dest); err != nil {
		_ = os.Remove(dest)
		return Deletable{}, fmt.Errorf("archive %s: %w", filepath.Base(sourcePath), err)
	}

	// The copy above already succeeded; this re-check is the verify step
	// the deletion token hangs on, so it goes back to the filesystem
	// instead of trusting the writer's return values.
	if err := verifyCopy(dest, size); err != nil {
		_ = os.Remove(dest)
		return Deletable{}, err
	}

	s.log.Debug().
		Str(logging.FieldEvent, "archive.copied").
		Str(logging.FieldSourcePath, sourcePath).
		Str(logging.FieldTargetPath, dest).
		Int64(logging.FieldSize, size).
		Send()

	return Deletable{source: sourcePath, archived: dest}, nil
}

// Resolve mints a token for a source queued from an earlier session by
// locating its archived copy in the tree. The copy must match the
// source's current size: a same-named file with a different size is a
// new recording, not a leftover, and gets no token.
func (s *Store) Resolve(sourcePath string) (Deletable, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return Deletable{}, fmt.Errorf("stat queued source: %w", err)
	}

	base := filepath.Base(sourcePath)
	var found string
	walkErr := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != base {
			return err
		}
		if verifyCopy(path, info.Size()) == nil {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return Deletable{}, fmt.Errorf("scan archive tree: %w", walkErr)
	}
	if found == "" {
		return Deletable{}, fmt.Errorf("%w for %s", ErrNoArchiveCopy, base)
	}
	return Deletable{source: sourcePath, archived: found}, nil
}

// Prune removes session folders whose date partition is older than
// cutoff's date. Partitions from cutoff's own day onward always stay,
// so the running session's archives are never touched. Returns the
// removed partition paths.
func (s *Store) Prune(cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive tree: %w", err)
	}

	cut := cutoff.Format(dateLayout)
	var removed []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, err := time.Parse(dateLayout, name); err != nil {
			continue
		}
		if name >= cut {
			continue
		}
		path := filepath.Join(s.dir, name)
		if err := os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf("prune archive partition %s: %w", name, err)
		}
		s.log.Info().
			Str(logging.FieldEvent, "archive.pruned").
			Str(logging.FieldPath, path).
			Send()
		removed = append(removed, path)
	}
	return removed, nil
}

// verifyCopy checks the archived path on disk: regular file, exact size.
func verifyCopy(path string, size int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerifyFailed, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrVerifyFailed, path)
	}
	if info.Size() != size {
		return fmt.Errorf("%w: %s has %d bytes, want %d", ErrVerifyFailed, path, info.Size(), size)
	}
	return nil
}

// copyFile copies src to dst, fsyncing before close so the verify step
// observes the final size.
func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- src is a discovered item path
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	// #nosec G304 -- dst is built from the configured archive dir
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(out, in)
	syncErr := out.Sync()
	closeErr := out.Close()

	switch {
	case copyErr != nil:
		return copyErr
	case syncErr != nil:
		return syncErr
	case closeErr != nil:
		return closeErr
	}
	return nil
}
