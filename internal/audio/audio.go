// Package audio owns the source-recording types shared by the pipeline:
// discovered items on the recorder volume, their staged copies on fast
// local storage, and duration estimation.
package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Item is a discovered source recording. It is never mutated after
// discovery; the path must resolve to a regular readable file.
type Item struct {
	Path       string        // absolute path on the source volume
	Stem       string        // stable filename stem (identity)
	Size       int64         // bytes
	Duration   time.Duration // estimated (container header or size heuristic)
	DetectedAt time.Time
}

// Fingerprint identifies a recording across sessions: same stem and same
// size means the same recording re-presented.
func (i Item) Fingerprint() string {
	return fmt.Sprintf("%s:%d", i.Stem, i.Size)
}

// Staged is the local fast-disk copy of an Item used during transcription.
type Staged struct {
	Path        string // staged copy
	SourcePath  string // original on the source volume
	Fingerprint string
}

// Stem derives the stable filename stem from a path.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Discover scans dir for audio files with the given extension and returns
// them as Items sorted by name. Zero-byte files and files that cannot be
// opened for reading are skipped; the skipped list reports their paths.
func Discover(dir, ext string, bytesPerMinute int64, now time.Time) (items []Item, skipped []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	ext = strings.ToLower(ext)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}

		path := filepath.Join(dir, name)
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			skipped = append(skipped, path)
			continue
		}
		// Probe readability now; permission errors must surface at detect
		// time, not mid-transcription.
		f, err := os.Open(path) // #nosec G304 -- path comes from the configured recorder dir
		if err != nil {
			skipped = append(skipped, path)
			continue
		}
		_ = f.Close()

		items = append(items, Item{
			Path:       path,
			Stem:       Stem(path),
			Size:       info.Size(),
			Duration:   EstimateDuration(path, info.Size(), bytesPerMinute),
			DetectedAt: now,
		})
	}

	sort.Slice(items, func(a, b int) bool { return items[a].Path < items[b].Path })
	return items, skipped, nil
}

// StageTo copies item onto fast local storage under dir and verifies the
// copy by size before returning. The staged file keeps the source's base
// name so transcription output paths stay derivable from the stem.
func StageTo(item Item, dir string) (Staged, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Staged{}, fmt.Errorf("create staging dir: %w", err)
	}
	dst := filepath.Join(dir, filepath.Base(item.Path))

	written, err := copyFile(item.Path, dst)
	if err != nil {
		_ = os.Remove(dst)
		return Staged{}, fmt.Errorf("stage %s: %w", item.Stem, err)
	}

	// The staged copy must be byte-identical to the source at staging
	// time; a size mismatch means a torn copy and the staged file is
	// discarded.
	info, err := os.Stat(dst)
	if err != nil {
		return Staged{}, fmt.Errorf("stat staged copy: %w", err)
	}
	if written != item.Size || info.Size() != item.Size {
		_ = os.Remove(dst)
		return Staged{}, fmt.Errorf("stage %s: %w: wrote %d of %d bytes",
			item.Stem, ErrSizeMismatch, info.Size(), item.Size)
	}

	return Staged{
		Path:        dst,
		SourcePath:  item.Path,
		Fingerprint: item.Fingerprint(),
	}, nil
}

// Remove deletes the staged copy. Missing files are not an error: batch
// teardown may run after a successful per-file cleanup.
func (s Staged) Remove() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove staged copy: %w", err)
	}
	return nil
}

// copyFile copies src to dst, fsyncing before close so a later size check
// observes the final state. Returns the number of bytes written.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src) // #nosec G304 -- src is a discovered item path
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	// #nosec G304 -- dst is built from the configured staging dir
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}

	written, copyErr := io.Copy(out, in)
	syncErr := out.Sync()
	closeErr := out.Close()

	switch {
	case copyErr != nil:
		return written, copyErr
	case syncErr != nil:
		return written, syncErr
	case closeErr != nil:
		return written, closeErr
	}
	return written, nil
}
