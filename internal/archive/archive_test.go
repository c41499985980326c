package archive_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alnah/go-voicepipe/internal/archive"
)

var wednesday = time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestArchiveCopiesAndMintsToken(t *testing.T) {
	usb := t.TempDir()
	store := archive.NewStore(filepath.Join(t.TempDir(), archive.DirName))
	src := writeSource(t, usb, "memo_001.wav", "RIFF fake audio payload")

	token, err := store.Archive(src, int64(len("RIFF fake audio payload")), wednesday, "session_20260819_100000")
	require.NoError(t, err)

	want := filepath.Join(store.Dir(), "2026-08-19", "session_20260819_100000", "memo_001.wav")
	assert.Equal(t, want, token.Archived())
	assert.Equal(t, src, token.Source())

	copied, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "RIFF fake audio payload", string(copied))
}

func TestArchiveSizeMismatchMintsNothing(t *testing.T) {
	usb := t.TempDir()
	store := archive.NewStore(filepath.Join(t.TempDir(), archive.DirName))
	src := writeSource(t, usb, "memo_001.wav", "short")

	// Discovery saw a bigger file than what the copy produces.
	_, err := store.Archive(src, 4096, wednesday, "session_x")
	require.ErrorIs(t, err, archive.ErrVerifyFailed)

	// The torn copy is cleaned up; the source stays.
	stray := filepath.Join(store.Dir(), "2026-08-19", "session_x", "memo_001.wav")
	_, statErr := os.Stat(stray)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(src)
	assert.NoError(t, statErr)
}

func TestArchiveMissingSource(t *testing.T) {
	store := archive.NewStore(filepath.Join(t.TempDir(), archive.DirName))
	_, err := store.Archive(filepath.Join(t.TempDir(), "gone.wav"), 10, wednesday, "session_x")
	assert.Error(t, err)
}

func TestDeleteRemovesSourceKeepsArchive(t *testing.T) {
	usb := t.TempDir()
	store := archive.NewStore(filepath.Join(t.TempDir(), archive.DirName))
	src := writeSource(t, usb, "memo_001.wav", "payload")

	token, err := store.Archive(src, int64(len("payload")), wednesday, "session_x")
	require.NoError(t, err)

	require.NoError(t, token.Delete())
	_, statErr := os.Stat(src)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(token.Archived())
	assert.NoError(t, statErr)

	// Deleting an already-gone source is not an error.
	assert.NoError(t, token.Delete())
}

func TestZeroTokenRefusesDeletion(t *testing.T) {
	var token archive.Deletable
	assert.ErrorIs(t, token.Delete(), archive.ErrNotVerified)
}

func TestResolveFindsQueuedCopy(t *testing.T) {
	usb := t.TempDir()
	store := archive.NewStore(filepath.Join(t.TempDir(), archive.DirName))
	src := writeSource(t, usb, "memo_001.wav", "payload")

	// An earlier session archived the file but its deletion never ran.
	archived, err := store.Archive(src, int64(len("payload")), wednesday.AddDate(0, 0, -3), "session_20260816_090000")
	require.NoError(t, err)

	token, err := store.Resolve(src)
	require.NoError(t, err)
	assert.Equal(t, src, token.Source())
	assert.Equal(t, archived.Archived(), token.Archived())
}

func TestResolveRejectsChangedSource(t *testing.T) {
	usb := t.TempDir()
	store := archive.NewStore(filepath.Join(t.TempDir(), archive.DirName))
	src := writeSource(t, usb, "memo_001.wav", "payload")

	_, err := store.Archive(src, int64(len("payload")), wednesday, "session_x")
	require.NoError(t, err)

	// Same name, different bytes: a new recording, not a leftover.
	require.NoError(t, os.WriteFile(src, []byte("a different, longer recording"), 0o644))

	_, err = store.Resolve(src)
	assert.ErrorIs(t, err, archive.ErrNoArchiveCopy)
}

func TestResolveMissingSource(t *testing.T) {
	store := archive.NewStore(filepath.Join(t.TempDir(), archive.DirName))
	_, err := store.Resolve(filepath.Join(t.TempDir(), "gone.wav"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestResolveEmptyTree(t *testing.T) {
	usb := t.TempDir()
	store := archive.NewStore(filepath.Join(t.TempDir(), archive.DirName))
	src := writeSource(t, usb, "memo_001.wav", "payload")

	_, err := store.Resolve(src)
	assert.ErrorIs(t, err, archive.ErrNoArchiveCopy)
}

func TestPruneRemovesOldPartitions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), archive.DirName)
	store := archive.NewStore(dir)
	for _, name := range []string{"2026-08-10", "2026-08-18", "2026-08-19", "notes"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, name, "session_x"), 0o750))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0o644))

	removed, err := store.Prune(time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "2026-08-10")}, removed)

	for _, name := range []string{"2026-08-18", "2026-08-19", "notes", "stray.txt"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(dir, "2026-08-10"))
	assert.True(t, os.IsNotExist(err))
}

func TestPruneMissingTree(t *testing.T) {
	store := archive.NewStore(filepath.Join(t.TempDir(), "absent"))
	removed, err := store.Prune(wednesday)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
