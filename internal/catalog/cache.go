package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
)

// cacheDoc is the on-disk shape of the project cache.
type cacheDoc struct {
	FetchedAt time.Time `json:"fetched_at"`
	Entries   []Entry   `json:"entries"`
}

func readCache(path string) ([]Entry, time.Time, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- cache path comes from local configuration
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read project cache: %w", err)
	}
	var doc cacheDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode project cache: %w", err)
	}
	if doc.FetchedAt.IsZero() {
		return nil, time.Time{}, fmt.Errorf("decode project cache %s: missing fetched_at", path)
	}
	return doc.Entries, doc.FetchedAt, nil
}

// writeCache persists the project list atomically so a crash mid-write
// never leaves a truncated cache behind.
func writeCache(path string, entries []Entry, fetchedAt time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(cacheDoc{FetchedAt: fetchedAt, Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode project cache: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write project cache: %w", err)
	}
	return nil
}
