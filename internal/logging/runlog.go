package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunLog is the per-run JSON log file under the logs directory. It is meant
// to sit behind a zerolog.MultiLevelWriter next to the console writer so a
// full machine-readable trace of every run survives on disk.
type RunLog struct {
	Path string
	file *os.File
}

// OpenRunLog creates logs/run_<YYYYMMDD>_<HHMMSS>.log under dir, creating
// the directory if needed. The file is opened in append mode so a name
// collision never destroys an earlier trace.
func OpenRunLog(dir string, now time.Time) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0750); err != nil { // #nosec G301 -- user log dir
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run_%s.log", now.Format("20060102_150405")))

	// #nosec G304 -- path is built from the configured log dir, not user input
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	return &RunLog{Path: path, file: f}, nil
}

func (r *RunLog) Write(p []byte) (int, error) {
	return r.file.Write(p)
}

func (r *RunLog) Close() error {
	return r.file.Close()
}
