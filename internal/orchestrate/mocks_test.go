package orchestrate_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/alnah/go-voicepipe/internal/audio"
	"github.com/alnah/go-voicepipe/internal/pipeline"
	"github.com/alnah/go-voicepipe/internal/transcribe"
)

// mockTranscriber answers per stem and records every call. The zero
// value is an available backend that transcribes everything.
type mockTranscriber struct {
	mu     sync.Mutex
	down   bool
	failed map[string]bool
	onCall func(stem string)
	calls  []string
}

func (m *mockTranscriber) Available(_ context.Context) bool { return !m.down }

func (m *mockTranscriber) Transcribe(ctx context.Context, path string, _ time.Duration) (transcribe.Result, error) {
	stem := audio.Stem(path)
	m.mu.Lock()
	m.calls = append(m.calls, stem)
	m.mu.Unlock()

	if m.onCall != nil {
		m.onCall(stem)
	}
	if err := ctx.Err(); err != nil {
		return transcribe.Result{}, err
	}
	if m.failed[stem] {
		return transcribe.Result{}, errors.New("backend exploded")
	}
	return transcribe.Result{Text: "transcribed " + stem, Backend: transcribe.BackendCloud}, nil
}

func (m *mockTranscriber) stems() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// mockProcessor emulates the pipeline contract: on success it writes a
// real sidecar document and returns the ids it put there.
type mockProcessor struct {
	mu     sync.Mutex
	outDir string
	failed map[string]error
	ids    map[string][]string
	dryRun bool
	calls  []string
}

func (m *mockProcessor) SidecarFor(stem string) string {
	return pipeline.SidecarPath(m.outDir, stem)
}

func (m *mockProcessor) Process(_ context.Context, transcriptPath, sourcePath string) (pipeline.Result, error) {
	stem := audio.Stem(transcriptPath)
	m.mu.Lock()
	m.calls = append(m.calls, stem)
	m.mu.Unlock()

	if err := m.failed[stem]; err != nil {
		return pipeline.Result{}, err
	}

	ids := m.ids[stem]
	if ids == nil {
		ids = []string{"rec-" + stem}
	}
	original := sourcePath
	if original == "" {
		original = transcriptPath
	}
	res := pipeline.Result{
		TranscriptPath: transcriptPath,
		Stem:           stem,
		Records:        len(ids),
		RemoteIDs:      ids,
		DryRun:         m.dryRun,
	}
	if m.dryRun {
		return res, nil
	}

	doc := pipeline.Sidecar{
		OriginalFile: original,
		Analysis: &pipeline.Analysis{
			Category:   "task",
			Title:      "From " + stem,
			Content:    "transcribed " + stem,
			Confidence: "high",
		},
		Routing:   &pipeline.Routing{Tags: []string{}, Icon: "✅"},
		RemoteID:  ids[0],
		Timestamp: time.Now().UTC(),
	}
	if len(ids) > 1 {
		doc.Analysis, doc.Routing, doc.RemoteID = nil, nil, ""
		for _, id := range ids {
			doc.Analyses = append(doc.Analyses, pipeline.Entry{
				Analysis: pipeline.Analysis{Category: "task", Title: "From " + stem, Confidence: "high"},
				Routing:  pipeline.Routing{Tags: []string{}},
				RemoteID: id,
			})
		}
	}

	res.SidecarPath = m.SidecarFor(stem)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return pipeline.Result{}, err
	}
	if err := os.MkdirAll(m.outDir, 0o750); err != nil {
		return pipeline.Result{}, err
	}
	if err := os.WriteFile(res.SidecarPath, data, 0o644); err != nil {
		return pipeline.Result{}, err
	}
	return res, nil
}

func (m *mockProcessor) stems() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// mockVerifier confirms every id except the ones scripted false or
// erroring.
type mockVerifier struct {
	mu      sync.Mutex
	missing map[string]bool
	failed  map[string]error
	calls   []string
}

func (m *mockVerifier) Verify(_ context.Context, remoteID string) (bool, error) {
	m.mu.Lock()
	m.calls = append(m.calls, remoteID)
	m.mu.Unlock()

	if err := m.failed[remoteID]; err != nil {
		return false, err
	}
	return !m.missing[remoteID], nil
}

// mockAdmitter denies the first deny admission checks, then admits.
type mockAdmitter struct {
	mu    sync.Mutex
	deny  int
	calls int
}

func (m *mockAdmitter) CanStartWorker() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.calls > m.deny
}
