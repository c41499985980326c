package pipeline_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/alnah/go-voicepipe/internal/analyze"
	"github.com/alnah/go-voicepipe/internal/parse"
	"github.com/alnah/go-voicepipe/internal/route"
)

// mockAnalyzer satisfies analyze.Analyzer with a fixed outcome.
type mockAnalyzer struct {
	mu      sync.Mutex
	parsed  []parse.Parsed
	records []analyze.Record
	err     error
}

func (m *mockAnalyzer) Analyze(_ context.Context, p parse.Parsed) ([]analyze.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parsed = append(m.parsed, p)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]analyze.Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *mockAnalyzer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.parsed)
}

func (m *mockAnalyzer) lastParsed() parse.Parsed {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.parsed) == 0 {
		return parse.Parsed{}
	}
	return m.parsed[len(m.parsed)-1]
}

// mockRouter wraps each record in a Routed with a fixed decision.
type mockRouter struct {
	mu       sync.Mutex
	records  []analyze.Record
	decision route.Decision
	err      error
}

func (m *mockRouter) Route(_ context.Context, rec analyze.Record) (route.Routed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	if m.err != nil {
		return route.Routed{}, m.err
	}
	return route.Routed{Record: rec, Decision: m.decision}, nil
}

// storeResult is one scripted create outcome.
type storeResult struct {
	id  string
	err error
}

// mockStore satisfies pipeline.RecordStore, replaying scripted create
// results in order and repeating the last one when exhausted. Verify
// answers from the verdicts map, defaulting to true.
type mockStore struct {
	mu        sync.Mutex
	created   []route.Routed
	verified  []string
	results   []storeResult
	idx       int
	verdicts  map[string]bool
	verifyErr error
}

func (m *mockStore) Create(_ context.Context, routed route.Routed) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.created = append(m.created, routed)

	var res storeResult
	switch {
	case m.idx < len(m.results):
		res = m.results[m.idx]
		m.idx++
	case len(m.results) > 0:
		res = m.results[len(m.results)-1]
	default:
		res = storeResult{id: fmt.Sprintf("rec-%d", len(m.created))}
	}
	return res.id, res.err
}

func (m *mockStore) Verify(_ context.Context, remoteID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.verified = append(m.verified, remoteID)
	if m.verifyErr != nil {
		return false, m.verifyErr
	}
	if verdict, ok := m.verdicts[remoteID]; ok {
		return verdict, nil
	}
	return true, nil
}

func (m *mockStore) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

func (m *mockStore) verifyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.verified)
}
