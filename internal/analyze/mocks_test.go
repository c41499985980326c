package analyze_test

import (
	"context"
	"sync"

	"github.com/alnah/go-voicepipe/internal/llm"
)

// llmResult is one scripted completion outcome.
type llmResult struct {
	reply string
	err   error
}

// mockLLM satisfies llm.Client, replaying scripted results in order and
// repeating the last one when exhausted.
type mockLLM struct {
	mu      sync.Mutex
	reqs    []llm.Request
	results []llmResult
	idx     int
}

func (m *mockLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reqs = append(m.reqs, req)

	var res llmResult
	switch {
	case m.idx < len(m.results):
		res = m.results[m.idx]
		m.idx++
	case len(m.results) > 0:
		res = m.results[len(m.results)-1]
	}
	return res.reply, res.err
}

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reqs)
}

func (m *mockLLM) req(i int) llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.reqs) {
		return llm.Request{}
	}
	return m.reqs[i]
}
