package catalog

import (
	"context"
	"sync"
)

// stubSource is a controllable Source for tests.
type stubSource struct {
	mu      sync.Mutex
	entries []Entry
	err     error
	calls   int
}

func (s *stubSource) ListProjects(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.entries, nil
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
