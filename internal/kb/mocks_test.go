package kb_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-voicepipe/internal/kb"
)

// mockKBServer returns predefined responses in sequence, repeating the
// last one when exhausted, and records every call for assertions.
type mockKBServer struct {
	*httptest.Server
	mu          sync.Mutex
	calls       []kbCall
	responses   []mockResponse
	responseIdx int
}

type kbCall struct {
	Method  string
	Path    string
	Auth    string
	Version string
	Body    []byte
}

type mockResponse struct {
	statusCode int
	header     http.Header
	body       any
}

func newMockKBServer() *mockKBServer {
	m := &mockKBServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		body, _ := io.ReadAll(r.Body)
		m.calls = append(m.calls, kbCall{
			Method:  r.Method,
			Path:    r.URL.Path,
			Auth:    r.Header.Get("Authorization"),
			Version: r.Header.Get("Notion-Version"),
			Body:    body,
		})

		var resp mockResponse
		switch {
		case m.responseIdx < len(m.responses):
			resp = m.responses[m.responseIdx]
			m.responseIdx++
		case len(m.responses) > 0:
			resp = m.responses[len(m.responses)-1]
		default:
			resp = mockResponse{statusCode: http.StatusOK, body: map[string]any{"id": "page-1"}}
		}

		for k, vs := range resp.header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.statusCode)
		_ = json.NewEncoder(w).Encode(resp.body)
	}))
	return m
}

func (m *mockKBServer) addResponse(statusCode int, body any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{statusCode: statusCode, body: body})
}

func (m *mockKBServer) addResponseWithHeader(statusCode int, body any, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := http.Header{}
	h.Set(key, value)
	m.responses = append(m.responses, mockResponse{statusCode: statusCode, header: h, body: body})
}

func (m *mockKBServer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockKBServer) call(i int) kbCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.calls) {
		return kbCall{}
	}
	return m.calls[i]
}

func (m *mockKBServer) lastCall() kbCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return kbCall{}
	}
	return m.calls[len(m.calls)-1]
}

// decodeBody unmarshals a recorded request body into a generic map.
func decodeBody(t *testing.T, call kbCall) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(call.Body, &out); err != nil {
		t.Fatalf("unmarshal recorded body: %v", err)
	}
	return out
}

// mustNewClient creates a Client with fast retries against srv.
func mustNewClient(t *testing.T, srv *mockKBServer, opts ...kb.ClientOption) *kb.Client {
	t.Helper()
	opts = append([]kb.ClientOption{
		kb.WithBaseURL(srv.URL),
		kb.WithRetryDelays(time.Millisecond, time.Millisecond),
	}, opts...)
	c, err := kb.NewClient("secret-token", opts...)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func testCollections() kb.Collections {
	return kb.Collections{
		Tasks:    "db-tasks",
		Notes:    "db-notes",
		Research: "db-research",
		Projects: "db-projects",
	}
}

// pageBody builds a query-result page with a title property.
func pageBody(id, title string, archived bool) map[string]any {
	return map[string]any{
		"id":       id,
		"archived": archived,
		"properties": map[string]any{
			"Name": map[string]any{
				"title": []map[string]any{
					{"type": "text", "text": map[string]any{"content": title}, "plain_text": title},
				},
			},
		},
	}
}
