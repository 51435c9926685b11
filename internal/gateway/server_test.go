package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hostalia/concierge/internal/bus"
	"github.com/hostalia/concierge/internal/channels"
	"github.com/hostalia/concierge/internal/config"
	"github.com/hostalia/concierge/internal/kb"
	"github.com/hostalia/concierge/internal/store"
)

type memKBStore struct {
	entries []store.KBEntry
}

func (m *memKBStore) Add(_ context.Context, e store.KBEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memKBStore) Search(_ context.Context, query string, limit int) ([]store.KBEntry, error) {
	var out []store.KBEntry
	for _, e := range m.entries {
		if e.Topic == query {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memKBStore) List(_ context.Context, _ int) ([]store.KBEntry, error) {
	return m.entries, nil
}

func (m *memKBStore) Remove(_ context.Context, ids []string) (int, error) {
	return len(ids), nil
}

func newTestServer() *Server {
	kbStore := &memKBStore{entries: []store.KBEntry{
		{ID: "1", Topic: "desayuno", Content: "de 7 a 10"},
		{ID: "2", Topic: "parking", Content: "gratuito"},
	}}
	msgBus := bus.NewMessageBus()
	mgr := channels.NewManager(msgBus, nil)
	return NewServer(config.Default(), msgBus, mgr, kb.NewService(kbStore))
}

func TestHealth(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.BuildMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestStatusReportsQueues(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.BuildMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Queues map[string]int `json:"queues"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body.Queues["inbound"]; !ok {
		t.Errorf("missing inbound queue depth: %s", rec.Body.String())
	}
}

func TestKBListing(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.BuildMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/kb", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Count   int             `json:"count"`
		Entries []store.KBEntry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
}

func TestKBSearch(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.BuildMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/kb?q=parking", nil))

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
}

func TestKBMethodNotAllowed(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.BuildMux().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/kb", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestKBUnavailable(t *testing.T) {
	msgBus := bus.NewMessageBus()
	s := NewServer(config.Default(), msgBus, channels.NewManager(msgBus, nil), nil)
	rec := httptest.NewRecorder()
	s.BuildMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/kb", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestPMSEndpointsWithoutPMS(t *testing.T) {
	tests := []struct {
		name string
		path string
		want int
	}{
		{"availability unconfigured", "/v1/availability?check_in=2026-09-01&check_out=2026-09-03", http.StatusServiceUnavailable},
		{"rate unconfigured", "/v1/rate?room_type=doble&check_in=2026-09-01&check_out=2026-09-03", http.StatusServiceUnavailable},
		{"availability missing params", "/v1/availability", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			rec := httptest.NewRecorder()
			s.BuildMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
