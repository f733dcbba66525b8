package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fentz26/supportaudit/internal/audit"
	"github.com/fentz26/supportaudit/internal/auditor"
	"github.com/fentz26/supportaudit/internal/metrics"
	"github.com/fentz26/supportaudit/internal/models"
	"github.com/fentz26/supportaudit/internal/scoring"
	"github.com/fentz26/supportaudit/internal/store"
)

type stubScorer struct {
	reply string
	err   error
}

func (s stubScorer) Name() string { return "stub" }

func (s stubScorer) Score(context.Context, string) (string, error) {
	return s.reply, s.err
}

func TestHealthEndpoint_OK(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/health", "")

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if !health.OK {
		t.Error("Expected health.OK to be true")
	}
	if health.DB != "ok" {
		t.Errorf("Expected DB status 'ok', got '%s'", health.DB)
	}
	if health.Version == "" {
		t.Error("Expected version to be set")
	}
	if health.Time == "" {
		t.Error("Expected time to be set")
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("Expected a request id header")
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/health", "")

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestHealthEndpoint_DBError(t *testing.T) {
	s, st := newTestServer(t, nil)

	// Close the store to simulate DB error
	st.Close()

	w := do(t, s, http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}

	var health HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if health.OK || health.DB == "ok" {
		t.Errorf("Expected DB status to indicate error, got %+v", health)
	}
}

func TestAudits_ListEmpty(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/audits", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("Expected [], got %s", w.Body.String())
	}
}

func TestAudits_LogGetList(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/audits", `{"source_name":"a.txt","audit_type":"chat","result":{"score":85,"violations":[]}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var st statusResponse
	json.NewDecoder(w.Body).Decode(&st)
	if st.Status != models.StatusSolved {
		t.Errorf("Expected Solved, got %s", st.Status)
	}

	w = do(t, s, http.MethodPost, "/audits", `{"source_name":"b.txt","audit_type":"chat","raw":"`+"```json\\n{\\\"score\\\": 50}\\n```"+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, s, http.MethodGet, "/audits/b.txt", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var rec models.AuditRecord
	json.NewDecoder(w.Body).Decode(&rec)
	if rec.Score != 50 || rec.Status != models.StatusFlagged {
		t.Errorf("Unexpected record: %+v", rec)
	}

	w = do(t, s, http.MethodGet, "/audits", "")
	var list []models.AuditRecord
	json.NewDecoder(w.Body).Decode(&list)
	if len(list) != 2 || list[0].SourceName != "b.txt" {
		t.Errorf("Expected newest first, got %+v", list)
	}
}

func TestAudits_LogInvalid(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"no result", `{"source_name":"a.txt"}`, http.StatusBadRequest},
		{"null result", `{"source_name":"a.txt","result":null}`, http.StatusBadRequest},
		{"empty source", `{"source_name":" ","result":{"score":90}}`, http.StatusBadRequest},
		{"malformed raw", `{"source_name":"a.txt","raw":"I cannot comply."}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/audits", tt.body)
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	s, _ := newTestServer(t, nil)

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Errorf("Expected Start after Shutdown to return nil, got %v", err)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	s, _ := newTestServer(t, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func TestAudits_GetNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/audits/missing.txt", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestAudits_Evaluate(t *testing.T) {
	s, _ := newTestServer(t, stubScorer{reply: "```json\n{\"score\": 90, \"violations\": []}\n```"})

	w := do(t, s, http.MethodPost, "/audits/evaluate", `{"source_name":"call.txt","audit_type":"chat","transcript":"Agent: hi","policy":"Greet."}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var st statusResponse
	json.NewDecoder(w.Body).Decode(&st)
	if st.Status != models.StatusSolved || st.Result == nil || st.Result.Score != 90 {
		t.Errorf("Unexpected response: %+v", st)
	}
}

func TestAudits_EvaluateFailures(t *testing.T) {
	tests := []struct {
		name   string
		scorer scoring.Scorer
		status int
		kind   string
	}{
		{"unconfigured", nil, http.StatusServiceUnavailable, "not_configured"},
		{"malformed", stubScorer{reply: "I cannot comply."}, http.StatusUnprocessableEntity, "malformed"},
		{"upstream", stubScorer{err: errors.New("quota exceeded")}, http.StatusUnprocessableEntity, "upstream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, st := newTestServer(t, tt.scorer)

			w := do(t, s, http.MethodPost, "/audits/evaluate", `{"source_name":"call.txt","transcript":"Agent: hi"}`)
			if w.Code != tt.status {
				t.Fatalf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			var er errorResponse
			json.NewDecoder(w.Body).Decode(&er)
			if er.Kind != tt.kind || er.Error == "" {
				t.Errorf("Unexpected error body: %+v", er)
			}

			// Failures never reach the ledger.
			audits, _ := st.ListAudits(context.Background())
			if len(audits) != 0 {
				t.Errorf("Expected empty ledger, got %d records", len(audits))
			}
		})
	}
}

func TestAudits_ClearAndStats(t *testing.T) {
	s, _ := newTestServer(t, nil)

	do(t, s, http.MethodPost, "/audits", `{"source_name":"a","result":{"score":90}}`)
	do(t, s, http.MethodPost, "/audits", `{"source_name":"b","result":{"score":10}}`)

	w := do(t, s, http.MethodGet, "/stats", "")
	var stats struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"by_status"`
	}
	json.NewDecoder(w.Body).Decode(&stats)
	if stats.Total != 2 || stats.ByStatus["Solved"] != 1 || stats.ByStatus["Flagged"] != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	w = do(t, s, http.MethodDelete, "/audits", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"deleted":2}` {
		t.Errorf("Unexpected clear response %d: %s", w.Code, w.Body.String())
	}

	w = do(t, s, http.MethodGet, "/audits", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("Expected empty list after clear, got %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	do(t, s, http.MethodPost, "/audits", `{"source_name":"a","audit_type":"chat","result":{"score":90}}`)

	w := do(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `supportaudit_audits_logged_total{audit_type="chat",status="Solved"} 1`) {
		t.Errorf("Expected logged audit metric, got:\n%s", w.Body.String())
	}
}

func TestRequestID_ReusesHeader(t *testing.T) {
	s, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("Expected request id to be echoed, got %q", got)
	}
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func newTestServer(t *testing.T, scorer scoring.Scorer) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	m := metrics.New()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Failed to register metrics: %v", err)
	}

	a := auditor.New(scorer, auditor.WithMetrics(m))
	ledger := audit.NewLedger(st, audit.WithMetrics(m))
	return NewServer(NewService(ledger, a), "127.0.0.1:0", WithGatherer(reg)), st
}
