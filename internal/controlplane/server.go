package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fentz26/supportaudit/internal/audit"
	"github.com/fentz26/supportaudit/internal/extract"
	"github.com/fentz26/supportaudit/internal/models"
)

// Version is reported by /health.
var Version = "dev"

const maxBodyBytes = 10 << 20

// Server provides the HTTP API for the audit daemon.
type Server struct {
	service  *Service
	addr     string
	server   *http.Server
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithGatherer serves metrics from g on /metrics.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, addr string, opts ...ServerOption) *Server {
	s := &Server{
		service: service,
		addr:    addr,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/audits", s.handleAudits)
	mux.HandleFunc("/audits/", s.handleAuditBySource)
	mux.HandleFunc("/stats", s.handleStats)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return requestID(logRequests(s.logger, mux))
}

// Start starts the HTTP server and blocks until it stops.
// Shutdown may be called before or concurrently with Start; a server shut
// down first returns nil from Start without serving.
func (s *Server) Start() error {
	s.logger.Info("starting audit daemon", "addr", s.addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Scoring string `json:"scoring"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		OK:      true,
		DB:      "ok",
		Scoring: s.service.ScoringProvider(),
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.service.Ping(ctx); err != nil {
		resp.OK = false
		resp.DB = "error: " + err.Error()
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

// handleAudits handles GET, POST and DELETE /audits.
func (s *Server) handleAudits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listAudits(w, r)
	case http.MethodPost:
		s.logAudit(w, r)
	case http.MethodDelete:
		s.clearAudits(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAuditBySource handles GET /audits/{source} and POST /audits/evaluate.
func (s *Server) handleAuditBySource(w http.ResponseWriter, r *http.Request) {
	source := strings.TrimPrefix(r.URL.Path, "/audits/")
	if source == "" {
		http.Error(w, "source name required", http.StatusBadRequest)
		return
	}

	switch {
	case source == "evaluate" && r.Method == http.MethodPost:
		s.evaluate(w, r)
	case r.Method == http.MethodGet:
		s.getAudit(w, r, source)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listAudits(w http.ResponseWriter, r *http.Request) {
	audits, err := s.service.ListAudits(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	if audits == nil {
		audits = []models.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, audits)
}

func (s *Server) getAudit(w http.ResponseWriter, r *http.Request, source string) {
	rec, err := s.service.GetAudit(r.Context(), source)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err, "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// logAuditRequest carries either a result object or the raw scoring reply.
type logAuditRequest struct {
	SourceName string          `json:"source_name"`
	AuditType  string          `json:"audit_type"`
	Result     json.RawMessage `json:"result,omitempty"`
	Raw        string          `json:"raw,omitempty"`
}

type statusResponse struct {
	Status models.Status       `json:"status"`
	Result *models.AuditResult `json:"result,omitempty"`
}

func (s *Server) logAudit(w http.ResponseWriter, r *http.Request) {
	var req logAuditRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}

	var result models.AuditResult
	var err error
	switch {
	case len(req.Result) > 0 && !bytes.Equal(bytes.TrimSpace(req.Result), []byte("null")):
		result, err = extract.Parse(string(req.Result))
	case req.Raw != "":
		result, err = extract.Extract(req.Raw)
	default:
		writeError(w, http.StatusBadRequest, errors.New("result or raw is required"), "")
		return
	}
	if err != nil {
		writeFailure(w, err)
		return
	}

	status, err := s.service.LogResult(r.Context(), req.SourceName, req.AuditType, result)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, statusResponse{Status: status})
}

type evaluateRequest struct {
	SourceName string `json:"source_name"`
	AuditType  string `json:"audit_type"`
	Transcript string `json:"transcript"`
	Policy     string `json:"policy"`
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}

	status, result, err := s.service.Evaluate(r.Context(), req.SourceName, req.AuditType, req.Transcript, req.Policy)
	if err != nil {
		if _, ok := extract.AsFailure(err); ok {
			writeFailure(w, err)
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, statusResponse{Status: status, Result: &result})
}

func (s *Server) clearAudits(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.ClearAudits(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}

	total := 0
	for _, n := range stats {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     total,
		"by_status": stats,
	})
}

// --- helpers ---

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid json")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error, kind string) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

// writeFailure maps an extraction failure: 503 when no scoring service is
// configured, 422 otherwise.
func writeFailure(w http.ResponseWriter, err error) {
	f, ok := extract.AsFailure(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	status := http.StatusUnprocessableEntity
	if f.Kind == extract.KindNotConfigured {
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, err, string(f.Kind))
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, audit.ErrMissingSource):
		writeError(w, http.StatusBadRequest, err, "")
	case errors.Is(err, ErrScoringUnavailable):
		writeError(w, http.StatusServiceUnavailable, err, string(extract.KindNotConfigured))
	default:
		writeError(w, http.StatusInternalServerError, err, "")
	}
}
