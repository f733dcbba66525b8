// Package controlplane provides the HTTP API and service layer for the
// audit daemon.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fentz26/supportaudit/internal/audit"
	"github.com/fentz26/supportaudit/internal/auditor"
	"github.com/fentz26/supportaudit/internal/models"
	"github.com/fentz26/supportaudit/internal/store"
)

// Service provides the control plane business logic.
type Service struct {
	ledger  *audit.Ledger
	auditor *auditor.Client
}

// NewService creates a new control plane service. A nil auditor leaves
// evaluation unavailable.
func NewService(ledger *audit.Ledger, a *auditor.Client) *Service {
	if a == nil {
		a = auditor.New(nil)
	}
	return &Service{
		ledger:  ledger,
		auditor: a,
	}
}

// LogResult stores an already computed result.
func (s *Service) LogResult(ctx context.Context, sourceName, auditType string, result models.AuditResult) (models.Status, error) {
	if strings.TrimSpace(sourceName) == "" {
		return "", fmt.Errorf("%w: source_name is required", ErrInvalidRequest)
	}
	return s.ledger.LogAudit(ctx, sourceName, auditType, result)
}

// Evaluate scores transcript against policy and logs the result. An
// *extract.Failure is returned unchanged and nothing is logged.
func (s *Service) Evaluate(ctx context.Context, sourceName, auditType, transcript, policy string) (models.Status, models.AuditResult, error) {
	if strings.TrimSpace(sourceName) == "" {
		return "", models.AuditResult{}, fmt.Errorf("%w: source_name is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(transcript) == "" {
		return "", models.AuditResult{}, fmt.Errorf("%w: transcript is required", ErrInvalidRequest)
	}
	if !s.auditor.Configured() {
		return "", models.AuditResult{}, ErrScoringUnavailable
	}

	result, err := s.auditor.Audit(ctx, transcript, policy)
	if err != nil {
		return "", models.AuditResult{}, err
	}

	status, err := s.ledger.LogAudit(ctx, sourceName, auditType, result)
	if err != nil {
		return "", models.AuditResult{}, err
	}
	return status, result, nil
}

// ListAudits returns every audit, newest first.
func (s *Service) ListAudits(ctx context.Context) ([]models.AuditRecord, error) {
	return s.ledger.GetAllAudits(ctx)
}

// GetAudit returns the audit for sourceName.
func (s *Service) GetAudit(ctx context.Context, sourceName string) (*models.AuditRecord, error) {
	rec, err := s.ledger.GetAudit(ctx, sourceName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ClearAudits wipes the ledger.
func (s *Service) ClearAudits(ctx context.Context) (int64, error) {
	return s.ledger.Clear(ctx)
}

// Stats returns record counts per status.
func (s *Service) Stats(ctx context.Context) (map[models.Status]int, error) {
	return s.ledger.Stats(ctx)
}

// Ping checks the ledger is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.ledger.Ping(ctx)
}

// ScoringProvider names the configured scoring service.
func (s *Service) ScoringProvider() string {
	return s.auditor.Provider()
}
