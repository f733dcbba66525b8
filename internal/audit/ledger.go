// Package audit provides the audit ledger: one persisted evaluation per
// source artifact, replaced atomically on every write.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fentz26/supportaudit/internal/metrics"
	"github.com/fentz26/supportaudit/internal/models"
	"github.com/fentz26/supportaudit/internal/store"
)

// ErrMissingSource is returned when an audit has no source name to key on.
var ErrMissingSource = errors.New("source name is required")

// Ledger writes and reads audit records.
type Ledger struct {
	store   *store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMetrics records ledger writes and wipes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the wall clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger creates a ledger over s.
func NewLedger(s *store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogAudit replaces whatever is stored for sourceName with result and
// returns the derived status.
func (l *Ledger) LogAudit(ctx context.Context, sourceName, auditType string, result models.AuditResult) (models.Status, error) {
	if strings.TrimSpace(sourceName) == "" {
		return "", ErrMissingSource
	}

	violations := result.Violations
	if violations == nil {
		violations = []string{}
	}
	status := models.DeriveStatus(result.Score, violations)

	rec := &models.AuditRecord{
		Timestamp:  l.now().Truncate(time.Second),
		SourceName: sourceName,
		AuditType:  auditType,
		Score:      result.Score,
		Violations: violations,
		Summary:    result.Summary,
		Status:     status,
	}
	if err := l.store.ReplaceAudit(ctx, rec); err != nil {
		return "", fmt.Errorf("log audit %q: %w", sourceName, err)
	}

	l.metrics.IncAuditsLogged(auditType, string(status))
	l.logger.Debug("audit logged", "source", sourceName, "id", rec.ID, "score", rec.Score, "status", status)
	return status, nil
}

// GetAllAudits returns every record, most recently written first.
func (l *Ledger) GetAllAudits(ctx context.Context) ([]models.AuditRecord, error) {
	audits, err := l.store.ListAudits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	return audits, nil
}

// GetAudit returns the record for sourceName, or store.ErrNotFound.
func (l *Ledger) GetAudit(ctx context.Context, sourceName string) (*models.AuditRecord, error) {
	return l.store.GetAudit(ctx, sourceName)
}

// ClearAllData irreversibly removes every record.
func (l *Ledger) ClearAllData(ctx context.Context) error {
	_, err := l.Clear(ctx)
	return err
}

// Clear removes every record and reports how many were removed.
func (l *Ledger) Clear(ctx context.Context) (int64, error) {
	n, err := l.store.DeleteAllAudits(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear audits: %w", err)
	}
	l.metrics.IncLedgerWipes()
	l.logger.Info("ledger cleared", "deleted", n)
	return n, nil
}

// Stats returns record counts per status.
func (l *Ledger) Stats(ctx context.Context) (map[models.Status]int, error) {
	return l.store.CountByStatus(ctx)
}

// Ping checks the backing store is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}
