package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fentz26/supportaudit/internal/models"
)

// ExportFormat defines supported export formats.
type ExportFormat string

const (
	// ExportFormatCSV exports records as comma-separated values.
	ExportFormatCSV ExportFormat = "csv"
	// ExportFormatJSON exports records as a JSON array.
	ExportFormatJSON ExportFormat = "json"
)

// ExportOptions configures an export.
type ExportOptions struct {
	Format ExportFormat
	Status models.Status // optional filter
}

var csvHeader = []string{"id", "timestamp", "source_name", "audit_type", "score", "violations", "summary", "status"}

// Export renders every ledger record matching opts, newest first.
func Export(ctx context.Context, l *Ledger, opts ExportOptions) ([]byte, error) {
	if opts.Format != ExportFormatCSV && opts.Format != ExportFormatJSON {
		return nil, fmt.Errorf("unsupported export format: %s", opts.Format)
	}

	audits, err := l.GetAllAudits(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Status != "" {
		filtered := audits[:0]
		for _, a := range audits {
			if a.Status == opts.Status {
				filtered = append(filtered, a)
			}
		}
		audits = filtered
	}

	switch opts.Format {
	case ExportFormatJSON:
		return json.MarshalIndent(audits, "", "  ")
	default:
		return exportCSV(audits)
	}
}

func exportCSV(audits []models.AuditRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, a := range audits {
		ts := ""
		if !a.Timestamp.IsZero() {
			ts = a.Timestamp.Format(models.TimestampLayout)
		}
		row := []string{
			strconv.FormatInt(a.ID, 10),
			ts,
			a.SourceName,
			a.AuditType,
			strconv.Itoa(a.Score),
			strings.Join(a.Violations, "; "),
			a.Summary,
			string(a.Status),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
