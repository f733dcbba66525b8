// Package models defines the core domain types for supportaudit.
package models

import "time"

// Status is the review state derived for an audit record.
type Status string

const (
	StatusFlagged Status = "Flagged"
	StatusSolved  Status = "Solved"
)

// FlagThreshold is the lowest score that can still be Solved.
const FlagThreshold = 70

// DeriveStatus flags a result when its score is below FlagThreshold or any
// violation was reported.
func DeriveStatus(score int, violations []string) Status {
	if score < FlagThreshold || len(violations) > 0 {
		return StatusFlagged
	}
	return StatusSolved
}

// Dimension names one sub-score of the breakdown.
type Dimension string

const (
	DimensionEmpathy         Dimension = "empathy"
	DimensionProfessionalism Dimension = "professionalism"
	DimensionClarity         Dimension = "clarity"
	DimensionResolution      Dimension = "resolution"
	DimensionCompliance      Dimension = "compliance"
)

// Dimensions lists the breakdown dimensions in prompt order.
var Dimensions = []Dimension{
	DimensionEmpathy,
	DimensionProfessionalism,
	DimensionClarity,
	DimensionResolution,
	DimensionCompliance,
}

// IsDimension reports whether name is one of the fixed breakdown dimensions.
func IsDimension(name string) bool {
	for _, d := range Dimensions {
		if string(d) == name {
			return true
		}
	}
	return false
}

// AuditResult is the structured outcome of scoring one interaction.
type AuditResult struct {
	Score       int               `json:"score"`
	Breakdown   map[Dimension]int `json:"breakdown"`
	Violations  []string          `json:"violations"`
	Suggestions []string          `json:"suggestions"`
	Summary     string            `json:"summary"`
}

// NewAuditResult returns a zero result with empty, non-nil collections.
func NewAuditResult() AuditResult {
	return AuditResult{
		Breakdown:   map[Dimension]int{},
		Violations:  []string{},
		Suggestions: []string{},
	}
}

// AuditRecord is one persisted audit, keyed by SourceName.
type AuditRecord struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	SourceName string    `json:"source_name"`
	AuditType  string    `json:"audit_type"` // "audio" or "chat"
	Score      int       `json:"score"`
	Violations []string  `json:"violations"`
	Summary    string    `json:"summary"`
	Status     Status    `json:"status"`
}

// TimestampLayout is the persisted timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"
