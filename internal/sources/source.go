// Package sources loads transcripts and policy text for audits.
package sources

import "context"

// Audit types inferred from a transcript's file extension.
const (
	AuditTypeChat  = "chat"
	AuditTypeAudio = "audio"
)

// Transcript is one interaction ready for auditing.
type Transcript struct {
	// SourceName keys the audit record; the base file name.
	SourceName string `json:"source_name"`
	Path       string `json:"path"`
	AuditType  string `json:"audit_type"`
	Text       string `json:"text"`
}

// Source defines where transcripts and policies come from.
type Source interface {
	// Name returns the source identifier.
	Name() string

	// IsAllowed checks if a path may be read.
	IsAllowed(path string) bool

	// LoadTranscript reads one transcript.
	LoadTranscript(ctx context.Context, path string) (*Transcript, error)

	// LoadPolicy reads the policy text from a file or directory.
	LoadPolicy(ctx context.Context, path string) (string, error)
}
