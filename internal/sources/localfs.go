package sources

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrEmptyTranscript is returned for a transcript with no text.
	ErrEmptyTranscript = errors.New("transcript is empty")
	// ErrNotAllowed is returned for a file outside the extension allowlist.
	ErrNotAllowed = errors.New("file type not allowed")
	// ErrTooLarge is returned for a file above the size limit.
	ErrTooLarge = errors.New("file too large")
)

const defaultMaxBytes = 5 << 20

// allowedExtensions maps readable extensions to the audit type they imply.
var allowedExtensions = map[string]string{
	".txt":  AuditTypeChat,
	".md":   AuditTypeChat,
	".log":  AuditTypeChat,
	".json": AuditTypeChat,
	".csv":  AuditTypeChat,
	".vtt":  AuditTypeAudio,
	".srt":  AuditTypeAudio,
}

var _ Source = (*LocalFS)(nil)

// LocalFS reads transcripts and policies from the local filesystem.
type LocalFS struct {
	root     string
	maxBytes int64
}

// LocalFSOption configures a LocalFS.
type LocalFSOption func(*LocalFS)

// WithMaxBytes caps the size of a single file.
func WithMaxBytes(n int64) LocalFSOption {
	return func(l *LocalFS) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// NewLocalFS creates a LocalFS resolving relative paths against root.
// An empty root means the working directory.
func NewLocalFS(root string, opts ...LocalFSOption) *LocalFS {
	l := &LocalFS{root: root, maxBytes: defaultMaxBytes}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the source identifier.
func (l *LocalFS) Name() string {
	return "localfs"
}

// IsAllowed checks if path has an allowlisted extension.
func (l *LocalFS) IsAllowed(path string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// AuditTypeFor infers the audit type from path's extension.
func AuditTypeFor(path string) string {
	if t, ok := allowedExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return AuditTypeChat
}

// LoadTranscript reads the transcript at path.
func (l *LocalFS) LoadTranscript(ctx context.Context, path string) (*Transcript, error) {
	text, err := l.read(ctx, path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyTranscript)
	}

	return &Transcript{
		SourceName: filepath.Base(path),
		Path:       l.resolve(path),
		AuditType:  AuditTypeFor(path),
		Text:       text,
	}, nil
}

// LoadPolicy reads a policy file, or concatenates every allowed file of a
// policy directory in lexical order under "## <file>" headers.
func (l *LocalFS) LoadPolicy(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(l.resolve(path))
	if err != nil {
		return "", fmt.Errorf("stat policy: %w", err)
	}
	if !info.IsDir() {
		return l.read(ctx, path)
	}

	files, err := l.ListTranscripts(path)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, f := range files {
		text, err := l.read(ctx, f)
		if err != nil {
			return "", err
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(filepath.Base(f))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(text))
	}
	return b.String(), nil
}

// ListTranscripts returns the allowed regular files directly inside dir,
// sorted by name. Returned paths are dir joined with the file name.
func (l *LocalFS) ListTranscripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(l.resolve(dir))
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !l.IsAllowed(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (l *LocalFS) resolve(path string) string {
	if l.root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.root, path)
}

func (l *LocalFS) read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !l.IsAllowed(path) {
		return "", fmt.Errorf("%s: %w", path, ErrNotAllowed)
	}

	full := l.resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > l.maxBytes {
		return "", fmt.Errorf("%s (%d bytes): %w", path, info.Size(), ErrTooLarge)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
