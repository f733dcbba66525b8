// Package auditor evaluates a transcript against policy text by asking the
// scoring service and extracting a structured result from its reply.
package auditor

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/fentz26/supportaudit/internal/extract"
	"github.com/fentz26/supportaudit/internal/metrics"
	"github.com/fentz26/supportaudit/internal/models"
	"github.com/fentz26/supportaudit/internal/scoring"
)

//go:embed prompt.tmpl
var promptText string

var promptTemplate = template.Must(template.New("prompt").Parse(promptText))

const defaultTimeout = 60 * time.Second

// Client runs policy audits through a scoring service.
type Client struct {
	scorer  scoring.Scorer
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each scoring call. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMetrics records scoring durations and extraction failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client. A nil scorer behaves as scoring.Unconfigured.
func New(scorer scoring.Scorer, opts ...Option) *Client {
	if scorer == nil {
		scorer = scoring.Unconfigured{}
	}
	c := &Client{
		scorer:  scorer,
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether audits can reach a scoring service.
func (c *Client) Configured() bool {
	return scoring.IsConfigured(c.scorer)
}

// Provider names the scoring service in use.
func (c *Client) Provider() string {
	return c.scorer.Name()
}

// BuildPrompt renders the audit prompt for transcript and policy.
func BuildPrompt(transcript, policy string) (string, error) {
	dims := make([]string, len(models.Dimensions))
	for i, d := range models.Dimensions {
		dims[i] = string(d)
	}

	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, struct {
		Transcript string
		Policy     string
		Dimensions []string
	}{transcript, policy, dims})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// Audit scores transcript against policy. Every error it returns is an
// *extract.Failure; nothing is retried.
func (c *Client) Audit(ctx context.Context, transcript, policy string) (models.AuditResult, error) {
	if !c.Configured() {
		return c.fail(extract.NotConfigured())
	}

	prompt, err := BuildPrompt(transcript, policy)
	if err != nil {
		return c.fail(extract.Malformed(err.Error()))
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := c.scorer.Score(ctx, prompt)
	c.metrics.ObserveScoringDuration(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, scoring.ErrNotConfigured) {
			return c.fail(extract.NotConfigured())
		}
		return c.fail(extract.Upstream(err))
	}

	result, err := extract.Extract(raw)
	if err != nil {
		return c.fail(err)
	}

	c.logger.Debug("audit scored", "provider", c.scorer.Name(), "score", result.Score, "violations", len(result.Violations))
	return result, nil
}

func (c *Client) fail(err error) (models.AuditResult, error) {
	kind := "unknown"
	if f, ok := extract.AsFailure(err); ok {
		kind = string(f.Kind)
	}
	c.metrics.IncExtractionFailures(kind)
	c.logger.Warn("audit produced no result", "provider", c.scorer.Name(), "kind", kind, "error", err)
	return models.AuditResult{}, err
}
