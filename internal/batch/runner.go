package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/fentz26/supportaudit/internal/audit"
	"github.com/fentz26/supportaudit/internal/extract"
	"github.com/fentz26/supportaudit/internal/models"
	"github.com/fentz26/supportaudit/internal/sources"
)

// Auditor scores one transcript against policy text.
type Auditor interface {
	Audit(ctx context.Context, transcript, policy string) (models.AuditResult, error)
}

// Job is one transcript to audit.
type Job struct {
	Path string
	// AuditType overrides the type inferred from the file extension.
	AuditType string
}

// Outcome is the result of one job. Exactly one of Status, Failure or Err
// is meaningful: Failure means the scoring reply yielded no result and
// nothing was written; Err means loading or storage failed.
type Outcome struct {
	Job        Job              `json:"job"`
	SourceName string           `json:"source_name"`
	WorkerID   string           `json:"worker_id"`
	Status     models.Status    `json:"status,omitempty"`
	Score      int              `json:"score"`
	Failure    *extract.Failure `json:"failure,omitempty"`
	Err        error            `json:"-"`
}

// OK reports whether the job was audited and logged.
func (o Outcome) OK() bool {
	return o.Failure == nil && o.Err == nil
}

// Stats is a snapshot of runner activity.
type Stats struct {
	ActiveWorkers int    `json:"active_workers"`
	PeakWorkers   int    `json:"peak_workers"`
	MaxWorkers    int    `json:"max_workers"`
	LastRunID     string `json:"last_run_id,omitempty"`
}

// Runner dispatches jobs to a bounded pool of workers.
type Runner struct {
	ledger  *audit.Ledger
	auditor Auditor
	source  sources.Source
	config  *Config
	logger  *slog.Logger

	mu            sync.Mutex
	activeWorkers int
	peakWorkers   int
	lastRunID     string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a runner.
func New(ledger *audit.Ledger, auditor Auditor, source sources.Source, cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	r := &Runner{
		ledger:  ledger,
		auditor: auditor,
		source:  source,
		config:  cfg,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run audits every job against policy and returns outcomes in job order.
// Cancelling ctx stops dispatching; jobs already running finish, and the
// rest report ctx's error.
func (r *Runner) Run(ctx context.Context, policy string, jobs []Job) []Outcome {
	runID := uuid.New().String()
	logger := r.logger.With("run_id", runID)

	r.mu.Lock()
	r.lastRunID = runID
	r.mu.Unlock()

	logger.Info("batch started", "jobs", len(jobs), "max_workers", r.config.workers())

	outcomes := make([]Outcome, len(jobs))
	sem := make(chan struct{}, r.config.workers())
	var wg sync.WaitGroup

	for i, job := range jobs {
		acquired := false
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
			acquired = true
		}
		if err := ctx.Err(); err != nil {
			if acquired {
				<-sem
			}
			for j := i; j < len(jobs); j++ {
				outcomes[j] = Outcome{Job: jobs[j], Err: err}
			}
			break
		}

		r.mu.Lock()
		r.activeWorkers++
		if r.activeWorkers > r.peakWorkers {
			r.peakWorkers = r.activeWorkers
		}
		r.mu.Unlock()

		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			defer func() {
				r.mu.Lock()
				r.activeWorkers--
				r.mu.Unlock()
				<-sem
			}()
			outcomes[i] = r.runJob(context.WithoutCancel(ctx), logger, policy, job)
		}(i, job)
	}

	wg.Wait()

	var logged, failed, errored int
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			errored++
		case o.Failure != nil:
			failed++
		default:
			logged++
		}
	}
	logger.Info("batch finished", "logged", logged, "failed", failed, "errors", errored)
	return outcomes
}

// runJob loads, audits and logs one transcript.
func (r *Runner) runJob(ctx context.Context, logger *slog.Logger, policy string, job Job) Outcome {
	out := Outcome{Job: job, WorkerID: uuid.New().String()}
	logger = logger.With("worker_id", out.WorkerID, "path", job.Path)

	t, err := r.source.LoadTranscript(ctx, job.Path)
	if err != nil {
		logger.Warn("load transcript failed", "error", err)
		out.Err = err
		return out
	}
	out.SourceName = t.SourceName

	auditType := job.AuditType
	if auditType == "" {
		auditType = t.AuditType
	}

	result, err := r.auditor.Audit(ctx, t.Text, policy)
	if err != nil {
		var f *extract.Failure
		if errors.As(err, &f) {
			// Nothing is logged: a zeroed record would read as a real score of 0.
			out.Failure = f
			return out
		}
		out.Err = err
		return out
	}

	status, err := r.ledger.LogAudit(ctx, t.SourceName, auditType, result)
	if err != nil {
		logger.Error("log audit failed", "error", err)
		out.Err = err
		return out
	}
	out.Status = status
	out.Score = result.Score
	logger.Debug("job done", "source", t.SourceName, "status", status, "score", result.Score)
	return out
}

// Stats returns current runner statistics.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		ActiveWorkers: r.activeWorkers,
		PeakWorkers:   r.peakWorkers,
		MaxWorkers:    r.config.workers(),
		LastRunID:     r.lastRunID,
	}
}
