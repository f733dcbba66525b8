package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fentz26/supportaudit/internal/batch"
	"github.com/fentz26/supportaudit/internal/models"
	"github.com/fentz26/supportaudit/internal/sources"
)

var (
	policyPath string
	auditType  string
	maxWorkers int
)

var auditCmd = &cobra.Command{
	Use:   "audit <path>...",
	Short: "Audit transcript files or directories against policy",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&policyPath, "policy", "", "Policy file or directory (required)")
	auditCmd.Flags().StringVar(&auditType, "type", "", "Audit type (default: inferred from extension)")
	auditCmd.Flags().IntVar(&maxWorkers, "workers", 0, "Concurrent audits (overrides config)")
	auditCmd.MarkFlagRequired("policy")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fs := sources.NewLocalFS("")

	policy, err := fs.LoadPolicy(ctx, policyPath)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	jobs, err := expandJobs(fs, args, auditType)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no transcript files found")
	}

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	workers := cfg.Batch.MaxWorkers
	if maxWorkers > 0 {
		workers = maxWorkers
	}
	runner := batch.New(a.ledger, a.auditor, fs, &batch.Config{MaxWorkers: workers})

	outcomes := runner.Run(ctx, policy, jobs)
	failed := printOutcomes(cmd.OutOrStdout(), outcomes)
	if failed > 0 {
		return fmt.Errorf("%d of %d audits did not complete", failed, len(outcomes))
	}
	return nil
}

// expandJobs turns file and directory arguments into jobs. Directories
// contribute their allowed files.
func expandJobs(fs *sources.LocalFS, paths []string, auditType string) ([]batch.Job, error) {
	var jobs []batch.Job
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			jobs = append(jobs, batch.Job{Path: p, AuditType: auditType})
			continue
		}
		files, err := fs.ListTranscripts(p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			jobs = append(jobs, batch.Job{Path: f, AuditType: auditType})
		}
	}
	return jobs, nil
}

// printOutcomes writes one line per outcome and returns how many failed.
func printOutcomes(w io.Writer, outcomes []batch.Outcome) int {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	failed := 0
	for _, o := range outcomes {
		name := o.SourceName
		if name == "" {
			name = o.Job.Path
		}
		switch {
		case o.Err != nil:
			failed++
			fmt.Fprintf(w, "%s: %s %v\n", name, red("error"), o.Err)
		case o.Failure != nil:
			failed++
			fmt.Fprintf(w, "%s: %s %s\n", name, yellow("no result"), o.Failure.Error())
		case o.Status == models.StatusFlagged:
			fmt.Fprintf(w, "%s: %s (%d)\n", name, red(string(o.Status)), o.Score)
		default:
			fmt.Fprintf(w, "%s: %s (%d)\n", name, green(string(o.Status)), o.Score)
		}
	}
	return failed
}
