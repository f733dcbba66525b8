package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fentz26/supportaudit/internal/audit"
	"github.com/fentz26/supportaudit/internal/auditor"
	"github.com/fentz26/supportaudit/internal/metrics"
	"github.com/fentz26/supportaudit/internal/scoring"
	"github.com/fentz26/supportaudit/internal/store"
)

// app holds the components shared by commands.
type app struct {
	store    *store.Store
	ledger   *audit.Ledger
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	auditor  *auditor.Client
}

// openApp opens the ledger and, when withScoring is set, builds the
// scoring client from configuration.
func openApp(ctx context.Context, withScoring bool) (*app, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	logger := slog.Default()

	m := metrics.New()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	s, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		store:    s,
		ledger:   audit.NewLedger(s, audit.WithMetrics(m), audit.WithLogger(logger)),
		metrics:  m,
		registry: reg,
	}

	if withScoring {
		scorer, err := scoring.New(ctx, cfg.Scoring)
		if err != nil {
			s.Close()
			return nil, err
		}
		if !scoring.IsConfigured(scorer) {
			logger.Warn("no scoring credentials configured; audits will fail until one is set", "provider", scorer.Name())
		}
		a.auditor = auditor.New(scorer,
			auditor.WithTimeout(cfg.Scoring.Timeout),
			auditor.WithMetrics(m),
			auditor.WithLogger(logger),
		)
	}
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
