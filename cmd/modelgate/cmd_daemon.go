package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/modelgate/modelgate/internal/emitter"
	inteltelemetry "github.com/modelgate/modelgate/internal/telemetry"
	"github.com/modelgate/modelgate/internal/worker"
	"github.com/modelgate/modelgate/telemetry"
)

var daemonInterval time.Duration

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the continuous monitoring daemon",
	Long: `Run ModelGate in daemon mode. Every registered model is periodically
pushed through the drift, fairness, risk and governance pipeline on a
background worker pool, and metrics are exported for scraping.

Features:
- Periodic re-evaluation of all registered models
- Prometheus metrics on /metrics
- OTLP trace/metric export when configured
- Graceful shutdown on SIGTERM/SIGINT`,
	Example: `  modelgate daemon
  modelgate daemon --interval 10m`,
	RunE: runDaemonCmd,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 15*time.Minute, "Re-evaluation interval")
}

func runDaemonCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	logger := telemetry.NewLogger("modelgate-daemon")

	provider, err := inteltelemetry.NewProvider(ctx, a.cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	metrics, err := emitter.New()
	if err != nil {
		return fmt.Errorf("failed to init metrics emitter: %w", err)
	}

	pool := worker.NewPool(a.cfg.Worker.QueueSize, a.cfg.Worker.Workers,
		a.pipelineHandler(metrics))

	var group run.Group

	// Signal handling
	group.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	// Worker pool
	poolCtx, poolCancel := context.WithCancel(ctx)
	group.Add(
		func() error { return pool.Run(poolCtx) },
		func(error) { poolCancel() },
	)

	// Periodic enqueue of every registered model
	tickCtx, tickCancel := context.WithCancel(ctx)
	group.Add(
		func() error { return a.scheduleLoop(tickCtx, pool, logger) },
		func(error) { tickCancel() },
	)

	// Metrics server
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(provider.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{
		Addr:              a.cfg.Telemetry.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	group.Add(
		func() error { return server.ListenAndServe() },
		func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		},
	)

	logger.Info().
		Dur("interval", daemonInterval).
		Str("metrics_addr", a.cfg.Telemetry.MetricsAddr).
		Int("workers", a.cfg.Worker.Workers).
		Msg("daemon starting")

	err = group.Run()
	var sigErr run.SignalError
	if err != nil && !errors.As(err, &sigErr) && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("daemon stopped")
	return nil
}

// pipelineHandler runs the full evaluation pipeline for one queued model
func (a *app) pipelineHandler(metrics *emitter.Emitter) worker.Handler {
	return func(ctx context.Context, job worker.Job) error {
		start := time.Now()

		driftResult, err := a.drift.ComputeDrift(ctx, job.ModelID)
		if err != nil {
			return fmt.Errorf("drift stage: %w", err)
		}
		metrics.RecordDrift(ctx, driftResult)

		if _, err := a.fairness.ComputeFairness(ctx, job.ModelID, a.cfg.Fairness.DefaultAttribute); err != nil {
			return fmt.Errorf("fairness stage: %w", err)
		}

		entry, err := a.risk.ComposeRisk(ctx, job.ModelID)
		if err != nil {
			return fmt.Errorf("risk stage: %w", err)
		}
		metrics.RecordRisk(ctx, entry)

		verdict, err := a.evaluator.Evaluate(ctx, job.ModelID)
		if err != nil {
			return fmt.Errorf("governance stage: %w", err)
		}
		metrics.RecordEvaluation(ctx, verdict)
		metrics.RecordStage(ctx, "pipeline", time.Since(start))
		return nil
	}
}

// scheduleLoop enqueues every registered model at each tick
func (a *app) scheduleLoop(ctx context.Context, pool *worker.Pool, logger *telemetry.Logger) error {
	ticker := time.NewTicker(daemonInterval)
	defer ticker.Stop()

	enqueue := func() {
		models, err := a.store.ListModels()
		if err != nil {
			logger.Error().Err(err).Msg("failed to list models for scheduling")
			return
		}
		for _, m := range models {
			if _, err := pool.Submit(m.ID, "scheduled-evaluation"); err != nil {
				logger.Warn().Err(err).Str("model_id", m.ID).Msg("skipping scheduled evaluation")
			}
		}
	}

	enqueue()
	for {
		select {
		case <-ticker.C:
			enqueue()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

