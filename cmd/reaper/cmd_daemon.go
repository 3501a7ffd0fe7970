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
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/skyfell/reaper/engine"
	"github.com/skyfell/reaper/journal"
	"github.com/skyfell/reaper/policy"
	"github.com/skyfell/reaper/telemetry"
)

var (
	daemonInterval     time.Duration
	daemonMetricsAddr  string
	daemonOTELEndpoint string
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run recurring sweeps on an interval",
	Long: `Run reaper as a long-lived process that sweeps the configured
regions on a fixed interval, exports Prometheus metrics, and archives
every run in the journal.

Shuts down gracefully on SIGINT/SIGTERM; a sweep in progress finishes
its accounting before the process exits.`,
	Example: `  reaper daemon --interval 6h
  reaper daemon --interval 1h --metrics-addr :2112
  reaper daemon --otel-endpoint localhost:4317`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 6*time.Hour, "Time between sweeps")
	daemonCmd.Flags().StringVar(&daemonMetricsAddr, "metrics-addr", ":2112", "Metrics HTTP listen address")
	daemonCmd.Flags().StringVar(&daemonOTELEndpoint, "otel-endpoint", "", "OTLP gRPC endpoint for traces and metrics (empty = Prometheus only)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "reaper",
		ServiceVersion: version,
		OTELEndpoint:   daemonOTELEndpoint,
		Insecure:       true,
	})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	logger := telemetry.NewLogger("daemon")

	policies := policy.NewEngine(logger)
	if cfg.PolicyDir != "" {
		if err := policies.LoadDir(ctx, cfg.PolicyDir); err != nil {
			return err
		}
	}

	var jnl *journal.Journal
	if cfg.JournalPath != "" {
		if jnl, err = journal.Open(cfg.JournalPath); err != nil {
			return err
		}
		defer jnl.Close()
	}

	eng := engine.New(cfg, logger, engine.WithPolicyEngine(policies))

	var g run.Group

	// Signal handling.
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	// Metrics server.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	server := &http.Server{
		Addr:              daemonMetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Add(func() error {
		logger.Info().Str("addr", daemonMetricsAddr).Msg("metrics server listening")
		return server.ListenAndServe()
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})

	// Sweep loop. The first sweep runs immediately, then on the ticker.
	loopCtx, loopCancel := context.WithCancel(ctx)
	g.Add(func() error {
		ticker := time.NewTicker(daemonInterval)
		defer ticker.Stop()

		for {
			sweep(loopCtx, eng, jnl, logger)
			select {
			case <-ticker.C:
			case <-loopCtx.Done():
				return loopCtx.Err()
			}
		}
	}, func(error) {
		loopCancel()
	})

	logger.Info().
		Dur("interval", daemonInterval).
		Strs("regions", cfg.Regions).
		Bool("dry_run", cfg.DryRun).
		Msg("daemon started")

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		logger.Info().Str("signal", sigErr.Signal.String()).Msg("daemon stopped")
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// sweep runs one engine pass and archives the result.
func sweep(ctx context.Context, eng *engine.Engine, jnl *journal.Journal, logger zerolog.Logger) {
	if ctx.Err() != nil {
		return
	}

	rpt, err := eng.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("sweep failed")
		return
	}

	if jnl != nil {
		if err := jnl.Record(rpt); err != nil {
			logger.Warn().Err(err).Msg("failed to archive run report")
		}
	}
}
