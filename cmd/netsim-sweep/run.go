package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"netsim-sweep/internal/admin"
	"netsim-sweep/internal/config"
	"netsim-sweep/internal/logging"
	"netsim-sweep/internal/runner"
	"netsim-sweep/internal/sweep"
	"netsim-sweep/internal/trace"
)

var (
	runConfigPath string
	runSchemaPath string
	runPreset     string
	runCSV        string
	runLogFile    string
	runCaptureDir string
	runPrintOnly  bool
	runJSON       bool
	runTUI        bool
	runParallel   int
	runTimeout    time.Duration
	runAdminAddr  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a parameter sweep",
	Long: "run invokes the simulator once per configuration point, analyses each run's output " +
		"and reports per-point metrics. It exits non-zero when no run produced usable metrics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSweepConfig(cmd)
		if err != nil {
			return err
		}
		return runSweep(cmd.Context(), cfg)
	},
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "config/manet-size.yaml", "Path to sweep configuration YAML")
	runCmd.Flags().StringVar(&runSchemaPath, "schema", "schemas/sweep.cue", "Path to CUE schema file (empty to skip)")
	runCmd.Flags().StringVar(&runPreset, "preset", "", "Use a builtin sweep instead of --config")
	runCmd.Flags().StringVar(&runCSV, "csv", "", "Write results as CSV to this file")
	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "Write results as JSONL to this file for replay")
	runCmd.Flags().StringVar(&runCaptureDir, "capture-dir", "", "Keep each run's raw output in this directory")
	runCmd.Flags().BoolVar(&runPrintOnly, "print-only", false, "Print results only, skip GreptimeDB and MQTT")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print results as JSON lines")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show an interactive progress view")
	runCmd.Flags().IntVar(&runParallel, "parallel", 0, "Points run concurrently (overrides config)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-run simulator timeout (overrides config)")
	runCmd.Flags().StringVar(&runAdminAddr, "admin", "", "Serve status and metrics on this address (e.g. :8080)")
}

func loadSweepConfig(cmd *cobra.Command) (*config.SweepConfig, error) {
	var (
		cfg *config.SweepConfig
		err error
	)
	if runPreset != "" {
		if cfg, err = config.Preset(runPreset); err != nil {
			return nil, err
		}
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
	} else if cfg, err = config.Load(runConfigPath, runSchemaPath); err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("parallel") {
		cfg.Parallelism = runParallel
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Simulator.Timeout = runTimeout
	}
	if runCaptureDir != "" {
		cfg.Capture.Dir = runCaptureDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSweep(parent context.Context, cfg *config.SweepConfig) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tmpl, err := cfg.Template()
	if err != nil {
		return err
	}
	grammar, err := cfg.BuildGrammar()
	if err != nil {
		return err
	}
	points, err := cfg.Points()
	if err != nil {
		return err
	}

	opts := terminalOptions(writerOptions{
		PrintOnly: runPrintOnly,
		JSON:      runJSON,
		TUI:       runTUI,
		CSV:       runCSV,
		LogFile:   runLogFile,
		ClampLoss: cfg.ClampLoss,
		Sinks:     cfg.Sinks,
	})

	var adminErr chan error
	adminCtx, stopAdmin := context.WithCancel(ctx)
	defer stopAdmin()
	if runAdminAddr != "" {
		reg := prometheus.NewRegistry()
		opts.Tracker = sweep.NewTracker()
		opts.Registerer = reg
		srv := admin.NewServer(opts.Tracker, reg)
		adminErr = make(chan error, 1)
		go func() { adminErr <- srv.Start(adminCtx, runAdminAddr) }()
	}

	writer, tui, err := newWriters(opts)
	if err != nil {
		return err
	}
	log := logging.FromContext(ctx)
	if tui != nil {
		if log, err = logging.NewWith(logging.Options{Level: logLevel, Format: logFormat, Writer: tui.LogWriter()}); err != nil {
			writer.Close()
			return err
		}
		prev := slog.Default()
		slog.SetDefault(log)
		defer slog.SetDefault(prev)
	}

	captures := runner.MemoryCaptures()
	if cfg.Capture.Dir != "" {
		captures = runner.FileCaptures(cfg.Capture.Dir)
	}
	orch, err := sweep.NewOrchestrator(sweep.Options{
		Name:        cfg.Name,
		Template:    tmpl,
		Extractor:   trace.NewExtractor(grammar, log),
		DefaultSize: cfg.Grammar.DefaultSizeBytes,
		Timeout:     cfg.Simulator.Timeout,
		Captures:    captures,
		Writer:      writer,
		Parallelism: cfg.Parallelism,
		Log:         log,
	})
	if err != nil {
		writer.Close()
		return err
	}

	res, runErr := orch.Run(ctx, points)

	var errs *multierror.Error
	if err := writer.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("close writers: %w", err))
	}
	stopAdmin()
	if adminErr != nil {
		if err := <-adminErr; err != nil {
			errs = multierror.Append(errs, fmt.Errorf("admin server: %w", err))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		slog.Warn("[Main] cleanup failed", "error", err)
	}

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, context.Canceled):
		return fmt.Errorf("sweep interrupted after %d of %d points", res.Len(), len(points))
	default:
		return runErr
	}
}
