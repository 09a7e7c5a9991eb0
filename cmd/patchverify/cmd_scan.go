package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/patchverify/internal/domain-orchestrators"
	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces"
	"github.com/ochairo/patchverify/internal/domain/services"
	"github.com/ochairo/patchverify/internal/external-adapters/sqlite"
	"github.com/ochairo/patchverify/internal/external-adapters/yaml"
	"github.com/ochairo/patchverify/internal/telemetry"
)

type scanOptions struct {
	json        bool
	noProbe     bool
	noDiff      bool
	noHistory   bool
	quiet       bool
	token       string
	promises    string
	failOn      string
	metricsFile string
	ecosystem   string
	timeout     time.Duration
	workers     int
}

func newScanCmd(a *app) *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan <app> <old-version> <new-version>",
		Short: "Verify the fixes promised by an upgrade",
		Example: `  patchverify scan django 4.1.0 4.2.0
  patchverify scan requests 2.28.0 2.31.0 --no-probe
  patchverify scan lodash 4.17.20 4.17.21 --json
  patchverify scan pyyaml 5.3 5.4 --promises promises.yaml --fail-on HIGH`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), a, opts, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.json, "json", false, "Print the scan record as JSON")
	f.BoolVar(&opts.noProbe, "no-probe", false, "Skip behavioral probing (faster)")
	f.BoolVar(&opts.noDiff, "no-diff", false, "Skip downloading and diffing the releases")
	f.BoolVar(&opts.noHistory, "no-history", false, "Do not save the scan to history")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Hide progress output")
	f.StringVar(&opts.token, "token", "", "GitHub token (raises API rate limits)")
	f.StringVar(&opts.promises, "promises", "", "YAML promise file used instead of release notes")
	f.StringVar(&opts.failOn, "fail-on", "", "Exit with status 2 when the risk label is at least this (LOW, MEDIUM, HIGH, CRITICAL)")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	f.StringVar(&opts.ecosystem, "ecosystem", "", "Skip detection: pypi or npm")
	f.DurationVar(&opts.timeout, "timeout", 0, "Overall scan deadline (0 uses scan_timeout from config)")
	f.IntVar(&opts.workers, "workers", 0, "Concurrent promise checks (0 uses config)")
	return cmd
}

func runScan(ctx context.Context, a *app, opts *scanOptions, args []string, stdout, stderr io.Writer) error {
	req := entities.ScanRequest{
		App:        strings.TrimSpace(args[0]),
		OldVersion: strings.TrimSpace(args[1]),
		NewVersion: strings.TrimSpace(args[2]),
		SkipProbe:  opts.noProbe,
		SkipDiff:   opts.noDiff,
	}

	eco, err := parseEcosystemFlag(opts.ecosystem)
	if err != nil {
		return err
	}
	req.Ecosystem = eco

	var failOn entities.RiskLabel
	if opts.failOn != "" {
		label, ok := entities.ParseRiskLabel(strings.ToUpper(opts.failOn))
		if !ok {
			return fmt.Errorf("invalid --fail-on %q", opts.failOn)
		}
		failOn = label
	}

	if opts.promises != "" {
		file, err := yaml.LoadPromiseFile(opts.promises)
		if err != nil {
			return err
		}
		promises, err := file.CollectPromises(ctx, req.App, req.NewVersion)
		if err != nil {
			return err
		}
		req.Promises = promises
	}

	cfg := a.cfg
	if opts.token != "" {
		cfg.GitHubToken = opts.token
	}
	if opts.metricsFile != "" {
		cfg.MetricsFile = opts.metricsFile
	}
	if opts.timeout > 0 {
		cfg.ScanTimeout = opts.timeout
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}

	catalog, err := a.loadCatalog()
	if err != nil {
		return err
	}
	evidence, err := a.evidenceGateway(catalog)
	if err != nil {
		return err
	}

	metrics := telemetry.NewMetrics()
	orchCfg := orchestrators.ScanOrchestratorConfig{
		Workers:      cfg.Workers,
		ProbeEnabled: cfg.Probe.Enabled,
		Recorder:     metrics,
	}

	var orch *orchestrators.ScanOrchestrator
	verification := services.NewVerificationService(cfg.Fusion)
	if opts.noHistory {
		orch = orchestrators.NewScanOrchestrator(evidence, verification, nil, orchCfg, a.logger)
	} else {
		history, err := sqlite.NewHistoryRepository(cfg.HistoryDB)
		if err != nil {
			return err
		}
		//nolint:errcheck // Defer close on history database
		defer history.Close()
		orch = orchestrators.NewScanOrchestrator(evidence, verification, history, orchCfg, a.logger)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ScanTimeout)
		defer cancel()
	}

	stopProgress := func() {}
	if !opts.quiet {
		events, unsubscribe := orch.Progress().Subscribe(64)
		done := make(chan struct{})
		go func() {
			defer close(done)
			renderProgress(stderr, events)
		}()
		stopProgress = func() {
			unsubscribe()
			<-done
		}
	}

	record, err := orch.Scan(ctx, req)
	stopProgress()
	if err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteToTextfile(cfg.MetricsFile); err != nil {
			a.logger.Warn("failed to write metrics file", interfaces.F("error", err.Error()))
		}
	}

	if opts.json {
		if err := writeJSON(stdout, record); err != nil {
			return err
		}
	} else {
		renderScanRecord(stdout, record)
	}

	if failOn != "" && record.Total > 0 && record.RiskLabel.AtLeast(failOn) {
		return &exitError{code: 2, msg: fmt.Sprintf("Risk %s reaches --fail-on %s", record.RiskLabel, failOn)}
	}
	return nil
}
