package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tatnall-legacy/leaguemirror/pkg/config"
	"github.com/tatnall-legacy/leaguemirror/pkg/gitrepo"
	"github.com/tatnall-legacy/leaguemirror/pkg/log"
	"github.com/tatnall-legacy/leaguemirror/pkg/metrics"
	"github.com/tatnall-legacy/leaguemirror/pkg/orchestrator"
	"github.com/tatnall-legacy/leaguemirror/pkg/puller"
	"github.com/tatnall-legacy/leaguemirror/pkg/pullers"
	"github.com/tatnall-legacy/leaguemirror/pkg/report"
	"github.com/tatnall-legacy/leaguemirror/pkg/tui"
)

var (
	useTUI          bool
	dryRun          bool
	disableLog      bool
	runLogDir       string
	enableMetrics   bool
	metricsAddr     string
	jobTimeout      int
	skipHealthCheck bool
)

// builtinJobs are the pull jobs of a full refresh, in the order they run.
var builtinJobs = []string{"espn-transactions", "espn-lineups", "sleeper-transactions"}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run a full data refresh and publish changes",
	Long: `Refresh pulls ESPN transactions, ESPN lineups, and Sleeper transactions
into the data repository and commits and pushes any changes. A run with
no changes is a success and publishes nothing.`,
	Run: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)

	refreshCmd.Flags().BoolVarP(&useTUI, "tui", "t", false, "Show a live progress view")
	refreshCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Pull and detect changes but do not commit or push")
	refreshCmd.Flags().BoolVar(&disableLog, "no-log", false, "Disable run report logging")
	refreshCmd.Flags().StringVar(&runLogDir, "log-dir", "", "Directory to save run reports (default: ~/.leaguemirror/runs)")
	refreshCmd.Flags().BoolVar(&enableMetrics, "metrics", false, "Serve Prometheus metrics during the run")
	refreshCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics listen address (default: :9090)")
	refreshCmd.Flags().IntVar(&jobTimeout, "job-timeout", 0, "Per-job timeout in minutes (0 = no limit)")
	refreshCmd.Flags().BoolVar(&skipHealthCheck, "skip-health-check", false, "Skip per-job health checks before pulling")
}

// resolveConfigPath returns the config file to use: --config when given,
// otherwise the first well-known path that exists, otherwise "".
func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, candidate := range []string{
		filepath.Join(home, ".leaguemirror.yaml"),
		"leaguemirror.yaml",
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// loadRefreshConfig resolves configuration from --config, well-known paths,
// or defaults, with environment overrides applied in every case.
func loadRefreshConfig() (*config.Config, error) {
	if path := resolveConfigPath(); path != "" {
		log.WithField("config_file", path).Debug("using config file")
		return config.LoadConfig(path)
	}

	cfg := config.NewDefaultConfig()
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyRefreshFlags(cfg *config.Config) {
	if disableLog {
		cfg.Logging.Enabled = false
	}
	if runLogDir != "" {
		cfg.Logging.RunLogDir = runLogDir
		cfg.Logging.Enabled = true
	}
	if enableMetrics {
		cfg.Metrics.Enabled = true
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
		cfg.Metrics.Enabled = true
	}
}

// buildOrchestrator assembles the refresh pipeline from configuration.
// The writer receives progress lines; pass nil when the TUI owns the screen.
func buildOrchestrator(cfg *config.Config, writer io.Writer) (*orchestrator.Orchestrator, error) {
	repo := gitrepo.New(cfg.Repository.Path, cfg.Repository.Remote, cfg.Repository.Branch)

	orch := orchestrator.New(orchestrator.Config{
		CredentialFile:  cfg.ESPN.CookieFile,
		DataPath:        cfg.Repository.DataPath,
		CommitMessage:   cfg.Repository.CommitMessage,
		JobTimeout:      time.Duration(jobTimeout) * time.Minute,
		SkipHealthCheck: skipHealthCheck,
		SkipPublish:     dryRun,
	}, repo, writer)

	for _, jobType := range builtinJobs {
		p, err := puller.Create(jobType, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s job: %w", jobType, err)
		}
		orch.AddPuller(p)
	}

	for _, script := range cfg.Scripts {
		orch.AddPuller(&pullers.Script{
			JobName: script.Name,
			Command: script.Command,
			Env:     script.Env,
			Dir:     cfg.Repository.Path,
			Timeout: script.Timeout,
		})
	}

	return orch, nil
}

func runRefresh(cmd *cobra.Command, args []string) {
	cfg, err := loadRefreshConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyRefreshFlags(cfg)

	setFlags := make(map[string]interface{})
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		setFlags[flag.Name] = flag.Value.String()
	})
	if len(setFlags) > 0 {
		log.WithFields(setFlags).Debug("refresh flags")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted. Shutting down gracefully...")
		cancel()
	}()

	if err := executeRefresh(ctx, cfg); err != nil {
		if errors.Is(err, orchestrator.ErrCredentialMissing) {
			fmt.Fprintf(os.Stderr, "Error: ESPN cookie file not found at %s\n", cfg.ESPN.CookieFile)
			fmt.Fprintf(os.Stderr, "Store the session cookie there before refreshing.\n")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// executeRefresh runs one refresh with the configured sinks attached.
func executeRefresh(ctx context.Context, cfg *config.Config) error {
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(metrics.ServerConfig{Addr: cfg.Metrics.Addr})
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.WithError(err).Warn("metrics server exited")
			}
		}()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			metricsServer.Stop(stopCtx)
		}()
	}

	if useTUI {
		_, err := tui.Run(ctx, func(ctx context.Context, hook orchestrator.StageHook) (*orchestrator.RunResult, error) {
			orch, buildErr := buildOrchestrator(cfg, nil)
			if buildErr != nil {
				return nil, buildErr
			}
			if metricsServer != nil {
				orch.SetMetrics(metricsServer.GetMetrics())
			}
			orch.AddStageHook(hook)
			return orch.Run(ctx)
		})
		return err
	}

	orch, err := buildOrchestrator(cfg, os.Stdout)
	if err != nil {
		return err
	}
	if metricsServer != nil {
		orch.SetMetrics(metricsServer.GetMetrics())
	}

	var reporter *report.RunReporter
	logDir := ""
	if cfg.Logging.Enabled {
		logDir = cfg.Logging.RunLogDir
	}
	reporter, err = report.NewRunReporter(logDir, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to create run reporter: %v\n", err)
	} else {
		defer reporter.Close()
		orch.AddStageHook(reporter.Hook())
	}

	result, runErr := orch.Run(ctx)
	if reporter != nil {
		reporter.Summarize(result)
	}
	return runErr
}
