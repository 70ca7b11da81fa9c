package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tatnall-legacy/leaguemirror/pkg/puller"
	_ "github.com/tatnall-legacy/leaguemirror/pkg/pullers"
)

var pullCmd = &cobra.Command{
	Use:   "pull <job>",
	Short: "Run a single pull job without publishing",
	Long: `Pull runs one data pull job and writes its output under the repository's
data directory. Nothing is committed or pushed; use 'refresh' for the
full pipeline.

Available jobs: ` + strings.Join(builtinJobs, ", "),
	Args: cobra.ExactArgs(1),
	Run:  runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, args []string) {
	jobType := args[0]

	cfg, err := loadRefreshConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	p, err := puller.Create(jobType, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Available jobs: %s\n", strings.Join(puller.Types(), ", "))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted.")
		cancel()
	}()

	if err := p.HealthCheck(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s is not ready: %v\n", p.Name(), err)
		os.Exit(1)
	}

	fmt.Printf("Pulling %s...\n", p.Name())
	start := time.Now()
	result, err := p.Pull(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: pull %s failed: %v\n", p.Name(), err)
		os.Exit(1)
	}

	fmt.Printf("Pulled %d records into %d files in %s\n",
		result.Records, len(result.Files), time.Since(start).Round(time.Millisecond))
	for _, file := range result.Files {
		fmt.Printf("  %s\n", file)
	}
}
