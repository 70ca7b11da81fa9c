package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tatnall-legacy/leaguemirror/pkg/config"
	"github.com/tatnall-legacy/leaguemirror/pkg/log"
	"github.com/tatnall-legacy/leaguemirror/pkg/orchestrator"
)

var watchDebounce int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh whenever the stored credential changes",
	Long: `Watch blocks and runs a full refresh each time the ESPN cookie file is
written. Storing a fresh session cookie is what usually unblocks a stale
mirror, so the refresh piggybacks on that event.`,
	Run: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().IntVar(&watchDebounce, "debounce", 5, "Seconds to wait after a change before refreshing")
}

func runWatch(cmd *cobra.Command, args []string) {
	cfg, err := loadRefreshConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyRefreshFlags(cfg)

	watcher, err := config.NewFileWatcher(cfg.ESPN.CookieFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error watching %s: %v\n", cfg.ESPN.CookieFile, err)
		os.Exit(1)
	}
	defer watcher.Stop()
	go watcher.Start()

	// Config edits between refreshes take effect on the next run.
	var configWatcher *config.ConfigWatcher
	if path := resolveConfigPath(); path != "" {
		configWatcher, err = config.NewConfigWatcher(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error watching config %s: %v\n", path, err)
			os.Exit(1)
		}
		go configWatcher.StartWatching()
		defer configWatcher.StopWatching()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nStopping watch.")
		cancel()
	}()

	fmt.Printf("Watching %s for changes (Ctrl+C to stop)...\n", cfg.ESPN.CookieFile)

	debounce := time.Duration(watchDebounce) * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events():
			if !ok {
				return
			}
			log.WithField("op", event.Op.String()).Info("credential file changed")
			fmt.Println("Credential updated; refreshing shortly...")

			// Let whatever wrote the file finish before reading it
			select {
			case <-ctx.Done():
				return
			case <-time.After(debounce):
			}

			if configWatcher != nil {
				cfg = configWatcher.GetConfig()
				applyRefreshFlags(cfg)
			}

			if err := executeRefresh(ctx, cfg); err != nil {
				if errors.Is(err, orchestrator.ErrCredentialMissing) {
					fmt.Fprintf(os.Stderr, "Error: ESPN cookie file not found at %s\n", cfg.ESPN.CookieFile)
				} else {
					fmt.Fprintf(os.Stderr, "Refresh failed: %v\n", err)
				}
				fmt.Println("Still watching for the next change...")
			}
		}
	}
}
