package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tatnall-legacy/leaguemirror/internal/version"
	"github.com/tatnall-legacy/leaguemirror/pkg/log"
)

var (
	cfgFile     string
	showVersion bool
)

var rootCmd = &cobra.Command{
	Use:   "leaguemirror",
	Short: "Keep a fantasy league data mirror fresh",
	Long: `Leaguemirror refreshes a git-backed mirror of fantasy league data.
It pulls transaction and lineup archives from the ESPN and Sleeper APIs
into the repository's data directory and publishes any changes.`,
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersionString())

			// Quick update check
			if hasUpdate, latestVersion, err := version.CheckForUpdate(); err == nil && hasUpdate {
				fmt.Printf("\nUpdate available: %s (current: %s)\n", latestVersion, version.GetShortVersion())
				fmt.Printf("   Run 'leaguemirror version' for more details\n")
			}
			os.Exit(0)
		}
		// If no flags, show help
		cmd.Help()
	},
}

func Execute() {
	// Skip logo for --json commands for clean JSON output
	shouldSkipLogo := false
	for _, arg := range os.Args[1:] {
		if arg == "--json" {
			shouldSkipLogo = true
			break
		}
	}

	if !shouldSkipLogo {
		PrintLogo()
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.leaguemirror.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose output")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "V", false, "Show version information")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding verbose flag: %v\n", err)
	}
}

func initLogging() {
	level := zerolog.InfoLevel
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}

	log.InitLogger(os.Stderr, level, true)

	viper.AutomaticEnv()
}
