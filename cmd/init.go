package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tatnall-legacy/leaguemirror/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Init writes a configuration file with default values that you can
edit before the first refresh. The file is written to --config if given,
otherwise to $HOME/.leaguemirror.yaml.`,
	Run: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) {
	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving home directory: %v\n", err)
			os.Exit(1)
		}
		path = filepath.Join(home, ".leaguemirror.yaml")
	}

	if err := writeStarterConfig(path, initForce); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Edit repository.path, espn.league_id, and espn.cookie_file before running a refresh.")
}

func writeStarterConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}
	}

	cfg := config.NewDefaultConfig()
	if err := cfg.SaveConfig(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
