package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tatnall-legacy/leaguemirror/internal/version"
)

var (
	checkUpdate bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display the current version of leaguemirror and check for updates.`,
	Run:   runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&checkUpdate, "check-update", true, "Check for newer versions")
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Println(version.GetVersionString())

	if checkUpdate {
		fmt.Println("\nChecking for updates...")
		hasUpdate, latestVersion, err := version.CheckForUpdate()

		if err != nil {
			if err.Error() != "" {
				fmt.Printf("   Could not check for updates: %v\n", err)
			}
			return
		}

		if hasUpdate {
			fmt.Printf("\nUpdate available!\n")
			fmt.Printf("   Current version: %s (out of date)\n", version.GetShortVersion())
			fmt.Printf("   Latest version:  %s\n", latestVersion)
			fmt.Printf("\n   Download from: https://github.com/tatnall-legacy/leaguemirror/releases/latest\n")
		} else if latestVersion != "" {
			fmt.Printf("   You're running the latest version! (%s)\n", latestVersion)
		} else {
			fmt.Printf("   Update check unavailable at this time\n")
		}
	}
}
