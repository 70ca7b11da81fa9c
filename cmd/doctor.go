package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tatnall-legacy/leaguemirror/pkg/config"
	"github.com/tatnall-legacy/leaguemirror/pkg/espn"
	"github.com/tatnall-legacy/leaguemirror/pkg/gitrepo"
	"github.com/tatnall-legacy/leaguemirror/pkg/sleeper"
)

type SystemCheck struct {
	Name    string `json:"name"`
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Icon    string `json:"icon,omitempty"`
}

type DoctorOutput struct {
	SystemEnvironment []SystemCheck `json:"system_environment"`
	Repository        []SystemCheck `json:"repository"`
	Credentials       []SystemCheck `json:"credentials"`
	APIs              []SystemCheck `json:"apis"`
	Summary           DoctorSummary `json:"summary"`
}

type DoctorSummary struct {
	FailedChecks []string `json:"failed_checks,omitempty"`
	Ready        bool     `json:"ready"`
}

var (
	doctorJSON    bool
	doctorSkipAPI bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the refresh environment",
	Long:  `Doctor checks the git toolchain, data repository, stored credentials, and API reachability.`,
	Run:   runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "Output results in JSON format")
	doctorCmd.Flags().BoolVar(&doctorSkipAPI, "skip-api", false, "Skip live API reachability checks")
}

func runDoctor(cmd *cobra.Command, args []string) {
	cfg, cfgErr := loadRefreshConfig()

	output := DoctorOutput{
		SystemEnvironment: performSystemChecks(),
	}

	if cfgErr != nil {
		output.Repository = []SystemCheck{{
			Name:    "Configuration",
			Status:  false,
			Message: cfgErr.Error(),
			Icon:    "❌",
		}}
	} else {
		output.Repository = performRepositoryChecks(cfg)
		output.Credentials = performCredentialChecks(cfg)
		if !doctorSkipAPI {
			output.APIs = performAPIChecks(cfg)
		}
	}

	var failed []string
	for _, group := range [][]SystemCheck{output.SystemEnvironment, output.Repository, output.Credentials, output.APIs} {
		for _, check := range group {
			if !check.Status {
				failed = append(failed, check.Name)
			}
		}
	}
	output.Summary = DoctorSummary{
		FailedChecks: failed,
		Ready:        len(failed) == 0,
	}

	if doctorJSON {
		jsonOutput, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating JSON output: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(jsonOutput))
	} else {
		printHumanReadableOutput(output)
	}

	if !output.Summary.Ready {
		os.Exit(1)
	}
}

func printHumanReadableOutput(output DoctorOutput) {
	fmt.Println("\n🔍 Leaguemirror Doctor - Environment Check")
	fmt.Println(strings.Repeat("=", 61))

	sections := []struct {
		title  string
		checks []SystemCheck
	}{
		{"SYSTEM ENVIRONMENT", output.SystemEnvironment},
		{"DATA REPOSITORY", output.Repository},
		{"CREDENTIALS", output.Credentials},
		{"APIS", output.APIs},
	}

	for _, section := range sections {
		if len(section.checks) == 0 {
			continue
		}
		fmt.Printf("\n%s\n", section.title)
		fmt.Println(strings.Repeat("-", 61))
		for _, check := range section.checks {
			fmt.Printf("  %s %s: %s\n", check.Icon, check.Name, check.Message)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 61))
	if output.Summary.Ready {
		fmt.Println("\n✨ Ready. Run 'leaguemirror refresh' to update the mirror.")
	} else {
		fmt.Printf("\n⚠️  Not ready: %s\n", strings.Join(output.Summary.FailedChecks, ", "))
	}
	fmt.Println()
}

func performSystemChecks() []SystemCheck {
	checks := []SystemCheck{}

	checks = append(checks, SystemCheck{
		Name:    "Go Runtime",
		Status:  true,
		Message: fmt.Sprintf("%s (%s/%s)", runtime.Version(), runtime.GOOS, runtime.GOARCH),
		Icon:    "✅",
	})

	checks = append(checks, checkBinary("git"))
	checks = append(checks, checkGitLFS())

	return checks
}

func checkBinary(name string) SystemCheck {
	path, err := exec.LookPath(name)
	if err != nil {
		return SystemCheck{
			Name:    name,
			Status:  false,
			Message: "not found in PATH",
			Icon:    "❌",
		}
	}

	message := path
	if output, err := exec.Command(name, "--version").CombinedOutput(); err == nil {
		lines := strings.SplitN(strings.TrimSpace(string(output)), "\n", 2)
		message = strings.TrimSpace(lines[0])
	}

	return SystemCheck{
		Name:    name,
		Status:  true,
		Message: message,
		Icon:    "✅",
	}
}

func checkGitLFS() SystemCheck {
	if output, err := exec.Command("git", "lfs", "version").CombinedOutput(); err == nil {
		lines := strings.SplitN(strings.TrimSpace(string(output)), "\n", 2)
		return SystemCheck{
			Name:    "git-lfs",
			Status:  true,
			Message: strings.TrimSpace(lines[0]),
			Icon:    "✅",
		}
	}
	return SystemCheck{
		Name:    "git-lfs",
		Status:  false,
		Message: "not installed (install git-lfs to track large archives)",
		Icon:    "❌",
	}
}

func performRepositoryChecks(cfg *config.Config) []SystemCheck {
	checks := []SystemCheck{}

	if info, err := os.Stat(cfg.Repository.Path); err != nil || !info.IsDir() {
		checks = append(checks, SystemCheck{
			Name:    "Repository Path",
			Status:  false,
			Message: fmt.Sprintf("%s is not a directory", cfg.Repository.Path),
			Icon:    "❌",
		})
		return checks
	}

	checks = append(checks, SystemCheck{
		Name:    "Repository Path",
		Status:  true,
		Message: cfg.Repository.Path,
		Icon:    "✅",
	})

	repo := gitrepo.New(cfg.Repository.Path, cfg.Repository.Remote, cfg.Repository.Branch)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if head, err := repo.Head(ctx); err != nil {
		checks = append(checks, SystemCheck{
			Name:    "Git Checkout",
			Status:  false,
			Message: "not a git working tree",
			Icon:    "❌",
		})
	} else {
		short := head
		if len(short) > 12 {
			short = short[:12]
		}
		checks = append(checks, SystemCheck{
			Name:    "Git Checkout",
			Status:  true,
			Message: fmt.Sprintf("%s/%s at %s", cfg.Repository.Remote, cfg.Repository.Branch, short),
			Icon:    "✅",
		})
	}

	return checks
}

func performCredentialChecks(cfg *config.Config) []SystemCheck {
	checks := []SystemCheck{}

	// Only existence and parseability are checked; the cookie value itself
	// is never printed.
	if _, err := os.Stat(cfg.ESPN.CookieFile); err != nil {
		checks = append(checks, SystemCheck{
			Name:    "ESPN Cookie File",
			Status:  false,
			Message: fmt.Sprintf("not found at %s", cfg.ESPN.CookieFile),
			Icon:    "❌",
		})
		return checks
	}

	if _, err := espn.LoadCookie(cfg.ESPN.CookieFile, cfg.ESPN.CookiePassthrough); err != nil {
		checks = append(checks, SystemCheck{
			Name:    "ESPN Cookie File",
			Status:  false,
			Message: err.Error(),
			Icon:    "❌",
		})
	} else {
		checks = append(checks, SystemCheck{
			Name:    "ESPN Cookie File",
			Status:  true,
			Message: cfg.ESPN.CookieFile,
			Icon:    "✅",
		})
	}

	return checks
}

func performAPIChecks(cfg *config.Config) []SystemCheck {
	checks := []SystemCheck{}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cookie, err := espn.LoadCookie(cfg.ESPN.CookieFile, cfg.ESPN.CookiePassthrough)
	if err == nil {
		client := espn.NewClient(espn.ClientConfig{
			LeagueID: cfg.ESPN.LeagueID,
			Cookie:   cookie,
		})
		if err := client.Ping(ctx, cfg.ESPN.EndSeason); err != nil {
			checks = append(checks, SystemCheck{
				Name:    "ESPN API",
				Status:  false,
				Message: fmt.Sprintf("unreachable or cookie rejected: %v", err),
				Icon:    "❌",
			})
		} else {
			checks = append(checks, SystemCheck{
				Name:    "ESPN API",
				Status:  true,
				Message: fmt.Sprintf("league %s reachable", cfg.ESPN.LeagueID),
				Icon:    "✅",
			})
		}
	}

	sleeperClient := sleeper.NewClient(sleeper.ClientConfig{})
	if _, err := sleeperClient.League(ctx, cfg.Sleeper.LeagueID); err != nil {
		checks = append(checks, SystemCheck{
			Name:    "Sleeper API",
			Status:  false,
			Message: fmt.Sprintf("league %s: %v", cfg.Sleeper.LeagueID, err),
			Icon:    "❌",
		})
	} else {
		checks = append(checks, SystemCheck{
			Name:    "Sleeper API",
			Status:  true,
			Message: fmt.Sprintf("league %s reachable", cfg.Sleeper.LeagueID),
			Icon:    "✅",
		})
	}

	return checks
}
