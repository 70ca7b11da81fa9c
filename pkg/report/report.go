// Package report renders refresh run progress and summaries to the console
// and an optional per-run log file.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tatnall-legacy/leaguemirror/pkg/orchestrator"
)

var (
	stageBadgeStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("63")).
			Foreground(lipgloss.Color("0")).
			Bold(true).
			Padding(0, 1).
			MarginRight(1)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("86")).
		Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	skipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	summaryTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("212")).
				Bold(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("236"))
)

// RunReporter writes styled stage events to the console and plain text to a
// per-run log file. A nil console or empty log directory disables that sink.
type RunReporter struct {
	console io.Writer
	logFile *os.File
}

// NewRunReporter creates a reporter. If logDir is non-empty, a timestamped
// log file is created there.
func NewRunReporter(logDir string, console io.Writer) (*RunReporter, error) {
	r := &RunReporter{console: console}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create run log directory: %w", err)
		}

		timestamp := time.Now().Format("2006-01-02_15-04-05")
		logPath := filepath.Join(logDir, fmt.Sprintf("run_%s.log", timestamp))

		logFile, err := os.Create(logPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create run log file: %w", err)
		}
		r.logFile = logFile

		r.writeToFile("=== leaguemirror run log ===\n")
		r.writeToFile("Started: " + time.Now().Format("2006-01-02 15:04:05") + "\n\n")

		if console != nil {
			fmt.Fprintf(console, "Run logged to: %s\n", logPath)
		}
	}

	return r, nil
}

// Hook returns a StageHook that records events through this reporter.
func (r *RunReporter) Hook() orchestrator.StageHook {
	return func(event orchestrator.StageEvent) {
		r.logEvent(event)
	}
}

func (r *RunReporter) logEvent(event orchestrator.StageEvent) {
	name := string(event.Stage)
	if event.Job != "" {
		name = fmt.Sprintf("%s:%s", event.Stage, event.Job)
	}
	timestamp := time.Now().Format("15:04:05")

	r.writeToFile(fmt.Sprintf("[%s] %s %s", timestamp, name, event.Status))
	if event.Err != nil {
		r.writeToFile(fmt.Sprintf(": %v", event.Err))
	}
	if event.Duration > 0 {
		r.writeToFile(fmt.Sprintf(" (%s)", event.Duration.Round(time.Millisecond)))
	}
	r.writeToFile("\n")

	if r.console == nil || event.Status == orchestrator.StatusStarted {
		return
	}

	var status string
	switch event.Status {
	case orchestrator.StatusOK:
		status = okStyle.Render("ok")
	case orchestrator.StatusFailed:
		status = failStyle.Render("failed")
	case orchestrator.StatusSkipped:
		status = skipStyle.Render("skipped")
	}

	line := fmt.Sprintf("%s %s%s",
		timestampStyle.Render(timestamp),
		stageBadgeStyle.Render(" "+name+" "),
		status)
	if event.Err != nil {
		line += " " + failStyle.Render(event.Err.Error())
	}
	if event.Duration > 0 {
		line += timestampStyle.Render(fmt.Sprintf(" %s", event.Duration.Round(time.Millisecond)))
	}
	fmt.Fprintln(r.console, line)
}

// Summarize renders the end-of-run summary.
func (r *RunReporter) Summarize(result *orchestrator.RunResult) {
	if result == nil {
		return
	}

	r.writeToFile(fmt.Sprintf("\nrun %s finished in %s\n", result.RunID, result.Duration.Round(time.Millisecond)))
	for _, pull := range result.Pulls {
		r.writeToFile(fmt.Sprintf("  %s: %d records, %d files (%s)\n",
			pull.Job, pull.Records, pull.Files, pull.Duration.Round(time.Millisecond)))
	}
	r.writeToFile(fmt.Sprintf("  changed=%t committed=%t pushed=%t\n", result.Changed, result.Committed, result.Pushed))

	if r.console == nil {
		return
	}

	var output strings.Builder
	output.WriteString(separatorStyle.Render(strings.Repeat("─", 60)))
	output.WriteString("\n")
	output.WriteString(summaryTitleStyle.Render("Run summary"))
	output.WriteString(timestampStyle.Render(fmt.Sprintf("  %s  %s", result.RunID, result.Duration.Round(time.Millisecond))))
	output.WriteString("\n")

	for _, pull := range result.Pulls {
		output.WriteString(fmt.Sprintf("  %-24s %6d records  %4d files  %s\n",
			pull.Job, pull.Records, pull.Files, pull.Duration.Round(time.Millisecond)))
	}

	switch {
	case result.FailedStep != "":
		output.WriteString(failStyle.Render(fmt.Sprintf("  failed at %s", result.FailedStep)))
		if result.FailedJob != "" {
			output.WriteString(failStyle.Render(" (" + result.FailedJob + ")"))
		}
		output.WriteString("\n")
	case !result.Changed:
		output.WriteString(skipStyle.Render("  no changes") + "\n")
	case result.Pushed:
		output.WriteString(okStyle.Render("  committed and pushed") + "\n")
	case result.Committed:
		output.WriteString(failStyle.Render("  committed locally, push failed") + "\n")
	}

	fmt.Fprint(r.console, output.String())
}

func (r *RunReporter) writeToFile(content string) {
	if r.logFile != nil {
		if _, err := r.logFile.WriteString(content); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to run log file: %v\n", err)
		}
	}
}

// Close flushes and closes the run log file.
func (r *RunReporter) Close() {
	if r.logFile != nil {
		r.writeToFile("\nEnded: " + time.Now().Format("2006-01-02 15:04:05") + "\n")
		r.logFile.Close()
	}
}
