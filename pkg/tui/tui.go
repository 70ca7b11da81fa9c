// Package tui renders a live refresh run as a terminal progress view.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tatnall-legacy/leaguemirror/pkg/orchestrator"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			Background(lipgloss.Color("63")).
			Padding(0, 1)

	stageStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	okMarkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	failMarkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	skipMarkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

type stageLine struct {
	name     string
	status   orchestrator.StageStatus
	err      error
	duration time.Duration
}

// RunFunc executes a refresh run, reporting stage events through the hook.
type RunFunc func(ctx context.Context, hook orchestrator.StageHook) (*orchestrator.RunResult, error)

// Model is the progress view for one refresh run.
type Model struct {
	spinner spinner.Model
	stages  []stageLine
	done    bool
	result  *orchestrator.RunResult
	err     error
	cancel  context.CancelFunc
}

type stageEventMsg struct {
	event orchestrator.StageEvent
}

type runDoneMsg struct {
	result *orchestrator.RunResult
	err    error
}

// Run drives the refresh in a goroutine and blocks until the view exits.
// The returned values mirror what the run function produced.
func Run(ctx context.Context, run RunFunc) (*orchestrator.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	m := Model{
		spinner: sp,
		cancel:  cancel,
	}

	p := tea.NewProgram(m)

	var (
		result *orchestrator.RunResult
		runErr error
	)

	go func() {
		result, runErr = run(ctx, func(event orchestrator.StageEvent) {
			p.Send(stageEventMsg{event: event})
		})
		p.Send(runDoneMsg{result: result, err: runErr})
	}()

	if _, err := p.Run(); err != nil {
		return result, err
	}
	return result, runErr
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.cancel != nil {
				m.cancel()
			}
			if m.done {
				return m, tea.Quit
			}
			return m, nil
		}
		if m.done {
			return m, tea.Quit
		}
		return m, nil

	case stageEventMsg:
		m.applyEvent(msg.event)
		return m, nil

	case runDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) applyEvent(event orchestrator.StageEvent) {
	name := string(event.Stage)
	if event.Job != "" {
		name = fmt.Sprintf("%s (%s)", event.Stage, event.Job)
	}

	for i := range m.stages {
		if m.stages[i].name == name {
			m.stages[i].status = event.Status
			m.stages[i].err = event.Err
			m.stages[i].duration = event.Duration
			return
		}
	}

	m.stages = append(m.stages, stageLine{
		name:     name,
		status:   event.Status,
		err:      event.Err,
		duration: event.Duration,
	})
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("leaguemirror refresh"))
	b.WriteString("\n\n")

	for _, stage := range m.stages {
		switch stage.status {
		case orchestrator.StatusStarted:
			b.WriteString(m.spinner.View())
			b.WriteString(" ")
			b.WriteString(stageStyle.Render(stage.name))
		case orchestrator.StatusOK:
			b.WriteString(okMarkStyle.Render("✓ "))
			b.WriteString(stage.name)
			if stage.duration > 0 {
				b.WriteString(detailStyle.Render(fmt.Sprintf("  %s", stage.duration.Round(time.Millisecond))))
			}
		case orchestrator.StatusFailed:
			b.WriteString(failMarkStyle.Render("✗ "))
			b.WriteString(stage.name)
			if stage.err != nil {
				b.WriteString("\n  ")
				b.WriteString(failMarkStyle.Render(stage.err.Error()))
			}
		case orchestrator.StatusSkipped:
			b.WriteString(skipMarkStyle.Render("- " + stage.name + " (skipped)"))
		}
		b.WriteString("\n")
	}

	if m.done {
		b.WriteString("\n")
		switch {
		case m.err != nil:
			b.WriteString(failMarkStyle.Render("Run failed: " + m.err.Error()))
		case m.result != nil && !m.result.Changed:
			b.WriteString(skipMarkStyle.Render("No changes to commit."))
		case m.result != nil && m.result.Pushed:
			b.WriteString(okMarkStyle.Render("Committed and pushed."))
		default:
			b.WriteString(okMarkStyle.Render("Done."))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("Press any key to exit"))
	} else {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("Ctrl+C: cancel run"))
	}
	b.WriteString("\n")

	return b.String()
}
