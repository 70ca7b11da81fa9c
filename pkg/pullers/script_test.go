package pullers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestScriptPullRunsCommand(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran.txt")

	p := &Script{
		JobName: "custom-export",
		Command: []string{"sh", "-c", "echo done > ran.txt"},
		Dir:     dir,
	}

	result, err := p.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() error: %v", err)
	}
	if result.Duration <= 0 {
		t.Error("expected a positive duration")
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("script did not run in its working directory: %v", err)
	}
}

func TestScriptPullPassesEnvironment(t *testing.T) {
	dir := t.TempDir()

	p := &Script{
		JobName: "env-check",
		Command: []string{"sh", "-c", `printf "%s" "$PULL_SEASON" > season.txt`},
		Env:     map[string]string{"PULL_SEASON": "2024"},
		Dir:     dir,
	}

	if _, err := p.Pull(context.Background()); err != nil {
		t.Fatalf("Pull() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "season.txt"))
	if err != nil {
		t.Fatalf("reading marker: %v", err)
	}
	if string(data) != "2024" {
		t.Errorf("PULL_SEASON = %q, want %q", string(data), "2024")
	}
}

func TestScriptPullReportsExitCode(t *testing.T) {
	p := &Script{
		JobName: "failing-job",
		Command: []string{"sh", "-c", "echo boom >&2; exit 3"},
		Dir:     t.TempDir(),
	}

	_, err := p.Pull(context.Background())
	if err == nil {
		t.Fatal("expected error from failing script")
	}
	if !strings.Contains(err.Error(), "exit code 3") {
		t.Errorf("error %q should carry the exit code", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q should carry the script output", err)
	}
}

func TestScriptPullTimeout(t *testing.T) {
	p := &Script{
		JobName: "slow-job",
		Command: []string{"sleep", "5"},
		Dir:     t.TempDir(),
		Timeout: 50 * time.Millisecond,
	}

	start := time.Now()
	_, err := p.Pull(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout did not interrupt the script")
	}
}

func TestScriptHealthCheck(t *testing.T) {
	good := &Script{JobName: "ok", Command: []string{"sh", "-c", "true"}}
	if err := good.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error for resolvable binary: %v", err)
	}

	missing := &Script{JobName: "bad", Command: []string{"no-such-binary-on-path"}}
	if err := missing.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for unresolvable binary")
	}

	empty := &Script{JobName: "empty"}
	if err := empty.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for empty command")
	}
}
