package pullers

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/tatnall-legacy/leaguemirror/pkg/log"
	"github.com/tatnall-legacy/leaguemirror/pkg/puller"
)

// Script invokes an external pull script as a child process. The script
// receives its configuration through environment variables and is trusted
// to write its output under the repository's data path; the only signal
// consumed here is the exit status.
type Script struct {
	// JobName identifies the job in logs and reports
	JobName string
	// Command is the argv of the script
	Command []string
	// Env is the additional environment, merged over the parent process's
	Env map[string]string
	// Dir is the working directory for the script (the repository root)
	Dir string
	// Timeout bounds one invocation (0 = no limit)
	Timeout time.Duration
}

// Name implements puller.Puller.
func (p *Script) Name() string { return p.JobName }

// Type implements puller.Puller.
func (p *Script) Type() string { return "script" }

// Source implements puller.Puller.
func (p *Script) Source() string { return "script" }

// HealthCheck verifies the script binary is resolvable.
func (p *Script) HealthCheck(ctx context.Context) error {
	if len(p.Command) == 0 {
		return fmt.Errorf("script job %s has no command", p.JobName)
	}
	if _, err := exec.LookPath(p.Command[0]); err != nil {
		return fmt.Errorf("script %s not found: %w", p.Command[0], err)
	}
	return nil
}

// Pull implements puller.Puller.
func (p *Script) Pull(ctx context.Context) (*puller.Result, error) {
	if err := p.HealthCheck(ctx); err != nil {
		return nil, err
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	cmd.Dir = p.Dir
	cmd.Env = mergedEnv(p.Env)

	log.WithFields(map[string]interface{}{
		"job":     p.JobName,
		"command": p.Command[0],
	}).Info("running external pull script")

	start := time.Now()
	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			log.WithFields(map[string]interface{}{
				"job":       p.JobName,
				"exit_code": exitErr.ExitCode(),
				"duration":  duration.String(),
			}).Error("pull script failed")
			return nil, fmt.Errorf("script %s failed (exit code %d): %s", p.JobName, exitErr.ExitCode(), string(output))
		}
		return nil, fmt.Errorf("script %s failed: %w\nOutput: %s", p.JobName, err, string(output))
	}

	log.WithFields(map[string]interface{}{
		"job":      p.JobName,
		"duration": duration.String(),
	}).Info("pull script completed")

	return &puller.Result{Duration: duration}, nil
}

// mergedEnv overlays the job environment on the parent environment with
// deterministic ordering.
func mergedEnv(extra map[string]string) []string {
	env := os.Environ()

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
