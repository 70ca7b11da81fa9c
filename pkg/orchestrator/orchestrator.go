// Package orchestrator runs the refresh pipeline: credential gate, repository
// sync, pull jobs in declared order, change detection, and publish. It
// coordinates stage hooks, metrics, and run reporting.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tatnall-legacy/leaguemirror/pkg/gitrepo"
	"github.com/tatnall-legacy/leaguemirror/pkg/log"
	"github.com/tatnall-legacy/leaguemirror/pkg/metrics"
	"github.com/tatnall-legacy/leaguemirror/pkg/puller"
)

// ErrCredentialMissing is returned when the credential file does not exist.
// Callers map it to exit status 1.
var ErrCredentialMissing = errors.New("credential file missing")

// Stage identifies one phase of a refresh run.
type Stage string

const (
	StageCredentialGate Stage = "credential-gate"
	StageRepoSync       Stage = "repo-sync"
	StagePull           Stage = "pull"
	StageChangeDetect   Stage = "change-detect"
	StagePublish        Stage = "publish"
)

// StageStatus is the outcome of one stage event.
type StageStatus string

const (
	StatusStarted StageStatus = "started"
	StatusOK      StageStatus = "ok"
	StatusFailed  StageStatus = "failed"
	StatusSkipped StageStatus = "skipped"
)

// StageEvent describes a stage transition during a run.
type StageEvent struct {
	Stage    Stage
	Status   StageStatus
	Job      string
	Err      error
	Duration time.Duration
}

// StageHook is invoked synchronously on every stage event. Keep hooks
// lightweight.
type StageHook func(event StageEvent)

// Config contains configuration for a refresh pipeline.
type Config struct {
	// CredentialFile is the path that must exist before any pull runs
	CredentialFile string
	// DataPath is the directory, relative to the repository root, that
	// pull jobs write to and whose changes get committed
	DataPath string
	// CommitMessage is the message used when publishing changes
	CommitMessage string
	// JobTimeout bounds a single pull job (0 = no limit)
	JobTimeout time.Duration
	// SkipHealthCheck skips each job's HealthCheck before its pull
	SkipHealthCheck bool
	// SkipPublish runs the pipeline without staging, committing, or pushing
	SkipPublish bool
}

// PullOutcome records one pull job's result within a run.
type PullOutcome struct {
	Job      string
	Source   string
	Records  int
	Files    int
	Duration time.Duration
}

// RunResult summarizes a completed refresh run.
type RunResult struct {
	RunID      string
	Started    time.Time
	Duration   time.Duration
	Pulls      []PullOutcome
	Changed    bool
	Committed  bool
	Pushed     bool
	FailedJob  string
	FailedStep Stage
}

// Orchestrator drives one refresh run end to end.
// All methods are safe for concurrent use.
type Orchestrator struct {
	config  Config
	repo    gitrepo.Repository
	pullers []puller.Puller
	hooks   []StageHook
	metrics *metrics.Metrics
	writer  io.Writer
	mu      sync.RWMutex
}

// New creates an Orchestrator for the given repository.
// The writer receives human-readable progress lines (e.g. for the TUI).
func New(config Config, repo gitrepo.Repository, writer io.Writer) *Orchestrator {
	if config.DataPath == "" {
		config.DataPath = "data_raw"
	}
	return &Orchestrator{
		config: config,
		repo:   repo,
		writer: writer,
	}
}

// AddPuller registers a pull job. Jobs run in registration order and the
// first failure aborts the run.
func (o *Orchestrator) AddPuller(p puller.Puller) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pullers = append(o.pullers, p)

	log.WithFields(map[string]interface{}{
		"job":    p.Name(),
		"type":   p.Type(),
		"source": p.Source(),
	}).Debug("pull job registered")
}

// SetMetrics sets the Prometheus metrics for the orchestrator.
// This method is thread-safe.
func (o *Orchestrator) SetMetrics(m *metrics.Metrics) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.metrics = m
}

// AddStageHook registers a hook to receive stage events.
func (o *Orchestrator) AddStageHook(hook StageHook) {
	if hook == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hooks = append(o.hooks, hook)
}

func (o *Orchestrator) emit(event StageEvent) {
	o.mu.RLock()
	hooks := append([]StageHook(nil), o.hooks...)
	o.mu.RUnlock()

	for _, hook := range hooks {
		hook(event)
	}
}

func (o *Orchestrator) say(format string, args ...interface{}) {
	if o.writer != nil {
		fmt.Fprintf(o.writer, format+"\n", args...)
	}
}

// Run executes the full pipeline. A nil error means every stage completed;
// a run with no data changes is a success.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	o.mu.RLock()
	pullers := append([]puller.Puller(nil), o.pullers...)
	m := o.metrics
	o.mu.RUnlock()

	result := &RunResult{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	defer func() {
		result.Duration = time.Since(result.Started)
		if m != nil {
			status := "ok"
			if result.FailedStep != "" {
				status = "failed"
			}
			m.RecordRun(status)
		}
	}()

	log.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"jobs":   len(pullers),
	}).Info("starting refresh run")

	if err := o.runStage(ctx, result, StageCredentialGate, m, func(ctx context.Context) error {
		return o.checkCredential()
	}); err != nil {
		return result, err
	}

	if err := o.runStage(ctx, result, StageRepoSync, m, func(ctx context.Context) error {
		if err := o.repo.Sync(ctx); err != nil {
			return err
		}
		return o.repo.EnsureLFS(ctx)
	}); err != nil {
		return result, err
	}

	for _, p := range pullers {
		if err := o.runPull(ctx, result, p, m); err != nil {
			return result, err
		}
	}

	var changed bool
	if err := o.runStage(ctx, result, StageChangeDetect, m, func(ctx context.Context) error {
		var err error
		changed, err = o.repo.HasChanges(ctx, o.config.DataPath)
		return err
	}); err != nil {
		return result, err
	}
	result.Changed = changed

	if !changed {
		o.say("No changes to commit.")
		log.WithField("run_id", result.RunID).Info("no changes to commit")
		o.emit(StageEvent{Stage: StagePublish, Status: StatusSkipped})
		if m != nil {
			m.RecordCommit("no_changes")
		}
		return result, nil
	}

	if o.config.SkipPublish {
		o.say("Changes detected; publish skipped.")
		o.emit(StageEvent{Stage: StagePublish, Status: StatusSkipped})
		return result, nil
	}

	if err := o.runStage(ctx, result, StagePublish, m, func(ctx context.Context) error {
		return o.publish(ctx, result, m)
	}); err != nil {
		return result, err
	}

	log.WithFields(map[string]interface{}{
		"run_id":   result.RunID,
		"duration": time.Since(result.Started).String(),
		"pushed":   result.Pushed,
	}).Info("refresh run completed")

	return result, nil
}

// checkCredential verifies the credential file exists. Its contents are
// never read here and never logged.
func (o *Orchestrator) checkCredential() error {
	if o.config.CredentialFile == "" {
		return nil
	}
	if _, err := os.Stat(o.config.CredentialFile); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrCredentialMissing, o.config.CredentialFile)
		}
		return fmt.Errorf("checking credential file %s: %w", o.config.CredentialFile, err)
	}
	return nil
}

func (o *Orchestrator) runStage(ctx context.Context, result *RunResult, stage Stage, m *metrics.Metrics, fn func(ctx context.Context) error) error {
	select {
	case <-ctx.Done():
		result.FailedStep = stage
		return ctx.Err()
	default:
	}

	o.emit(StageEvent{Stage: stage, Status: StatusStarted})
	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	if m != nil {
		m.RecordStage(string(stage), duration)
	}

	if err != nil {
		result.FailedStep = stage
		o.emit(StageEvent{Stage: stage, Status: StatusFailed, Err: err, Duration: duration})
		log.WithField("stage", string(stage)).WithError(err).Error("refresh stage failed")
		return err
	}

	o.emit(StageEvent{Stage: stage, Status: StatusOK, Duration: duration})
	return nil
}

func (o *Orchestrator) runPull(ctx context.Context, result *RunResult, p puller.Puller, m *metrics.Metrics) error {
	select {
	case <-ctx.Done():
		result.FailedStep = StagePull
		result.FailedJob = p.Name()
		return ctx.Err()
	default:
	}

	o.emit(StageEvent{Stage: StagePull, Status: StatusStarted, Job: p.Name()})
	o.say("Pulling %s...", p.Name())

	jobCtx := ctx
	if o.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, o.config.JobTimeout)
		defer cancel()
	}

	if !o.config.SkipHealthCheck {
		if err := p.HealthCheck(jobCtx); err != nil {
			result.FailedStep = StagePull
			result.FailedJob = p.Name()
			o.emit(StageEvent{Stage: StagePull, Status: StatusFailed, Job: p.Name(), Err: err})
			log.WithField("job", p.Name()).WithError(err).Error("pull job health check failed")
			return fmt.Errorf("health check %s: %w", p.Name(), err)
		}
	}

	start := time.Now()
	pullResult, err := p.Pull(jobCtx)
	duration := time.Since(start)

	if m != nil {
		m.RecordStage(string(StagePull), duration)
	}

	if err != nil {
		result.FailedStep = StagePull
		result.FailedJob = p.Name()
		if m != nil {
			m.RecordPullError(p.Name())
		}
		o.emit(StageEvent{Stage: StagePull, Status: StatusFailed, Job: p.Name(), Err: err, Duration: duration})
		log.WithField("job", p.Name()).WithError(err).Error("pull job failed")
		return fmt.Errorf("pull %s: %w", p.Name(), err)
	}

	outcome := PullOutcome{
		Job:      p.Name(),
		Source:   p.Source(),
		Duration: duration,
	}
	if pullResult != nil {
		outcome.Records = pullResult.Records
		outcome.Files = len(pullResult.Files)
	}
	result.Pulls = append(result.Pulls, outcome)

	if m != nil {
		m.RecordPull(p.Name(), outcome.Records, outcome.Files)
	}

	o.emit(StageEvent{Stage: StagePull, Status: StatusOK, Job: p.Name(), Duration: duration})
	log.WithFields(map[string]interface{}{
		"job":      p.Name(),
		"records":  outcome.Records,
		"files":    outcome.Files,
		"duration": duration.String(),
	}).Info("pull job completed")

	return nil
}

// publish stages the data directory, commits, and pushes. A push failure is
// fatal to the run but the local commit is kept for a later retry.
func (o *Orchestrator) publish(ctx context.Context, result *RunResult, m *metrics.Metrics) error {
	if err := o.repo.Stage(ctx, o.config.DataPath); err != nil {
		return fmt.Errorf("staging %s: %w", o.config.DataPath, err)
	}

	if err := o.repo.Commit(ctx, o.config.CommitMessage); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	result.Committed = true
	if m != nil {
		m.RecordCommit("committed")
	}

	if err := o.repo.Push(ctx); err != nil {
		if m != nil {
			m.RecordCommit("push_failed")
		}
		return fmt.Errorf("pushing (local commit kept): %w", err)
	}
	result.Pushed = true
	if m != nil {
		m.RecordCommit("pushed")
	}

	o.say("Committed and pushed data refresh.")
	return nil
}
