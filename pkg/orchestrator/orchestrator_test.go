package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tatnall-legacy/leaguemirror/pkg/puller"
)

// MockPuller is a test double for puller.Puller
type MockPuller struct {
	name      string
	healthErr error
	pullErr   error
	records   int
	files     []string
	callCount int
	onPull    func()
}

func (m *MockPuller) Name() string   { return m.name }
func (m *MockPuller) Type() string   { return "mock" }
func (m *MockPuller) Source() string { return "mock" }

func (m *MockPuller) HealthCheck(ctx context.Context) error { return m.healthErr }

func (m *MockPuller) Pull(ctx context.Context) (*puller.Result, error) {
	m.callCount++
	if m.onPull != nil {
		m.onPull()
	}
	if m.pullErr != nil {
		return nil, m.pullErr
	}
	return &puller.Result{Records: m.records, Files: m.files}, nil
}

// MockRepository records the git operations invoked on it
type MockRepository struct {
	calls        []string
	syncErr      error
	lfsErr       error
	hasChanges   bool
	hasChangeErr error
	stageErr     error
	commitErr    error
	pushErr      error
	commitMsg    string
	stagedPath   string
}

func (m *MockRepository) Sync(ctx context.Context) error {
	m.calls = append(m.calls, "sync")
	return m.syncErr
}

func (m *MockRepository) EnsureLFS(ctx context.Context) error {
	m.calls = append(m.calls, "lfs")
	return m.lfsErr
}

func (m *MockRepository) HasChanges(ctx context.Context, path string) (bool, error) {
	m.calls = append(m.calls, "status")
	return m.hasChanges, m.hasChangeErr
}

func (m *MockRepository) Stage(ctx context.Context, path string) error {
	m.calls = append(m.calls, "add")
	m.stagedPath = path
	return m.stageErr
}

func (m *MockRepository) Commit(ctx context.Context, message string) error {
	m.calls = append(m.calls, "commit")
	m.commitMsg = message
	return m.commitErr
}

func (m *MockRepository) Push(ctx context.Context) error {
	m.calls = append(m.calls, "push")
	return m.pushErr
}

func writeCredential(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookie.txt")
	if err := os.WriteFile(path, []byte("espn_s2=abc; SWID={X}"), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunMissingCredentialAbortsBeforeSync(t *testing.T) {
	repo := &MockRepository{}
	orch := New(Config{
		CredentialFile: filepath.Join(t.TempDir(), "missing.txt"),
		CommitMessage:  "msg",
	}, repo, nil)

	p := &MockPuller{name: "espn-transactions"}
	orch.AddPuller(p)

	result, err := orch.Run(context.Background())
	if !errors.Is(err, ErrCredentialMissing) {
		t.Fatalf("expected ErrCredentialMissing, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing.txt") {
		t.Errorf("expected error to name the credential path, got %q", err.Error())
	}
	if len(repo.calls) != 0 {
		t.Errorf("expected no git operations, got %v", repo.calls)
	}
	if p.callCount != 0 {
		t.Errorf("expected no pulls, got %d", p.callCount)
	}
	if result.FailedStep != StageCredentialGate {
		t.Errorf("expected failure at credential gate, got %s", result.FailedStep)
	}
}

func TestRunFailFastStopsLaterJobs(t *testing.T) {
	repo := &MockRepository{}
	orch := New(Config{
		CredentialFile: writeCredential(t),
		CommitMessage:  "msg",
	}, repo, nil)

	first := &MockPuller{name: "espn-transactions", pullErr: errors.New("boom")}
	second := &MockPuller{name: "espn-lineups"}
	orch.AddPuller(first)
	orch.AddPuller(second)

	result, err := orch.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if second.callCount != 0 {
		t.Errorf("expected second job to be skipped, got %d calls", second.callCount)
	}
	if result.FailedJob != "espn-transactions" {
		t.Errorf("expected failed job espn-transactions, got %s", result.FailedJob)
	}
	for _, call := range repo.calls {
		if call == "add" || call == "commit" || call == "push" {
			t.Errorf("unexpected publish operation %s after pull failure", call)
		}
	}
}

func TestRunHealthCheckFailureSkipsPull(t *testing.T) {
	repo := &MockRepository{}
	orch := New(Config{
		CredentialFile: writeCredential(t),
		CommitMessage:  "msg",
	}, repo, nil)

	job := &MockPuller{name: "espn-transactions", healthErr: errors.New("cookie unreadable")}
	orch.AddPuller(job)

	result, err := orch.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if job.callCount != 0 {
		t.Errorf("expected pull to be skipped after failed health check, got %d calls", job.callCount)
	}
	if result.FailedJob != "espn-transactions" {
		t.Errorf("expected failed job espn-transactions, got %s", result.FailedJob)
	}
}

func TestRunSkipHealthCheck(t *testing.T) {
	repo := &MockRepository{}
	orch := New(Config{
		CredentialFile:  writeCredential(t),
		CommitMessage:   "msg",
		SkipHealthCheck: true,
	}, repo, nil)

	job := &MockPuller{name: "espn-transactions", healthErr: errors.New("cookie unreadable")}
	orch.AddPuller(job)

	if _, err := orch.Run(context.Background()); err != nil {
		t.Fatalf("expected health check to be skipped, got %v", err)
	}
	if job.callCount != 1 {
		t.Errorf("expected pull to run, got %d calls", job.callCount)
	}
}

func TestRunJobsExecuteInRegistrationOrder(t *testing.T) {
	repo := &MockRepository{}
	orch := New(Config{
		CredentialFile: writeCredential(t),
		CommitMessage:  "msg",
	}, repo, nil)

	var order []string
	for _, name := range []string{"espn-transactions", "espn-lineups", "sleeper-transactions"} {
		name := name
		orch.AddPuller(&MockPuller{name: name, onPull: func() {
			order = append(order, name)
		}})
	}

	if _, err := orch.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{"espn-transactions", "espn-lineups", "sleeper-transactions"}
	if len(order) != len(want) {
		t.Fatalf("expected %d pulls, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("pull %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestRunNoChangesSkipsPublish(t *testing.T) {
	repo := &MockRepository{hasChanges: false}
	var out bytes.Buffer
	orch := New(Config{
		CredentialFile: writeCredential(t),
		CommitMessage:  "msg",
	}, repo, &out)
	orch.AddPuller(&MockPuller{name: "espn-transactions"})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Changed || result.Committed || result.Pushed {
		t.Errorf("expected no publish, got changed=%t committed=%t pushed=%t",
			result.Changed, result.Committed, result.Pushed)
	}
	if !strings.Contains(out.String(), "No changes to commit.") {
		t.Errorf("expected no-changes message, got %q", out.String())
	}
	for _, call := range repo.calls {
		if call == "add" || call == "commit" || call == "push" {
			t.Errorf("unexpected publish operation %s", call)
		}
	}
}

func TestRunPublishesChanges(t *testing.T) {
	repo := &MockRepository{hasChanges: true}
	orch := New(Config{
		CredentialFile: writeCredential(t),
		DataPath:       "data_raw",
		CommitMessage:  "Refresh data_raw: ESPN transactions, ESPN lineups, Sleeper transactions",
	}, repo, nil)
	orch.AddPuller(&MockPuller{name: "espn-transactions", records: 12})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !result.Committed || !result.Pushed {
		t.Errorf("expected commit and push, got committed=%t pushed=%t", result.Committed, result.Pushed)
	}
	if repo.stagedPath != "data_raw" {
		t.Errorf("expected staging restricted to data_raw, got %q", repo.stagedPath)
	}
	if repo.commitMsg != "Refresh data_raw: ESPN transactions, ESPN lineups, Sleeper transactions" {
		t.Errorf("unexpected commit message %q", repo.commitMsg)
	}

	want := []string{"sync", "lfs", "status", "add", "commit", "push"}
	if len(repo.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, repo.calls)
	}
	for i := range want {
		if repo.calls[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], repo.calls[i])
		}
	}
}

func TestRunPushFailureKeepsLocalCommit(t *testing.T) {
	repo := &MockRepository{hasChanges: true, pushErr: errors.New("remote rejected")}
	orch := New(Config{
		CredentialFile: writeCredential(t),
		CommitMessage:  "msg",
	}, repo, nil)
	orch.AddPuller(&MockPuller{name: "espn-transactions"})

	result, err := orch.Run(context.Background())
	if err == nil {
		t.Fatal("expected push failure to fail the run")
	}
	if !result.Committed {
		t.Error("expected local commit to be recorded")
	}
	if result.Pushed {
		t.Error("expected push to be recorded as failed")
	}
}

func TestRunSyncFailureAbortsPulls(t *testing.T) {
	repo := &MockRepository{syncErr: errors.New("rebase conflict")}
	orch := New(Config{
		CredentialFile: writeCredential(t),
		CommitMessage:  "msg",
	}, repo, nil)
	p := &MockPuller{name: "espn-transactions"}
	orch.AddPuller(p)

	result, err := orch.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if p.callCount != 0 {
		t.Errorf("expected no pulls after sync failure, got %d", p.callCount)
	}
	if result.FailedStep != StageRepoSync {
		t.Errorf("expected failure at repo sync, got %s", result.FailedStep)
	}
}

func TestRunSkipPublish(t *testing.T) {
	repo := &MockRepository{hasChanges: true}
	orch := New(Config{
		CredentialFile: writeCredential(t),
		CommitMessage:  "msg",
		SkipPublish:    true,
	}, repo, nil)
	orch.AddPuller(&MockPuller{name: "espn-transactions"})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !result.Changed {
		t.Error("expected changes to be detected")
	}
	if result.Committed || result.Pushed {
		t.Error("expected no commit or push in dry-run")
	}
}

func TestRunStageHooksObserveEvents(t *testing.T) {
	repo := &MockRepository{hasChanges: true}
	orch := New(Config{
		CredentialFile: writeCredential(t),
		CommitMessage:  "msg",
	}, repo, nil)
	orch.AddPuller(&MockPuller{name: "espn-transactions"})

	var events []StageEvent
	orch.AddStageHook(func(event StageEvent) {
		events = append(events, event)
	})

	if _, err := orch.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	seen := map[Stage]bool{}
	for _, event := range events {
		if event.Status == StatusOK {
			seen[event.Stage] = true
		}
	}
	for _, stage := range []Stage{StageCredentialGate, StageRepoSync, StagePull, StageChangeDetect, StagePublish} {
		if !seen[stage] {
			t.Errorf("expected an ok event for stage %s", stage)
		}
	}
}

func TestRunCanceledContext(t *testing.T) {
	repo := &MockRepository{}
	orch := New(Config{
		CredentialFile: writeCredential(t),
		CommitMessage:  "msg",
	}, repo, nil)
	orch.AddPuller(&MockPuller{name: "espn-transactions"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunResultRecordsPullOutcomes(t *testing.T) {
	repo := &MockRepository{}
	orch := New(Config{
		CredentialFile: writeCredential(t),
		CommitMessage:  "msg",
	}, repo, nil)
	orch.AddPuller(&MockPuller{name: "espn-transactions", records: 42, files: []string{"a.json", "b.json"}})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Pulls) != 1 {
		t.Fatalf("expected 1 pull outcome, got %d", len(result.Pulls))
	}
	outcome := result.Pulls[0]
	if outcome.Records != 42 || outcome.Files != 2 {
		t.Errorf("expected 42 records and 2 files, got %d and %d", outcome.Records, outcome.Files)
	}
	if result.RunID == "" {
		t.Error("expected a run id")
	}
	if result.Started.After(time.Now()) {
		t.Error("expected a sane start time")
	}
}
