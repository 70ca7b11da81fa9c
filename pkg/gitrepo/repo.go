// Package gitrepo wraps the git and git-lfs binaries for the narrow set of
// operations a refresh run needs: syncing the checkout, detecting changes
// under the data directory, and publishing a commit.
package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tatnall-legacy/leaguemirror/pkg/log"
)

// Repository is the mirror checkout as seen by a refresh run.
type Repository interface {
	// Sync brings the checkout up to date with its remote
	Sync(ctx context.Context) error
	// EnsureLFS makes sure git-lfs hooks are installed (idempotent)
	EnsureLFS(ctx context.Context) error
	// HasChanges reports whether the given path has uncommitted changes,
	// including untracked files. It never mutates the working tree.
	HasChanges(ctx context.Context, path string) (bool, error)
	// Stage adds everything under the given path to the index
	Stage(ctx context.Context, path string) error
	// Commit records the staged changes
	Commit(ctx context.Context, message string) error
	// Push publishes the current branch to the remote
	Push(ctx context.Context) error
}

// Runner executes one external command and returns its combined output.
// The default runner shells out; tests substitute a recording fake.
type Runner func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}

// GitRepository runs git against a local checkout.
type GitRepository struct {
	path   string
	remote string
	branch string
	run    Runner
}

// Option configures a GitRepository.
type Option func(*GitRepository)

// WithRunner substitutes the command runner. Used by tests.
func WithRunner(r Runner) Option {
	return func(g *GitRepository) { g.run = r }
}

// New returns a GitRepository for the checkout at path.
func New(path, remote, branch string, opts ...Option) *GitRepository {
	g := &GitRepository{
		path:   path,
		remote: remote,
		branch: branch,
		run:    execRunner,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GitRepository) git(ctx context.Context, args ...string) ([]byte, error) {
	output, err := g.run(ctx, g.path, "git", args...)
	if err != nil {
		return output, fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

// Sync rebases the local branch onto the remote.
func (g *GitRepository) Sync(ctx context.Context) error {
	log.WithFields(map[string]interface{}{
		"remote": g.remote,
		"branch": g.branch,
	}).Info("syncing repository")
	_, err := g.git(ctx, "pull", "--rebase", g.remote, g.branch)
	return err
}

// EnsureLFS installs the git-lfs hooks. git-lfs treats a repeat install
// as a no-op, so this is safe to run on every refresh.
func (g *GitRepository) EnsureLFS(ctx context.Context) error {
	_, err := g.git(ctx, "lfs", "install")
	return err
}

// HasChanges checks the porcelain status restricted to path.
func (g *GitRepository) HasChanges(ctx context.Context, path string) (bool, error) {
	output, err := g.git(ctx, "status", "--porcelain", "--", path)
	if err != nil {
		return false, err
	}
	return len(bytes.TrimSpace(output)) > 0, nil
}

// Stage adds path to the index.
func (g *GitRepository) Stage(ctx context.Context, path string) error {
	_, err := g.git(ctx, "add", "--", path)
	return err
}

// Commit records the staged changes with the given message.
func (g *GitRepository) Commit(ctx context.Context, message string) error {
	_, err := g.git(ctx, "commit", "-m", message)
	return err
}

// Push publishes the branch. A failed push leaves the local commit in
// place for a later retry.
func (g *GitRepository) Push(ctx context.Context) error {
	_, err := g.git(ctx, "push", g.remote, g.branch)
	return err
}

// Head returns the current commit hash.
func (g *GitRepository) Head(ctx context.Context) (string, error) {
	output, err := g.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}
