// Package publish commits and pushes rendered exports with the local
// git binary. The protocol protects shared repository state: refuse
// outside a work tree, refuse a dirty staged area, commit only when
// something was actually staged, push only after a commit. A dry run
// performs the checks and logs the plan without touching the index.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Publisher runs the publish protocol over one repository work tree.
type Publisher struct {
	dir    string
	remote string
	branch string // empty pushes HEAD
	dryRun bool
	log    logrus.FieldLogger

	run func(ctx context.Context, dir string, args ...string) (string, error)
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithRemote sets the push remote.
func WithRemote(remote string) Option {
	return func(p *Publisher) {
		if remote != "" {
			p.remote = remote
		}
	}
}

// WithBranch sets the push branch; empty pushes the current branch.
func WithBranch(branch string) Option {
	return func(p *Publisher) { p.branch = branch }
}

// WithDryRun makes Publish log the plan instead of executing it.
func WithDryRun(dryRun bool) Option {
	return func(p *Publisher) { p.dryRun = dryRun }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Publisher) { p.log = log }
}

// New creates a Publisher for the repository containing dir.
func New(dir string, opts ...Option) *Publisher {
	p := &Publisher{
		dir:    dir,
		remote: "origin",
		log:    logrus.StandardLogger(),
		run:    runGit,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish stages the given paths, commits them with message, and
// pushes. Identical re-renders stage nothing; that is a no-op, not an
// error.
func (p *Publisher) Publish(ctx context.Context, message string, paths ...string) error {
	inside, err := p.run(ctx, p.dir, "rev-parse", "--is-inside-work-tree")
	if err != nil || inside != "true" {
		return NotRepoError{Dir: p.dir}
	}

	staged, err := p.stagedFiles(ctx)
	if err != nil {
		return err
	}
	if len(staged) > 0 {
		return DirtyIndexError{Files: staged}
	}

	if p.dryRun {
		p.log.WithFields(logrus.Fields{
			"remote": p.remote,
			"branch": p.pushRef(),
			"files":  len(paths),
		}).Info("dry run: would add, commit, push")
		return nil
	}

	addArgs := append([]string{"add", "--"}, paths...)
	if _, err := p.run(ctx, p.dir, addArgs...); err != nil {
		return fmt.Errorf("publish: stage exports: %w", err)
	}

	staged, err = p.stagedFiles(ctx)
	if err != nil {
		return err
	}
	if len(staged) == 0 {
		p.log.Info("exports unchanged, nothing to publish")
		return nil
	}

	if _, err := p.run(ctx, p.dir, "commit", "-m", message); err != nil {
		return fmt.Errorf("publish: commit: %w", err)
	}
	if _, err := p.run(ctx, p.dir, "push", p.remote, p.pushRef()); err != nil {
		return fmt.Errorf("publish: push: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"remote": p.remote,
		"branch": p.pushRef(),
		"files":  len(staged),
	}).Info("published exports")
	return nil
}

func (p *Publisher) stagedFiles(ctx context.Context) ([]string, error) {
	out, err := p.run(ctx, p.dir, "diff", "--cached", "--name-only")
	if err != nil {
		return nil, fmt.Errorf("publish: inspect staged area: %w", err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

func (p *Publisher) pushRef() string {
	if p.branch != "" {
		return p.branch
	}
	return "HEAD"
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %v: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
