/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package clonemanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"golang.org/x/oauth2"

	"chainguard.dev/changeagent/agents/executor/retry"
	"chainguard.dev/changeagent/pipeline/errdefs"
	"chainguard.dev/changeagent/repository"
)

const cloneDirPrefix = "changeagent-clone-"

const (
	DefaultAuthorName  = "Coding Agent"
	DefaultAuthorEmail = "changeagent@users.noreply.github.com"
)

// Manager clones repositories and pushes branches on behalf of change
// requests. It holds no per-request state and is safe for concurrent use.
type Manager struct {
	tokenSource oauth2.TokenSource
	authorName  string
	authorEmail string
	remoteURL   func(repository.Ref) string
	retry       retry.RetryConfig
	now         func() time.Time

	push PushFunc
}

// PushFunc pushes refs of repo to a remote.
type PushFunc func(ctx context.Context, repo *git.Repository, opts *git.PushOptions) error

// DefaultPush pushes with go-git.
func DefaultPush(ctx context.Context, repo *git.Repository, opts *git.PushOptions) error {
	return repo.PushContext(ctx, opts)
}

// Option configures a Manager.
type Option func(*Manager)

// WithRemoteURL overrides how a Ref maps to a clone URL. Tests use it to
// point at local repositories.
func WithRemoteURL(fn func(repository.Ref) string) Option {
	return func(m *Manager) { m.remoteURL = fn }
}

// WithIdentity sets the commit author.
func WithIdentity(name, email string) Option {
	return func(m *Manager) {
		if name = strings.TrimSpace(name); name != "" {
			m.authorName = name
		}
		if email = strings.TrimSpace(email); email != "" {
			m.authorEmail = email
		}
	}
}

// WithRetryConfig sets the retry policy for pushes.
func WithRetryConfig(cfg retry.RetryConfig) Option {
	return func(m *Manager) { m.retry = cfg }
}

// WithPushFunc replaces how branches are pushed, e.g. to observe or fail
// pushes in tests. The function is still subject to the retry policy.
func WithPushFunc(fn PushFunc) Option {
	return func(m *Manager) { m.push = fn }
}

// WithClock sets the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New constructs a Manager. The provided OAuth2 token source must allow cloning
// and pushing to the targeted repository.
func New(tokenSource oauth2.TokenSource, opts ...Option) (*Manager, error) {
	if tokenSource == nil {
		return nil, errors.New("token source cannot be nil")
	}
	m := &Manager{
		tokenSource: tokenSource,
		authorName:  DefaultAuthorName,
		authorEmail: DefaultAuthorEmail,
		remoteURL:   repository.Ref.URL,
		retry:       retry.SingleRetry(2 * time.Second),
		now:         time.Now,
		push:        DefaultPush,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	return m, nil
}

// Lease is an isolated working copy owned by one change request.
type Lease struct {
	ref    repository.Ref
	remote string
	dir    string
	repo   *git.Repository
	branch string
	sha    string
}

// Clone hydrates a fresh working copy of ref. An empty branch checks out the
// remote's default branch. Callers must Close the lease on every path.
func (m *Manager) Clone(ctx context.Context, ref repository.Ref, branch string) (*Lease, error) {
	log := clog.FromContext(ctx)

	dir, err := os.MkdirTemp("", cloneDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}

	remote := m.remoteURL(ref)
	log.Infof("Cloning repository %s into %s", ref, dir)

	auth, err := m.authForRemote()
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("getting token: %w", err)
	}

	opts := &git.CloneOptions{
		URL:          remote,
		SingleBranch: true,
		Auth:         auth,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}
	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		os.RemoveAll(dir)
		return nil, cloneError(ctx, ref, err)
	}

	head, err := repo.Head()
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	return &Lease{
		ref:    ref,
		remote: remote,
		dir:    dir,
		repo:   repo,
		branch: head.Name().Short(),
		sha:    head.Hash().String(),
	}, nil
}

func cloneError(ctx context.Context, ref repository.Ref, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cloning repository: %w", ctx.Err())
	}
	access := &errdefs.AccessError{URL: ref.URL(), Err: err}
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		access.Reason = "the repository is private or the token was rejected"
	case errors.Is(err, transport.ErrRepositoryNotFound):
		access.Reason = "repository not found"
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		access.Reason = "repository has no commits"
	default:
		access.Reason = "clone failed"
	}
	return access
}

func (m *Manager) authForRemote() (*githttp.BasicAuth, error) {
	token, err := m.tokenSource.Token()
	if err != nil {
		return nil, err
	}

	return &githttp.BasicAuth{
		Username: "unused-when-using-access-tokens",
		Password: token.AccessToken,
	}, nil
}

// Commit describes the commit CommitAndPush creates.
type Commit struct {
	Branch  string
	Subject string
	Body    string
}

func (c Commit) message() string {
	if c.Body == "" || c.Body == c.Subject {
		return c.Subject
	}
	return c.Subject + "\n\n" + c.Body
}

// StepFunc observes each completed git step in shell form. Returning an
// error stops CommitAndPush before the next step.
type StepFunc func(ctx context.Context, command, output string) error

// FileStat summarizes the change to one file in the pushed commit.
type FileStat struct {
	Path    string
	Added   int
	Removed int
}

// PushResult describes the pushed branch.
type PushResult struct {
	Branch string
	Base   string
	SHA    string
	Stats  []FileStat
}

// CommitAndPush creates c.Branch at the leased commit, stages every change in
// the working tree, commits it and pushes the branch to origin. A clean
// working tree is a *errdefs.NoChangesIdentifiedError; git failures are
// *errdefs.GitOperationError.
func (m *Manager) CommitAndPush(ctx context.Context, l *Lease, c Commit, step StepFunc) (*PushResult, error) {
	log := clog.FromContext(ctx)
	if c.Branch == "" {
		return nil, errors.New("branch name cannot be empty")
	}
	if c.Subject == "" {
		return nil, errors.New("commit message cannot be empty")
	}
	if step == nil {
		step = func(context.Context, string, string) error { return nil }
	}

	worktree, err := l.repo.Worktree()
	if err != nil {
		return nil, &errdefs.GitOperationError{Op: "worktree", Err: err}
	}

	refName := plumbing.NewBranchReferenceName(c.Branch)
	if err := worktree.Checkout(&git.CheckoutOptions{Branch: refName, Create: true, Keep: true}); err != nil {
		return nil, &errdefs.GitOperationError{Op: "checkout", Err: err}
	}
	if err := step(ctx, "git checkout -b "+c.Branch, fmt.Sprintf("Switched to a new branch '%s'", c.Branch)); err != nil {
		return nil, err
	}

	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, &errdefs.GitOperationError{Op: "add", Err: err}
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, &errdefs.GitOperationError{Op: "status", Err: err}
	}
	if status.IsClean() {
		return nil, &errdefs.NoChangesIdentifiedError{Reason: "the edits left the working copy unchanged"}
	}
	if err := step(ctx, "git add .", ""); err != nil {
		return nil, err
	}

	hash, err := worktree.Commit(c.message(), &git.CommitOptions{
		Author: &object.Signature{
			Name:  m.authorName,
			Email: m.authorEmail,
			When:  m.now(),
		},
	})
	if err != nil {
		return nil, &errdefs.GitOperationError{Op: "commit", Err: err}
	}
	sha := hash.String()
	if err := step(ctx, fmt.Sprintf("git commit -m '%s'", c.Subject), fmt.Sprintf("%s %s", sha[:7], c.Subject)); err != nil {
		return nil, err
	}

	stats, err := l.stats(hash)
	if err != nil {
		// The summary is informational; the push does not depend on it.
		log.Warnf("Computing diff stats: %v", err)
	}

	if err := m.pushBranch(ctx, l, refName); err != nil {
		return nil, err
	}
	if err := step(ctx, "git push origin "+c.Branch, fmt.Sprintf("To %s\n * [new branch]      %s -> %s", l.ref.URL(), c.Branch, c.Branch)); err != nil {
		return nil, err
	}

	return &PushResult{
		Branch: c.Branch,
		Base:   l.branch,
		SHA:    sha,
		Stats:  stats,
	}, nil
}

func (m *Manager) pushBranch(ctx context.Context, l *Lease, ref plumbing.ReferenceName) error {
	log := clog.FromContext(ctx)

	auth, err := m.authForRemote()
	if err != nil {
		return &errdefs.GitOperationError{Op: "push", Err: fmt.Errorf("getting token: %w", err)}
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("%s:%s", ref.String(), ref.String()))
	log.Infof("Pushing %s", refSpec)

	err = retry.Do(ctx, m.retry, "git push", isTransientPushError, func() error {
		err := m.push(ctx, l.repo, &git.PushOptions{
			RemoteName: "origin",
			Auth:       auth,
			RefSpecs:   []gitconfig.RefSpec{refSpec},
		})
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			log.Infof("Branch already up to date")
			return nil
		}
		return err
	})
	if err != nil {
		return &errdefs.GitOperationError{Op: "push", Err: err}
	}
	return nil
}

// isTransientPushError reports network failures worth one more attempt.
// Authentication failures and rejected updates are final.
func isTransientPushError(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrRepositoryNotFound):
		return false
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (l *Lease) stats(hash plumbing.Hash) ([]FileStat, error) {
	commit, err := l.repo.CommitObject(hash)
	if err != nil {
		return nil, err
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return nil, err
	}
	patch, err := parent.Patch(commit)
	if err != nil {
		return nil, err
	}
	var out []FileStat
	for _, s := range patch.Stats() {
		out = append(out, FileStat{Path: s.Name, Added: s.Addition, Removed: s.Deletion})
	}
	return out, nil
}

// WorkingTree returns the absolute path to the lease's working directory.
func (l *Lease) WorkingTree() string {
	return l.dir
}

// DefaultBranch returns the branch that was checked out by Clone.
func (l *Lease) DefaultBranch() string {
	return l.branch
}

// SHA returns the commit hash checked out by Clone.
func (l *Lease) SHA() string {
	return l.sha
}

// Close removes the working copy. It is safe to call more than once.
func (l *Lease) Close() error {
	if l == nil || l.dir == "" {
		return nil
	}
	dir := l.dir
	l.dir, l.repo = "", nil
	return os.RemoveAll(dir)
}
