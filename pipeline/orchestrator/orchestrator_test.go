/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/oauth2"

	"chainguard.dev/changeagent/agents/agenttrace"
	"chainguard.dev/changeagent/agents/executor"
	"chainguard.dev/changeagent/agents/executor/retry"
	"chainguard.dev/changeagent/pipeline/errdefs"
	"chainguard.dev/changeagent/pipeline/events"
	"chainguard.dev/changeagent/pipeline/patch"
	"chainguard.dev/changeagent/pipeline/patchoracle"
	"chainguard.dev/changeagent/pipeline/selection"
	"chainguard.dev/changeagent/repository"
	"chainguard.dev/changeagent/repository/changemanager"
	"chainguard.dev/changeagent/repository/clonemanager"
)

const (
	testURL = "https://github.com/owner/repo"
	prURL   = "https://github.com/owner/repo/pull/7"
)

type staticTokenSource string

func (s staticTokenSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: string(s)}, nil
}

// fakePublisher stands in for GitHub.
type fakePublisher struct {
	inspectErr error
	openErr    error

	mu     sync.Mutex
	opened []changemanager.Request
}

func (f *fakePublisher) Inspect(context.Context, repository.Ref) (*changemanager.RepositoryInfo, error) {
	if f.inspectErr != nil {
		return nil, f.inspectErr
	}
	return &changemanager.RepositoryInfo{DefaultBranch: "main", ViewerPermission: "WRITE"}, nil
}

func (f *fakePublisher) Open(_ context.Context, req changemanager.Request) (*changemanager.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened = append(f.opened, req)
	return &changemanager.PullRequest{Number: 7, URL: prURL}, nil
}

// scriptedModel answers each call with a canned reply.
func scriptedModel(replies map[string]string) executor.Completer {
	return executor.CompleterFunc(func(_ context.Context, req executor.Request) (*executor.Completion, error) {
		text, ok := replies[req.Call]
		if !ok {
			return nil, fmt.Errorf("unexpected call %q", req.Call)
		}
		return &executor.Completion{Text: text, Model: "test-model"}, nil
	})
}

// blockingModel waits for its context to end.
func blockingModel() executor.Completer {
	return executor.CompleterFunc(func(ctx context.Context, _ executor.Request) (*executor.Completion, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func initOrigin(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if _, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return dir
}

func newGit(t *testing.T, origin string, opts ...clonemanager.Option) *clonemanager.Manager {
	t.Helper()
	opts = append([]clonemanager.Option{
		clonemanager.WithRemoteURL(func(repository.Ref) string { return origin }),
		clonemanager.WithRetryConfig(retry.SingleRetry(time.Millisecond)),
	}, opts...)
	mgr, err := clonemanager.New(staticTokenSource("token"), opts...)
	if err != nil {
		t.Fatalf("clonemanager.New: %v", err)
	}
	return mgr
}

func newOrchestrator(g Git, pub Publisher, model executor.Completer, opts ...Option) *Orchestrator {
	opts = append([]Option{
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	}, opts...)
	return New(g, pub, selection.New(model), patchoracle.New(model), opts...)
}

// runAndCollect runs req to completion and returns every event delivered.
func runAndCollect(t *testing.T, o *Orchestrator, req ChangeRequest) (Phase, []events.Event) {
	t.Helper()

	stream := events.NewStream(events.DefaultBuffer)
	done := make(chan Phase, 1)
	go func() { done <- o.Run(context.Background(), req, stream) }()

	var got []events.Event
	for ev := range stream.Events() {
		got = append(got, ev)
	}
	return <-done, got
}

// checkOrder verifies the run reads before it edits, edits before it runs
// commands, says nothing once editing started, and ends with exactly one
// terminal event.
func checkOrder(t *testing.T, evs []events.Event) {
	t.Helper()
	if len(evs) == 0 {
		t.Fatal("no events")
	}

	// Stages: 0 messages, 1 reads, 2 messages, 3 edits, 4 commands.
	stage := 0
	for i, ev := range evs[:len(evs)-1] {
		next := stage
		switch ev.(type) {
		case events.AIMessage:
			if stage == 1 {
				next = 2
			}
			if stage > 2 {
				next = -1
			}
		case events.ToolRead:
			next = 1
		case events.ToolEdit:
			next = 3
		case events.ToolBash:
			next = 4
		default:
			t.Fatalf("event %d (%s) is terminal but not last", i, ev.Kind())
		}
		if next < stage {
			t.Fatalf("event %d (%s) out of order after stage %d", i, ev.Kind(), stage)
		}
		stage = next
	}
	if !evs[len(evs)-1].Terminal() {
		t.Fatalf("last event %s is not terminal", evs[len(evs)-1].Kind())
	}
}

func kinds(evs []events.Event) []events.Kind {
	out := make([]events.Kind, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Kind())
	}
	return out
}

func bashCommands(evs []events.Event) []string {
	var out []string
	for _, ev := range evs {
		if b, ok := ev.(events.ToolBash); ok {
			out = append(out, b.Command)
		}
	}
	return out
}

func terminalError(t *testing.T, evs []events.Event) string {
	t.Helper()
	last, ok := evs[len(evs)-1].(events.Error)
	if !ok {
		t.Fatalf("last event = %T, wanted events.Error", evs[len(evs)-1])
	}
	return last.Message
}

func originFile(t *testing.T, origin, branch, path string) string {
	t.Helper()
	repo, err := git.PlainOpen(origin)
	if err != nil {
		t.Fatalf("PlainOpen: %v", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		t.Fatalf("Reference(%s): %v", branch, err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		t.Fatalf("CommitObject: %v", err)
	}
	f, err := commit.File(path)
	if err != nil {
		t.Fatalf("File(%s): %v", path, err)
	}
	content, err := f.Contents()
	if err != nil {
		t.Fatalf("Contents: %v", err)
	}
	return content
}

func originBranches(t *testing.T, origin string) []string {
	t.Helper()
	repo, err := git.PlainOpen(origin)
	if err != nil {
		t.Fatalf("PlainOpen: %v", err)
	}
	iter, err := repo.Branches()
	if err != nil {
		t.Fatalf("Branches: %v", err)
	}
	var out []string
	_ = iter.ForEach(func(r *plumbing.Reference) error {
		out = append(out, r.Name().Short())
		return nil
	})
	return out
}

// isolateTempDir points TMPDIR at a fresh directory so working copies made
// by the run can be counted afterwards.
func isolateTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)
	return dir
}

// checkNoWorkingCopies fails the test if a clone directory survived the run.
func checkNoWorkingCopies(t *testing.T, dir string) {
	t.Helper()
	left, err := filepath.Glob(filepath.Join(dir, "changeagent-clone-*"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("working copies left behind: %v", left)
	}
}

// noPushGit clones for real and fails the test if anything is committed.
type noPushGit struct {
	*clonemanager.Manager
	t *testing.T
}

func (g noPushGit) CommitAndPush(context.Context, *clonemanager.Lease, clonemanager.Commit, clonemanager.StepFunc) (*clonemanager.PushResult, error) {
	g.t.Error("CommitAndPush called")
	return nil, errors.New("unexpected push")
}

var sampleRepo = map[string]string{
	"README.md": "# demo\n\nA small demo.\n",
	"app.py":    "def main():\n    pass\n\ndef other():\n    pass\n",
}

func TestRunAddsDocstring(t *testing.T) {
	tmp := isolateTempDir(t)
	origin := initOrigin(t, sampleRepo)
	pub := &fakePublisher{}

	var traced *agenttrace.Trace
	o := newOrchestrator(newGit(t, origin), pub, scriptedModel(map[string]string{
		selection.CallName:   "The entry point lives here:\n\n```json\n{\"files\": [\"app.py\"]}\n```",
		patchoracle.CallName: `{"edits": [{"file": "app.py", "old_str": "def main():\n", "new_str": "def main():\n    \"\"\"Run the demo.\"\"\"\n"}]}`,
	}), WithTracer(agenttrace.ByCode(func(tr *agenttrace.Trace) { traced = tr })))

	phase, evs := runAndCollect(t, o, ChangeRequest{RepositoryURL: testURL, Prompt: "add a docstring to main"})
	if phase != Complete {
		t.Fatalf("phase = %s, wanted %s (events: %v)", phase, Complete, kinds(evs))
	}
	checkOrder(t, evs)

	if got, ok := evs[len(evs)-1].(events.Complete); !ok || got.PRURL != prURL {
		t.Errorf("terminal event = %#v, wanted complete with %s", evs[len(evs)-1], prURL)
	}

	var reads, edits []string
	for _, ev := range evs {
		switch ev := ev.(type) {
		case events.ToolRead:
			reads = append(reads, ev.FilePath)
		case events.ToolEdit:
			edits = append(edits, ev.FilePath)
			if ev.OldStr != "def main():\n" || !strings.Contains(ev.NewStr, "Run the demo.") {
				t.Errorf("edit = %#v, wanted the docstring replacement", ev)
			}
		}
	}
	if diff := cmp.Diff([]string{"app.py"}, reads); diff != "" {
		t.Errorf("reads (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"app.py"}, edits); diff != "" {
		t.Errorf("edits (-want +got):\n%s", diff)
	}

	if len(pub.opened) != 1 {
		t.Fatalf("opened %d pull requests, wanted 1", len(pub.opened))
	}
	req := pub.opened[0]
	if req.Base != "main" {
		t.Errorf("Base = %q, wanted main", req.Base)
	}
	if want := clonemanager.DefaultBranchPrefix + "/add-a-docstring-to-main-1700000000"; req.Head != want {
		t.Errorf("Head = %q, wanted %q", req.Head, want)
	}
	if diff := cmp.Diff([]changemanager.Edit{{Path: "app.py", Op: "edited", Added: 1}}, req.Edits); diff != "" {
		t.Errorf("Edits (-want +got):\n%s", diff)
	}

	wantCommands := []string{
		"git checkout -b " + req.Head,
		"git add .",
		"git commit -m 'Automated changes: add a docstring to main'",
		"git push origin " + req.Head,
		"gh pr create --base main --head " + req.Head,
	}
	if diff := cmp.Diff(wantCommands, bashCommands(evs)); diff != "" {
		t.Errorf("commands (-want +got):\n%s", diff)
	}

	if got := originFile(t, origin, req.Head, "app.py"); !strings.HasPrefix(got, "def main():\n    \"\"\"Run the demo.\"\"\"\n    pass\n") {
		t.Errorf("pushed app.py = %q, wanted the docstring", got)
	}
	if got := originFile(t, origin, "main", "app.py"); got != sampleRepo["app.py"] {
		t.Errorf("main was modified: %q", got)
	}

	if traced == nil {
		t.Fatal("trace was not recorded")
	}
	if traced.Outcome != string(Complete) || traced.Result != prURL {
		t.Errorf("trace outcome = %q result = %q", traced.Outcome, traced.Result)
	}
	if len(traced.Phases) != 8 {
		t.Errorf("trace has %d phases, wanted 8", len(traced.Phases))
	}
	checkNoWorkingCopies(t, tmp)
}

func TestRunCreatesFile(t *testing.T) {
	// Nothing in the repository is text, so the catalog is empty.
	origin := initOrigin(t, map[string]string{"logo.png": "\x89PNG\r\n\x1a\n"})
	pub := &fakePublisher{}
	o := newOrchestrator(newGit(t, origin), pub, scriptedModel(map[string]string{
		selection.CallName:   "NO_FILES",
		patchoracle.CallName: "```json\n[{\"file\": \"hello.py\", \"new_str\": \"print(\\\"hello, world\\\")\\n\", \"create\": true}]\n```",
	}))

	phase, evs := runAndCollect(t, o, ChangeRequest{RepositoryURL: testURL, Prompt: "create a hello-world script"})
	if phase != Complete {
		t.Fatalf("phase = %s, wanted %s (events: %v)", phase, Complete, kinds(evs))
	}
	checkOrder(t, evs)

	for _, ev := range evs {
		if ev.Kind() == events.KindToolRead {
			t.Errorf("unexpected read event %#v", ev)
		}
	}
	if len(pub.opened) != 1 {
		t.Fatalf("opened %d pull requests, wanted 1", len(pub.opened))
	}
	if got := pub.opened[0].Edits; len(got) != 1 || got[0].Op != "created" {
		t.Errorf("Edits = %+v, wanted one created file", got)
	}
	if got := originFile(t, origin, pub.opened[0].Head, "hello.py"); got != "print(\"hello, world\")\n" {
		t.Errorf("pushed hello.py = %q", got)
	}
}

func TestRunAmbiguousEditFails(t *testing.T) {
	tmp := isolateTempDir(t)
	origin := initOrigin(t, sampleRepo)
	pub := &fakePublisher{}
	o := newOrchestrator(newGit(t, origin), pub, scriptedModel(map[string]string{
		selection.CallName:   `["app.py"]`,
		patchoracle.CallName: `{"edits": [{"file": "app.py", "old_str": "    pass\n", "new_str": "    return 0\n"}]}`,
	}))

	phase, evs := runAndCollect(t, o, ChangeRequest{RepositoryURL: testURL, Prompt: "Return zero"})
	if phase != Failed {
		t.Fatalf("phase = %s, wanted %s", phase, Failed)
	}
	checkOrder(t, evs)

	msg := terminalError(t, evs)
	if !strings.Contains(msg, "app.py") {
		t.Errorf("error message = %q, wanted it to name app.py", msg)
	}
	for _, ev := range evs {
		switch ev.Kind() {
		case events.KindToolEdit, events.KindToolBash:
			t.Errorf("unexpected %s event after a conflict", ev.Kind())
		}
	}
	if len(pub.opened) != 0 {
		t.Errorf("opened %d pull requests, wanted none", len(pub.opened))
	}
	if diff := cmp.Diff([]string{"main"}, originBranches(t, origin)); diff != "" {
		t.Errorf("origin branches (-want +got):\n%s", diff)
	}
	if got := originFile(t, origin, "main", "app.py"); got != sampleRepo["app.py"] {
		t.Errorf("app.py changed on main: %q", got)
	}
	checkNoWorkingCopies(t, tmp)
}

func TestRunNoChanges(t *testing.T) {
	tmp := isolateTempDir(t)
	origin := initOrigin(t, sampleRepo)
	pub := &fakePublisher{}
	g := noPushGit{Manager: newGit(t, origin), t: t}
	o := newOrchestrator(g, pub, scriptedModel(map[string]string{
		selection.CallName:   `{"files": ["app.py"]}`,
		patchoracle.CallName: `{"edits": []}`,
	}))

	phase, evs := runAndCollect(t, o, ChangeRequest{RepositoryURL: testURL, Prompt: "leave everything as it is"})
	if phase != Failed {
		t.Fatalf("phase = %s, wanted %s (events: %v)", phase, Failed, kinds(evs))
	}
	checkOrder(t, evs)

	var errs int
	for _, ev := range evs {
		switch ev.Kind() {
		case events.KindError:
			errs++
		case events.KindToolEdit, events.KindToolBash:
			t.Errorf("unexpected %s event without changes", ev.Kind())
		}
	}
	if errs != 1 {
		t.Errorf("got %d error events, wanted 1", errs)
	}
	if msg := terminalError(t, evs); !strings.Contains(msg, "no changes") {
		t.Errorf("error message = %q, wanted it to mention no changes", msg)
	}
	if len(pub.opened) != 0 {
		t.Errorf("opened %d pull requests, wanted none", len(pub.opened))
	}
	if diff := cmp.Diff([]string{"main"}, originBranches(t, origin)); diff != "" {
		t.Errorf("origin branches (-want +got):\n%s", diff)
	}
	checkNoWorkingCopies(t, tmp)
}

func TestRunPushRetry(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		want     Phase
	}{{
		name:     "one transient failure",
		failures: 1,
		want:     Complete,
	}, {
		name:     "two transient failures",
		failures: 2,
		want:     Failed,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origin := initOrigin(t, sampleRepo)
			pub := &fakePublisher{}

			var calls atomic.Int32
			push := func(ctx context.Context, repo *git.Repository, opts *git.PushOptions) error {
				if int(calls.Add(1)) <= tt.failures {
					return fmt.Errorf("write: %w", syscall.ECONNRESET)
				}
				return clonemanager.DefaultPush(ctx, repo, opts)
			}

			o := newOrchestrator(newGit(t, origin, clonemanager.WithPushFunc(push)), pub, scriptedModel(map[string]string{
				selection.CallName:   `{"files": ["README.md"]}`,
				patchoracle.CallName: `[{"file": "README.md", "old_str": "# demo", "new_str": "# Demo"}]`,
			}))

			phase, evs := runAndCollect(t, o, ChangeRequest{RepositoryURL: testURL, Prompt: "Capitalize the title"})
			if phase != tt.want {
				t.Fatalf("phase = %s, wanted %s", phase, tt.want)
			}
			checkOrder(t, evs)
			if got := int(calls.Load()); got != min(tt.failures+1, 2) {
				t.Errorf("push attempts = %d", got)
			}

			if tt.want == Complete {
				if len(pub.opened) != 1 {
					t.Errorf("opened %d pull requests, wanted 1", len(pub.opened))
				}
				return
			}
			if msg := terminalError(t, evs); !strings.Contains(msg, "push") {
				t.Errorf("error message = %q, wanted a push failure", msg)
			}
			if len(pub.opened) != 0 {
				t.Errorf("opened %d pull requests, wanted none", len(pub.opened))
			}
		})
	}
}

func TestRunEarlyFailures(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		pub     *fakePublisher
		opts    []Option
		wantMsg string
	}{{
		name:    "missing credentials",
		url:     testURL,
		pub:     &fakePublisher{},
		opts:    []Option{WithCredentials(Credentials{{Name: "GITHUB_TOKEN", Value: "t"}, {Name: "ANTHROPIC_API_KEY"}})},
		wantMsg: "ANTHROPIC_API_KEY",
	}, {
		name:    "not github",
		url:     "https://gitlab.com/owner/repo",
		pub:     &fakePublisher{},
		wantMsg: "gitlab.com",
	}, {
		name:    "private repository",
		url:     testURL,
		pub:     &fakePublisher{inspectErr: &errdefs.AccessError{URL: testURL, Reason: "repository is private"}},
		wantMsg: "private",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := executor.CompleterFunc(func(context.Context, executor.Request) (*executor.Completion, error) {
				t.Error("model called")
				return nil, errors.New("unexpected")
			})
			o := newOrchestrator(nil, tt.pub, model, tt.opts...)

			phase, evs := runAndCollect(t, o, ChangeRequest{RepositoryURL: tt.url, Prompt: "anything"})
			if phase != Failed {
				t.Fatalf("phase = %s, wanted %s", phase, Failed)
			}
			if len(evs) < 1 {
				t.Fatal("no events")
			}
			checkOrder(t, evs)
			if msg := terminalError(t, evs); !strings.Contains(msg, tt.wantMsg) {
				t.Errorf("error message = %q, wanted it to contain %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestRunModelTimeout(t *testing.T) {
	origin := initOrigin(t, sampleRepo)
	o := newOrchestrator(newGit(t, origin), &fakePublisher{}, blockingModel(),
		WithTimeouts(Timeouts{Model: 20 * time.Millisecond}))

	phase, evs := runAndCollect(t, o, ChangeRequest{RepositoryURL: testURL, Prompt: "anything"})
	if phase != Failed {
		t.Fatalf("phase = %s, wanted %s", phase, Failed)
	}
	if msg := terminalError(t, evs); !strings.Contains(msg, "selection") || !strings.Contains(msg, "timed out") {
		t.Errorf("error message = %q, wanted a selection timeout", msg)
	}
}

func TestRunDetachCancels(t *testing.T) {
	tmp := isolateTempDir(t)
	origin := initOrigin(t, sampleRepo)
	o := newOrchestrator(newGit(t, origin), &fakePublisher{}, blockingModel())

	stream := events.NewStream(events.DefaultBuffer)
	done := make(chan Phase, 1)
	go func() {
		done <- o.Run(context.Background(), ChangeRequest{RepositoryURL: testURL, Prompt: "anything"}, stream)
	}()

	for ev := range stream.Events() {
		if m, ok := ev.(events.AIMessage); ok && strings.HasPrefix(m.Message, "Determining") {
			stream.Detach()
			break
		}
	}

	select {
	case phase := <-done:
		if phase != Cancelled {
			t.Errorf("phase = %s, wanted %s", phase, Cancelled)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop after detach")
	}

	for ev := range stream.Events() {
		if ev.Terminal() {
			t.Errorf("terminal event %s delivered after detach", ev.Kind())
		}
	}
	if diff := cmp.Diff([]string{"main"}, originBranches(t, origin)); diff != "" {
		t.Errorf("origin branches (-want +got):\n%s", diff)
	}
	checkNoWorkingCopies(t, tmp)
}

func TestCredentialsValidate(t *testing.T) {
	if err := (Credentials{{Name: "A", Value: "x"}}).Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	err := (Credentials{{Name: "A"}, {Name: "B", Value: "x"}, {Name: "C"}}).Validate()
	var cfgErr *errdefs.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Validate() = %v, wanted *errdefs.ConfigurationError", err)
	}
	if diff := cmp.Diff([]string{"A", "C"}, cfgErr.Missing); diff != "" {
		t.Errorf("Missing (-want +got):\n%s", diff)
	}
}

func TestSummarize(t *testing.T) {
	plan := patch.Plan{
		patch.ReplaceText{Path: "a.go", OldText: "x", NewText: "y"},
		patch.CreateFile{Path: "new.md", Content: "z"},
		patch.ReplaceText{Path: "a.go", OldText: "y", NewText: "w"},
		patch.CreateFile{Path: "old.md", Content: "v", Overwrite: true},
	}
	got := summarize(plan, []clonemanager.FileStat{
		{Path: "a.go", Added: 2, Removed: 1},
		{Path: "new.md", Added: 3},
	})
	want := []changemanager.Edit{
		{Path: "a.go", Op: "edited", Added: 2, Removed: 1},
		{Path: "new.md", Op: "created", Added: 3},
		{Path: "old.md", Op: "rewritten"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summarize (-want +got):\n%s", diff)
	}
}
