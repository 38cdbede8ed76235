/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package patch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"chainguard.dev/changeagent/pipeline/errdefs"
)

func setup(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return root
}

func readFile(t *testing.T, root, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", name, err)
	}
	return string(b)
}

func TestReplaceTextOccurrences(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantErr     bool
		occurrences int
		want        string
	}{{
		name:        "absent",
		content:     "def main():\n    pass\n",
		wantErr:     true,
		occurrences: 0,
	}, {
		name:    "exactly once",
		content: "def main():\n    print('x')\n",
		want:    "def main():\n    print('y')\n",
	}, {
		name:        "twice",
		content:     "print('x')\nprint('x')\n",
		wantErr:     true,
		occurrences: 2,
	}, {
		name:        "three times",
		content:     "print('x')print('x')print('x')",
		wantErr:     true,
		occurrences: 3,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := setup(t, map[string]string{"app.py": tt.content})
			plan := Plan{ReplaceText{Path: "app.py", OldText: "print('x')", NewText: "print('y')"}}

			err := Apply(context.Background(), root, plan, nil)
			if tt.wantErr {
				var conflict *errdefs.PatchConflictError
				if !errors.As(err, &conflict) {
					t.Fatalf("Apply() = %v, wanted PatchConflictError", err)
				}
				if conflict.Occurrences != tt.occurrences {
					t.Errorf("Occurrences = %d, wanted = %d", conflict.Occurrences, tt.occurrences)
				}
				if got := readFile(t, root, "app.py"); got != tt.content {
					t.Errorf("file modified after conflict: %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if got := readFile(t, root, "app.py"); got != tt.want {
				t.Errorf("content = %q, wanted = %q", got, tt.want)
			}
		})
	}
}

func TestEditsCompose(t *testing.T) {
	root := setup(t, map[string]string{"app.py": "a = 1\nb = 2\n"})
	plan := Plan{
		ReplaceText{Path: "app.py", OldText: "a = 1", NewText: "a = 10"},
		// The second edit targets text produced by the first.
		ReplaceText{Path: "app.py", OldText: "a = 10\nb", NewText: "a = 10\nc"},
		CreateFile{Path: "pkg/new/hello.py", Content: "print('hello')\n"},
	}
	if err := Apply(context.Background(), root, plan, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, want := readFile(t, root, "app.py"), "a = 10\nc = 2\n"; got != want {
		t.Errorf("app.py = %q, wanted = %q", got, want)
	}
	if got, want := readFile(t, root, "pkg/new/hello.py"), "print('hello')\n"; got != want {
		t.Errorf("hello.py = %q, wanted = %q", got, want)
	}
}

func TestConflictLeavesEveryFileUntouched(t *testing.T) {
	root := setup(t, map[string]string{
		"a.txt": "alpha\n",
		"b.txt": "dup dup\n",
	})
	plan := Plan{
		ReplaceText{Path: "a.txt", OldText: "alpha", NewText: "ALPHA"},
		CreateFile{Path: "c.txt", Content: "new\n"},
		ReplaceText{Path: "b.txt", OldText: "dup", NewText: "one"},
	}
	var called int
	err := Apply(context.Background(), root, plan, func(context.Context, EditOperation) error {
		called++
		return nil
	})
	if err == nil {
		t.Fatal("Apply() = nil, wanted conflict")
	}
	if called != 0 {
		t.Errorf("AppliedFunc called %d times before validation finished", called)
	}
	if got := readFile(t, root, "a.txt"); got != "alpha\n" {
		t.Errorf("a.txt = %q, wanted unchanged", got)
	}
	if _, err := os.Stat(filepath.Join(root, "c.txt")); !os.IsNotExist(err) {
		t.Errorf("c.txt exists after conflict: %v", err)
	}
}

func TestCreateFile(t *testing.T) {
	root := setup(t, map[string]string{"exists.txt": "old\n"})

	err := Apply(context.Background(), root, Plan{CreateFile{Path: "exists.txt", Content: "new\n"}}, nil)
	var conflict *errdefs.PatchConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Apply() = %v, wanted PatchConflictError", err)
	}
	if !strings.Contains(conflict.Error(), "already exists") {
		t.Errorf("Error() = %q", conflict.Error())
	}

	if err := Apply(context.Background(), root, Plan{CreateFile{Path: "exists.txt", Content: "new\n", Overwrite: true}}, nil); err != nil {
		t.Fatalf("Apply with overwrite: %v", err)
	}
	if got := readFile(t, root, "exists.txt"); got != "new\n" {
		t.Errorf("exists.txt = %q, wanted overwritten", got)
	}
}

func TestReplaceMissingFile(t *testing.T) {
	root := setup(t, nil)
	err := Apply(context.Background(), root, Plan{ReplaceText{Path: "nope.py", OldText: "x", NewText: "y"}}, nil)
	var conflict *errdefs.PatchConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Apply() = %v, wanted PatchConflictError", err)
	}
}

func TestRejectedPaths(t *testing.T) {
	for _, p := range []string{"", "../escape.txt", "/etc/passwd", ".git/config", "a/../../b"} {
		t.Run(p, func(t *testing.T) {
			root := setup(t, nil)
			err := Apply(context.Background(), root, Plan{CreateFile{Path: p, Content: "x"}}, nil)
			var conflict *errdefs.PatchConflictError
			if !errors.As(err, &conflict) {
				t.Errorf("Apply(%q) = %v, wanted PatchConflictError", p, err)
			}
			if _, ok := CleanPath(p); ok {
				t.Errorf("CleanPath(%q) ok = true", p)
			}
		})
	}
	if got, ok := CleanPath("./src/main.go"); !ok || got != "src/main.go" {
		t.Errorf("CleanPath(./src/main.go) = %q, %v", got, ok)
	}
}

func TestSymlinkedTargetsRejected(t *testing.T) {
	tests := []struct {
		name string
		op   EditOperation
	}{{
		name: "symlinked directory",
		op:   CreateFile{Path: "docs/evil.txt", Content: "owned"},
	}, {
		name: "dangling file symlink",
		op:   CreateFile{Path: "notes.txt", Content: "owned", Overwrite: true},
	}, {
		name: "replace through symlinked directory",
		op:   ReplaceText{Path: "docs/real.txt", OldText: "outside", NewText: "owned"},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := setup(t, nil)
			outside := setup(t, map[string]string{"real.txt": "outside\n"})
			if err := os.Symlink(outside, filepath.Join(root, "docs")); err != nil {
				t.Fatalf("Symlink: %v", err)
			}
			if err := os.Symlink(filepath.Join(outside, "dangling.txt"), filepath.Join(root, "notes.txt")); err != nil {
				t.Fatalf("Symlink: %v", err)
			}

			err := Apply(context.Background(), root, Plan{tt.op}, nil)
			var conflict *errdefs.PatchConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("Apply() = %v, wanted PatchConflictError", err)
			}
			if conflict.Reason != "path traverses a symlink" {
				t.Errorf("Reason = %q", conflict.Reason)
			}

			entries, err := os.ReadDir(outside)
			if err != nil {
				t.Fatalf("ReadDir: %v", err)
			}
			var names []string
			for _, e := range entries {
				names = append(names, e.Name())
			}
			if diff := cmp.Diff([]string{"real.txt"}, names); diff != "" {
				t.Errorf("outside directory changed (-want +got):\n%s", diff)
			}
			if got := readFile(t, outside, "real.txt"); got != "outside\n" {
				t.Errorf("real.txt = %q", got)
			}
		})
	}
}

func TestAppliedFuncOrderAndAbort(t *testing.T) {
	root := setup(t, map[string]string{"app.py": "x = 1\n"})
	plan := Plan{
		ReplaceText{Path: "app.py", OldText: "x = 1", NewText: "x = 2"},
		CreateFile{Path: "b.py", Content: "b\n"},
	}

	var got []string
	stop := errors.New("consumer went away")
	err := Apply(context.Background(), root, plan, func(_ context.Context, op EditOperation) error {
		got = append(got, op.Op()+":"+op.FilePath())
		if len(got) == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("Apply() = %v, wanted %v", err, stop)
	}
	if diff := cmp.Diff([]string{"replace:app.py", "create:b.py"}, got); diff != "" {
		t.Errorf("callback order (-want +got):\n%s", diff)
	}
	if got := readFile(t, root, "app.py"); got != "x = 1\n" {
		t.Errorf("app.py written despite abort: %q", got)
	}
}

func TestApplyIsDeterministic(t *testing.T) {
	initial := map[string]string{"app.py": "def main():\n    pass\n", "README.md": "# r\n"}
	plan := Plan{
		ReplaceText{Path: "app.py", OldText: "def main():\n", NewText: "def main():\n    \"\"\"Entry point.\"\"\"\n"},
		CreateFile{Path: "docs/usage.md", Content: "usage\n"},
	}

	snapshot := func() map[string]string {
		root := setup(t, initial)
		if err := Apply(context.Background(), root, plan, nil); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		return map[string]string{
			"app.py":        readFile(t, root, "app.py"),
			"README.md":     readFile(t, root, "README.md"),
			"docs/usage.md": readFile(t, root, "docs/usage.md"),
		}
	}
	if diff := cmp.Diff(snapshot(), snapshot()); diff != "" {
		t.Errorf("two applications differ (-first +second):\n%s", diff)
	}
}
