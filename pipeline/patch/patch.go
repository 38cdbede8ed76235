/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package patch applies a plan of exact-match edits to a working copy.
//
// The whole plan is validated and composed in memory before anything is
// written, so a conflicting edit leaves every file as it was. Edits to the
// same file compose in plan order.
package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/changeagent/pipeline/errdefs"
)

// EditOperation is one edit of a plan. The set of implementations is closed.
type EditOperation interface {
	// FilePath is the slash-separated path relative to the working copy root.
	FilePath() string
	// Op names the variant for logs and metrics.
	Op() string
	isEdit()
}

// ReplaceText replaces the single occurrence of OldText with NewText.
type ReplaceText struct {
	Path    string
	OldText string
	NewText string
}

// CreateFile writes a new file. Overwrite allows replacing an existing one.
type CreateFile struct {
	Path      string
	Content   string
	Overwrite bool
}

func (r ReplaceText) FilePath() string { return r.Path }
func (c CreateFile) FilePath() string  { return c.Path }

func (ReplaceText) Op() string { return "replace" }
func (CreateFile) Op() string  { return "create" }

func (ReplaceText) isEdit() {}
func (CreateFile) isEdit()  {}

// Plan is an ordered list of edits. Order is application order.
type Plan []EditOperation

// AppliedFunc is called for each edit, in plan order, once the whole plan
// has validated and before anything is written. An error stops Apply with
// nothing written.
type AppliedFunc func(ctx context.Context, op EditOperation) error

type fileState struct {
	content string
	exists  bool
	mode    fs.FileMode
}

// Apply validates plan against root and writes the result. Every read and
// write is confined to root; a path through a symbolic link is a conflict.
func Apply(ctx context.Context, root string, plan Plan, fn AppliedFunc) error {
	log := clog.FromContext(ctx)

	r, err := os.OpenRoot(root)
	if err != nil {
		return fmt.Errorf("opening working copy: %w", err)
	}
	defer r.Close()

	files := map[string]*fileState{}
	var order []string

	load := func(p string) (*fileState, error) {
		if st, ok := files[p]; ok {
			return st, nil
		}
		if err := checkNoSymlinks(r, p); err != nil {
			return nil, err
		}
		st := &fileState{mode: 0o644}
		full := filepath.FromSlash(p)
		info, err := r.Stat(full)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("stat %s: %w", p, err)
		case info.IsDir():
			return nil, &errdefs.PatchConflictError{Path: p, Reason: "path is a directory"}
		default:
			b, err := r.ReadFile(full)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", p, err)
			}
			st.content, st.exists, st.mode = string(b), true, info.Mode().Perm()
		}
		files[p] = st
		order = append(order, p)
		return st, nil
	}

	for _, op := range plan {
		p, err := cleanPath(op.FilePath())
		if err != nil {
			return err
		}
		st, err := load(p)
		if err != nil {
			return err
		}

		switch e := op.(type) {
		case ReplaceText:
			if !st.exists {
				return &errdefs.PatchConflictError{Path: p, Reason: "file does not exist"}
			}
			if e.OldText == "" {
				return &errdefs.PatchConflictError{Path: p, Reason: "replacement has empty target text"}
			}
			if n := strings.Count(st.content, e.OldText); n != 1 {
				return &errdefs.PatchConflictError{
					Path:        p,
					Occurrences: n,
					Reason:      fmt.Sprintf("target text found %d times, expected exactly once", n),
				}
			}
			st.content = strings.Replace(st.content, e.OldText, e.NewText, 1)

		case CreateFile:
			if st.exists && !e.Overwrite {
				return &errdefs.PatchConflictError{Path: p, Reason: "file already exists"}
			}
			st.content, st.exists = e.Content, true

		default:
			return fmt.Errorf("unknown edit operation %T", op)
		}
	}

	if fn != nil {
		for _, op := range plan {
			if err := fn(ctx, op); err != nil {
				return err
			}
		}
	}

	for _, p := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		st := files[p]
		full := filepath.FromSlash(p)
		if dir := filepath.Dir(full); dir != "." {
			if err := r.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating parent of %s: %w", p, err)
			}
		}
		if err := r.WriteFile(full, []byte(st.content), st.mode); err != nil {
			return fmt.Errorf("writing %s: %w", p, err)
		}
		log.Debug("Wrote file", "path", p, "bytes", len(st.content))
	}
	log.Info("Applied patch plan", "edits", len(plan), "files", len(order))
	return nil
}

// checkNoSymlinks rejects p when it, or any directory above it, is a
// symbolic link. Missing components are fine; they will be created.
func checkNoSymlinks(r *os.Root, p string) error {
	parts := strings.Split(p, "/")
	for i := range parts {
		sub := path.Join(parts[:i+1]...)
		info, err := r.Lstat(filepath.FromSlash(sub))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil
		case err != nil:
			return fmt.Errorf("stat %s: %w", sub, err)
		case info.Mode()&fs.ModeSymlink != 0:
			return &errdefs.PatchConflictError{Path: p, Reason: "path traverses a symlink"}
		}
	}
	return nil
}

// cleanPath normalizes p and rejects paths that leave the working copy or
// touch version-control metadata.
func cleanPath(p string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(filepath.ToSlash(p), "./"))
	if p == "" || !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", &errdefs.PatchConflictError{Path: p, Reason: "path escapes the working copy"}
	}
	if clean == ".git" || strings.HasPrefix(clean, ".git/") {
		return "", &errdefs.PatchConflictError{Path: p, Reason: "path is inside .git"}
	}
	return clean, nil
}

// CleanPath returns the normalized form of p, or false when p is not an
// acceptable edit target.
func CleanPath(p string) (string, bool) {
	clean, err := cleanPath(p)
	return clean, err == nil
}
