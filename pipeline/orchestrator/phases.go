/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/changeagent/pipeline/catalog"
	"chainguard.dev/changeagent/pipeline/events"
	"chainguard.dev/changeagent/pipeline/patch"
	"chainguard.dev/changeagent/repository/changemanager"
	"chainguard.dev/changeagent/repository/clonemanager"
)

func (r *run) fetch(ctx context.Context) error {
	if err := r.say(ctx, "Cloning repository %s...", r.ref); err != nil {
		return err
	}

	if err := withTimeout(ctx, "inspect", r.o.timeouts.Publish, func(ctx context.Context) (err error) {
		r.info, err = r.o.publisher.Inspect(ctx, r.ref)
		return err
	}); err != nil {
		return err
	}

	if err := withTimeout(ctx, "clone", r.o.timeouts.Fetch, func(ctx context.Context) (err error) {
		r.lease, err = r.o.git.Clone(ctx, r.ref, r.info.DefaultBranch)
		return err
	}); err != nil {
		return err
	}

	clog.FromContext(ctx).Infof("Cloned %s at %s into %s", r.ref, r.lease.SHA(), r.lease.WorkingTree())
	return r.say(ctx, "Repository cloned successfully")
}

func (r *run) buildCatalog(ctx context.Context) error {
	if err := r.say(ctx, "Analyzing repository structure..."); err != nil {
		return err
	}
	cat, err := catalog.Build(ctx, r.lease.WorkingTree())
	if err != nil {
		return err
	}
	r.catalog = cat
	return r.say(ctx, "Found %d files", cat.Len())
}

func (r *run) selectFiles(ctx context.Context) error {
	if err := r.say(ctx, "Determining which files to modify..."); err != nil {
		return err
	}
	if err := withTimeout(ctx, "selection", r.o.timeouts.Model, func(ctx context.Context) (err error) {
		r.selected, err = r.o.selector.Select(ctx, r.req.Prompt, r.catalog)
		return err
	}); err != nil {
		return err
	}

	if r.selected.Empty() {
		return r.say(ctx, "No existing files need changes; new files will be created")
	}
	return r.say(ctx, "Selected %d files to modify", len(r.selected.Paths))
}

func (r *run) readFiles(ctx context.Context) error {
	reads, err := catalog.Read(ctx, r.lease.WorkingTree(), r.selected.Paths)
	if err != nil {
		return err
	}
	r.reads = reads
	for _, s := range reads {
		if err := r.emit(ctx, events.ToolRead{FilePath: s.Path}); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) generate(ctx context.Context) error {
	if err := r.say(ctx, "Generating code changes..."); err != nil {
		return err
	}
	if err := withTimeout(ctx, "patch", r.o.timeouts.Model, func(ctx context.Context) (err error) {
		r.plan, err = r.o.planner.Plan(ctx, r.req.Prompt, r.reads)
		return err
	}); err != nil {
		return err
	}
	return r.say(ctx, "Applying %d changes...", len(r.plan))
}

func (r *run) apply(ctx context.Context) error {
	return patch.Apply(ctx, r.lease.WorkingTree(), r.plan, func(ctx context.Context, op patch.EditOperation) error {
		ev := events.ToolEdit{FilePath: op.FilePath()}
		switch op := op.(type) {
		case patch.ReplaceText:
			ev.OldStr, ev.NewStr = op.OldText, op.NewText
		case patch.CreateFile:
			ev.OldStr, ev.NewStr = r.snapshot(op.Path), op.Content
		}
		if err := r.emit(ctx, ev); err != nil {
			return err
		}
		r.o.metrics.RecordEdit(ctx, op.Op())
		return nil
	})
}

// snapshot returns the read content of p, or "" when p was not read.
func (r *run) snapshot(p string) string {
	for _, s := range r.reads {
		if s.Path == p {
			return s.Content
		}
	}
	return ""
}

func (r *run) commit(ctx context.Context) error {
	subject, body := clonemanager.CommitMessage(r.req.Prompt)
	c := clonemanager.Commit{
		Branch:  clonemanager.BranchName(r.o.branchPrefix, r.req.Prompt, r.o.now()),
		Subject: subject,
		Body:    body,
	}

	return withTimeout(ctx, "push", r.o.timeouts.Push, func(ctx context.Context) (err error) {
		r.pushed, err = r.o.git.CommitAndPush(ctx, r.lease, c, func(ctx context.Context, command, output string) error {
			return r.emit(ctx, events.ToolBash{Command: command, Output: output})
		})
		return err
	})
}

func (r *run) publish(ctx context.Context) error {
	req := changemanager.Request{
		Ref:    r.ref,
		Head:   r.pushed.Branch,
		Base:   r.pushed.Base,
		Prompt: r.req.Prompt,
		Edits:  summarize(r.plan, r.pushed.Stats),
	}

	var pr *changemanager.PullRequest
	if err := withTimeout(ctx, "publish", r.o.timeouts.Publish, func(ctx context.Context) (err error) {
		pr, err = r.o.publisher.Open(ctx, req)
		return err
	}); err != nil {
		return err
	}
	r.prURL = pr.URL

	return r.emit(ctx, events.ToolBash{
		Command: fmt.Sprintf("gh pr create --base %s --head %s", req.Base, req.Head),
		Output:  pr.URL,
	})
}

// summarize lists each planned file once, in plan order, with the line
// counts of the pushed commit.
func summarize(plan patch.Plan, stats []clonemanager.FileStat) []changemanager.Edit {
	byPath := make(map[string]clonemanager.FileStat, len(stats))
	for _, s := range stats {
		byPath[s.Path] = s
	}

	seen := make(map[string]bool, len(plan))
	edits := make([]changemanager.Edit, 0, len(plan))
	for _, op := range plan {
		p := op.FilePath()
		if seen[p] {
			continue
		}
		seen[p] = true

		e := changemanager.Edit{Path: p, Op: "edited"}
		if c, ok := op.(patch.CreateFile); ok {
			e.Op = "created"
			if c.Overwrite {
				e.Op = "rewritten"
			}
		}
		if s, ok := byPath[p]; ok {
			e.Added, e.Removed = s.Added, s.Removed
		}
		edits = append(edits, e)
	}
	return edits
}
