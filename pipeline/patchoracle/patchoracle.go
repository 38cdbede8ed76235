/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package patchoracle asks the model for the edits implementing a change
// request and resolves them into a patch plan.
package patchoracle

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/changeagent/agents/executor"
	"chainguard.dev/changeagent/agents/promptbuilder"
	"chainguard.dev/changeagent/agents/result"
	"chainguard.dev/changeagent/agents/schema"
	"chainguard.dev/changeagent/pipeline/catalog"
	"chainguard.dev/changeagent/pipeline/errdefs"
	"chainguard.dev/changeagent/pipeline/patch"
)

// CallName identifies the patch call in metrics and traces.
const CallName = "patch"

// Descriptor is one edit as the model describes it.
type Descriptor struct {
	File      string `json:"file" jsonschema:"required,description=Repository-relative path of the file to edit or create"`
	OldStr    string `json:"old_str,omitempty" jsonschema:"description=Exact text to replace. Empty when creating a file"`
	NewStr    string `json:"new_str" jsonschema:"required,description=Replacement text or the full content of a new file"`
	Create    bool   `json:"create,omitempty" jsonschema:"description=True when the file is new"`
	Overwrite bool   `json:"overwrite,omitempty" jsonschema:"description=True to replace an existing file wholesale"`
}

// Reply is the structured answer the model is asked for.
type Reply struct {
	Edits []Descriptor `json:"edits" jsonschema:"required"`
}

// Oracle performs the patch call.
type Oracle struct {
	completer executor.Completer
}

// New returns an Oracle backed by completer.
func New(completer executor.Completer) *Oracle {
	return &Oracle{completer: completer}
}

type changeRequest struct {
	XMLName xml.Name `xml:"change_request"`
	Text    string   `xml:",chardata"`
}

// planInput binds one change request into the user prompt.
type planInput struct {
	prompt    string
	snapshots []catalog.FileSnapshot
}

func (in planInput) Bind(p *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	files := make([]promptbuilder.File, 0, len(in.snapshots))
	for _, s := range in.snapshots {
		files = append(files, promptbuilder.File{Path: s.Path, Content: s.Content})
	}
	p, err := p.BindXML("request", changeRequest{Text: in.prompt})
	if err != nil {
		return nil, err
	}
	return p.BindFiles("files", files)
}

// Request renders the model request for prompt over the snapshots.
func Request(prompt string, snapshots []catalog.FileSnapshot) (executor.Request, error) {
	system, err := systemInstructions.BindJSON("schema", schema.ReflectType[Reply]())
	if err != nil {
		return executor.Request{}, err
	}
	systemText, err := system.Build()
	if err != nil {
		return executor.Request{}, err
	}

	userText, err := promptbuilder.Render(userPrompt, planInput{prompt: prompt, snapshots: snapshots})
	if err != nil {
		return executor.Request{}, err
	}
	return executor.Request{Call: CallName, System: systemText, Prompt: userText}, nil
}

// Plan asks the model once and resolves its edits. Zero usable edits is a
// *errdefs.NoChangesIdentifiedError.
func (o *Oracle) Plan(ctx context.Context, prompt string, snapshots []catalog.FileSnapshot) (patch.Plan, error) {
	log := clog.FromContext(ctx)

	req, err := Request(prompt, snapshots)
	if err != nil {
		return nil, fmt.Errorf("building patch prompt: %w", err)
	}
	completion, err := o.completer.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("patch model call: %w", err)
	}

	reply, layer, err := parser.Parse(ctx, completion.Text)
	if err != nil {
		log.Warn("Patch reply unparseable", "error", err)
		return nil, &errdefs.NoChangesIdentifiedError{Reason: "the model reply contained no usable edits"}
	}

	plan := Resolve(ctx, reply.Edits, snapshots)
	if len(plan) == 0 {
		return nil, &errdefs.NoChangesIdentifiedError{Reason: "the model proposed no applicable edits"}
	}
	log.Info("Patch plan resolved", "edits", len(plan), "proposed", len(reply.Edits), "layer", layer)
	return plan, nil
}

// Resolve maps each descriptor to exactly one edit operation. Paths are
// normalized before matching against the snapshots. Descriptors that are
// ambiguous are dropped with a warning:
//   - a known path with old_str becomes a text replacement;
//   - an unknown path, or create set, becomes a new file;
//   - a known path without old_str is only accepted with overwrite.
func Resolve(ctx context.Context, descs []Descriptor, snapshots []catalog.FileSnapshot) patch.Plan {
	log := clog.FromContext(ctx)
	known := make(map[string]bool, len(snapshots))
	for _, s := range snapshots {
		known[s.Path] = true
	}

	var plan patch.Plan
	for i, d := range descs {
		drop := func(reason string) {
			log.Warn("Dropping edit", "index", i, "file", d.File, "reason", reason)
		}
		file, ok := patch.CleanPath(d.File)
		if !ok {
			drop("invalid path")
			continue
		}
		switch {
		case d.Create && d.OldStr != "":
			drop("create with old_str")
		case d.Create || (!known[file] && d.OldStr == ""):
			if known[file] && !d.Overwrite {
				drop("create targets an existing file without overwrite")
				continue
			}
			plan = append(plan, patch.CreateFile{Path: file, Content: d.NewStr, Overwrite: d.Overwrite})
		case known[file] && d.OldStr != "":
			plan = append(plan, patch.ReplaceText{Path: file, OldText: d.OldStr, NewText: d.NewStr})
		case known[file] && d.Overwrite:
			plan = append(plan, patch.CreateFile{Path: file, Content: d.NewStr, Overwrite: true})
		case !known[file]:
			drop("replacement in a file that was not read")
		default:
			drop("replacement without old_str")
		}
	}
	return plan
}

var parser = result.Parser[Reply]{
	Decode:  decodeReply,
	Pattern: salvageDescriptors,
}

var errWrongShape = errors.New(`expected {"edits": [...]} or a JSON array of edits`)

func decodeReply(b []byte) (Reply, error) {
	trimmed := bytes.TrimSpace(b)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var edits []Descriptor
		if err := json.Unmarshal(trimmed, &edits); err != nil {
			return Reply{}, err
		}
		return Reply{Edits: edits}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return Reply{}, err
	}
	raw, ok := obj["edits"]
	if !ok {
		return Reply{}, errWrongShape
	}
	var edits []Descriptor
	if err := json.Unmarshal(raw, &edits); err != nil {
		return Reply{}, fmt.Errorf("edits: %w", err)
	}
	return Reply{Edits: edits}, nil
}

// salvageDescriptors recovers individual edit objects from a reply whose
// enclosing structure is broken or missing, e.g. a truncated array or a lone
// descriptor.
func salvageDescriptors(text string) (Reply, bool) {
	var reply Reply
	var visit func(s string)
	visit = func(s string) {
		for _, frag := range result.Fragments(s) {
			if len(frag) < 2 {
				continue
			}
			var d Descriptor
			if frag[0] == '{' && json.Unmarshal([]byte(frag), &d) == nil && d.File != "" {
				reply.Edits = append(reply.Edits, d)
				continue
			}
			// Look inside the brackets.
			visit(frag[1 : len(frag)-1])
		}
	}
	visit(text)
	return reply, len(reply.Edits) > 0
}
