/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package selection asks the model which catalog files a change request needs.
package selection

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/changeagent/agents/executor"
	"chainguard.dev/changeagent/agents/result"
	"chainguard.dev/changeagent/agents/schema"
	"chainguard.dev/changeagent/pipeline/catalog"
	"chainguard.dev/changeagent/pipeline/errdefs"
)

const (
	// MaxSelection bounds the number of selected files.
	MaxSelection = 20

	// NoFilesMarker is the reply meaning no existing file is needed.
	NoFilesMarker = "NO_FILES"

	// CallName identifies the selection call in metrics and traces.
	CallName = "selection"
)

// Reply is the structured answer the model is asked for.
type Reply struct {
	Files []string `json:"files" jsonschema:"required,description=Repository-relative paths taken verbatim from the file list"`

	// NoFiles is set when the reply carried the explicit marker.
	NoFiles bool `json:"-"`
}

// Result is the validated selection. An empty Paths means no file needs to
// be read and the change will only create files.
type Result struct {
	Paths []string
	// Dropped lists reply paths that were not in the catalog.
	Dropped []string
	// Layer is the parsing layer that understood the reply.
	Layer result.Layer
}

// Empty reports whether nothing was selected.
func (r Result) Empty() bool { return len(r.Paths) == 0 }

// Oracle performs the selection call.
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

type catalogFile struct {
	Path string `yaml:"path"`
	Size int64  `yaml:"size"`
}

// Request renders the model request for prompt over cat.
func Request(prompt string, cat *catalog.Catalog) (executor.Request, error) {
	system, err := systemInstructions.BindJSON("schema", schema.ReflectType[Reply]())
	if err != nil {
		return executor.Request{}, err
	}
	systemText, err := system.Build()
	if err != nil {
		return executor.Request{}, err
	}

	files := make([]catalogFile, 0, cat.Len())
	if cat != nil {
		for _, e := range cat.Entries {
			files = append(files, catalogFile{Path: e.Path, Size: e.SizeBytes})
		}
	}
	var catalogBinding any = files
	if len(files) == 0 {
		catalogBinding = "(the repository has no text files)"
	}

	user, err := userPrompt.BindYAML("catalog", catalogBinding)
	if err != nil {
		return executor.Request{}, err
	}
	if user, err = user.BindXML("request", changeRequest{Text: prompt}); err != nil {
		return executor.Request{}, err
	}
	userText, err := user.Build()
	if err != nil {
		return executor.Request{}, err
	}

	return executor.Request{Call: CallName, System: systemText, Prompt: userText}, nil
}

// Select asks the model once and validates its answer against cat.
func (o *Oracle) Select(ctx context.Context, prompt string, cat *catalog.Catalog) (Result, error) {
	log := clog.FromContext(ctx)

	req, err := Request(prompt, cat)
	if err != nil {
		return Result{}, fmt.Errorf("building selection prompt: %w", err)
	}
	completion, err := o.completer.Complete(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("selection model call: %w", err)
	}

	reply, layer, err := parser.Parse(ctx, completion.Text)
	if err != nil {
		return Result{}, &errdefs.SelectionParseError{Err: err}
	}

	res := Filter(ctx, reply, cat)
	res.Layer = layer
	log.Info("Files selected", "selected", len(res.Paths), "dropped", len(res.Dropped), "layer", layer, "no_files", reply.NoFiles)
	return res, nil
}

// Filter keeps the reply paths that are in cat, in catalog order, without
// duplicates, and at most MaxSelection of them.
func Filter(ctx context.Context, reply Reply, cat *catalog.Catalog) Result {
	log := clog.FromContext(ctx)
	var res Result
	if reply.NoFiles {
		return res
	}

	seen := map[string]bool{}
	for _, raw := range reply.Files {
		p := normalize(raw)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if !cat.Contains(p) {
			log.Warn("Dropping selected path not in catalog", "path", raw)
			res.Dropped = append(res.Dropped, raw)
			continue
		}
		res.Paths = append(res.Paths, p)
	}

	slices.SortStableFunc(res.Paths, func(a, b string) int {
		return cat.Index(a) - cat.Index(b)
	})
	if len(res.Paths) > MaxSelection {
		log.Warn("Truncating selection", "selected", len(res.Paths), "max", MaxSelection)
		res.Paths = res.Paths[:MaxSelection]
	}
	return res
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, "`'\"")
	p = strings.TrimPrefix(p, "./")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

var parser = result.Parser[Reply]{
	Decode:  decodeReply,
	Pattern: patternReply,
}

var errWrongShape = errors.New(`expected {"files": [...]} or a JSON array of paths`)

func decodeReply(b []byte) (Reply, error) {
	trimmed := bytes.TrimSpace(b)
	if string(trimmed) == NoFilesMarker {
		return Reply{NoFiles: true}, nil
	}
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var files []string
		if err := json.Unmarshal(trimmed, &files); err != nil {
			return Reply{}, err
		}
		return Reply{Files: files, NoFiles: len(files) == 0}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return Reply{}, err
	}
	raw, ok := obj["files"]
	if !ok {
		return Reply{}, errWrongShape
	}
	var files []string
	if err := json.Unmarshal(raw, &files); err != nil {
		return Reply{}, fmt.Errorf("files: %w", err)
	}
	return Reply{Files: files, NoFiles: len(files) == 0}, nil
}

var (
	noFilesRE = regexp.MustCompile(`\b` + NoFilesMarker + `\b`)
	// A path-like token in a list item, backticks or quotes.
	listedPathRE = regexp.MustCompile("(?m)^\\s*(?:[-*+]|\\d+[.)])\\s+`?([\\w.@+-]+(?:/[\\w.@+-]+)*)`?\\s*$")
	quotedPathRE = regexp.MustCompile("[`\"']([\\w.@+-]+(?:/[\\w.@+-]+)*)[`\"']")
)

func patternReply(text string) (Reply, bool) {
	if noFilesRE.MatchString(text) {
		return Reply{NoFiles: true}, true
	}
	var files []string
	for _, re := range []*regexp.Regexp{listedPathRE, quotedPathRE} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if looksLikePath(m[1]) {
				files = append(files, m[1])
			}
		}
	}
	if len(files) == 0 {
		return Reply{}, false
	}
	return Reply{Files: files}, true
}

func looksLikePath(s string) bool {
	return strings.ContainsAny(s, "./") && !strings.HasSuffix(s, ".")
}
