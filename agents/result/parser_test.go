/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fileList struct {
	Files []string `json:"files"`
}

// decodeFileList rejects JSON without a "files" key.
func decodeFileList(b []byte) (fileList, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fileList{}, err
	}
	if _, ok := raw["files"]; !ok {
		return fileList{}, errors.New(`missing "files"`)
	}
	var fl fileList
	err := json.Unmarshal(b, &fl)
	return fl, err
}

var backticked = regexp.MustCompile("`([^`\\s]+\\.[a-z]+)`")

func fileListParser() Parser[fileList] {
	return Parser[fileList]{
		Decode: decodeFileList,
		Pattern: func(text string) (fileList, bool) {
			var fl fileList
			for _, m := range backticked.FindAllStringSubmatch(text, -1) {
				fl.Files = append(fl.Files, m[1])
			}
			return fl, len(fl.Files) > 0
		},
	}
}

func TestParserLayers(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      fileList
		wantLayer Layer
		wantErr   bool
	}{{
		name:      "strict",
		input:     `  {"files": ["README.md", "app.py"]}  `,
		want:      fileList{Files: []string{"README.md", "app.py"}},
		wantLayer: LayerStrict,
	}, {
		name:      "strict empty",
		input:     `{"files": []}`,
		want:      fileList{Files: []string{}},
		wantLayer: LayerStrict,
	}, {
		name:      "json fence with prose",
		input:     "Here you go:\n\n```json\n{\"files\": [\"app.py\"]}\n```\n\nLet me know.",
		want:      fileList{Files: []string{"app.py"}},
		wantLayer: LayerFragment,
	}, {
		name:      "untagged fence",
		input:     "```\n{\"files\": [\"main.go\"]}\n```",
		want:      fileList{Files: []string{"main.go"}},
		wantLayer: LayerFragment,
	}, {
		name:      "bare fragment in prose",
		input:     `I think {"files": ["a/b.go"]} is what you need.`,
		want:      fileList{Files: []string{"a/b.go"}},
		wantLayer: LayerFragment,
	}, {
		name:      "skips wrong-shaped fragment",
		input:     `Note {"reason": "x"} then {"files": ["x.go"]}`,
		want:      fileList{Files: []string{"x.go"}},
		wantLayer: LayerFragment,
	}, {
		name:      "braces inside strings",
		input:     `prefix {"files": ["weird}name.txt"]} suffix`,
		want:      fileList{Files: []string{"weird}name.txt"}},
		wantLayer: LayerFragment,
	}, {
		name:      "pattern fallback",
		input:     "You should look at `app.py` and `lib/util.py`.",
		want:      fileList{Files: []string{"app.py", "lib/util.py"}},
		wantLayer: LayerPattern,
	}, {
		name:    "nothing usable",
		input:   "I cannot help with that.",
		wantErr: true,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, layer, err := fileListParser().Parse(context.Background(), tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Fatalf("Parse() error = %T, wanted *ParseError", err)
				}
				if len(perr.Attempts) != 3 {
					t.Errorf("attempts: got = %d, wanted = 3", len(perr.Attempts))
				}
				return
			}
			if layer != tt.wantLayer {
				t.Errorf("layer: got = %q, wanted = %q", layer, tt.wantLayer)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParserWithoutPattern(t *testing.T) {
	_, _, err := Parser[fileList]{Decode: decodeFileList}.Parse(context.Background(), "`app.py`")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Parse() error = %v, wanted *ParseError", err)
	}
	if len(perr.Attempts) != 2 {
		t.Errorf("attempts: got = %d, wanted = 2", len(perr.Attempts))
	}
}

func TestFragments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{{
		name:  "none",
		input: "plain text",
	}, {
		name:  "object and array",
		input: `a {"x": 1} b [1, 2] c`,
		want:  []string{`{"x": 1}`, `[1, 2]`},
	}, {
		name:  "nested is one fragment",
		input: `{"a": {"b": [1]}}`,
		want:  []string{`{"a": {"b": [1]}}`},
	}, {
		name:  "truncated outer keeps complete inner",
		input: `{"edits": [{"file": "a"}, {"file": "b"}, {"file": "c`,
		want:  []string{`{"file": "a"}`, `{"file": "b"}`},
	}, {
		name:  "escaped quote",
		input: `{"s": "a\"}b"}`,
		want:  []string{`{"s": "a\"}b"}`},
	}, {
		name:  "mismatched",
		input: `{"a": 1]`,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Fragments(tt.input)); diff != "" {
				t.Errorf("Fragments() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFencedBlocks(t *testing.T) {
	input := "Intro\n\n```JSON\n{\"a\": 1}\n```\n\ntext\n\n```python\nprint('x')\n```\n"
	want := []CodeBlock{
		{Lang: "json", Content: "{\"a\": 1}\n"},
		{Lang: "python", Content: "print('x')\n"},
	}
	if diff := cmp.Diff(want, FencedBlocks(input)); diff != "" {
		t.Errorf("FencedBlocks() mismatch (-want +got):\n%s", diff)
	}
}
