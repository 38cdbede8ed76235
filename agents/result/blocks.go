/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is a fenced code block found in a markdown reply.
type CodeBlock struct {
	Lang    string
	Content string
}

// FencedBlocks returns the fenced code blocks of a markdown document in
// document order.
func FencedBlocks(markdown string) []CodeBlock {
	source := []byte(markdown)
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	var blocks []CodeBlock
	_ = ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var content bytes.Buffer
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			content.Write(line.Value(source))
		}
		blocks = append(blocks, CodeBlock{
			Lang:    strings.ToLower(strings.TrimSpace(string(fenced.Language(source)))),
			Content: content.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// Fragments returns every outermost balanced JSON-looking fragment ({...} or
// [...]) of s, in order of appearance. Brackets inside JSON strings are
// ignored. An opening bracket that never closes is skipped so that complete
// fragments nested inside a truncated one are still found.
func Fragments(s string) []string {
	var out []string
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		if end, ok := matchBracket(s, i); ok {
			out = append(out, s[i:end+1])
			i = end
		}
	}
	return out
}

// matchBracket returns the index closing the bracket opened at s[start].
func matchBracket(s string, start int) (int, bool) {
	var stack []byte
	inString, escaped := false, false
	for j := start; j < len(s); j++ {
		c := s[j]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return j, true
			}
		}
	}
	return 0, false
}
