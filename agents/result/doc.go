/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package result extracts structured values from free-form model replies.

Model replies are supposed to be JSON, but in practice they arrive wrapped in
prose, inside markdown code fences, truncated, or as a loose list. Parser
applies a fixed sequence of layers and stops at the first that succeeds:

 1. Strict: the whole reply, trimmed, decodes as the target type.
 2. Fragment: a fenced code block (found with goldmark) or the first balanced
    {...} / [...] fragment of the reply decodes as the target type.
 3. Pattern: a caller-supplied narrow extractor, typically regex based.

Only when every layer fails is a *ParseError returned; it lists each layer's
failure so callers can log why a reply was rejected.

# Usage

	type reply struct {
		Files []string `json:"files"`
	}

	p := result.Parser[reply]{
		Pattern: func(text string) (reply, bool) {
			paths := pathPattern.FindAllString(text, -1)
			return reply{Files: paths}, len(paths) > 0
		},
	}
	r, layer, err := p.Parse(ctx, modelReply)

Extract is shorthand for a Parser with no pattern layer.
*/
package result
