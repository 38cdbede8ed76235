/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package patchoracle

import "chainguard.dev/changeagent/agents/promptbuilder"

var systemInstructions = promptbuilder.MustNewPrompt(`ROLE: Senior software engineer

TASK: Implement a change request as a list of exact text edits.

EDIT RULES:
- To change an existing file, set "file" to its path, "old_str" to a span of the
  current content and "new_str" to its replacement.
- "old_str" must be copied character for character, including indentation, and
  must occur exactly once in the file. Include surrounding lines to make it unique.
- Edits to the same file are applied in order; a later edit sees earlier results.
- To add a new file, set "create" to true, leave "old_str" empty and put the whole
  file in "new_str".
- To replace an existing file wholesale, set "create" and "overwrite" to true.
- Only touch files needed for the request. Keep the existing style.

OUTPUT:
Reply with a single JSON object matching this schema and nothing else:
{{schema}}`)

var userPrompt = promptbuilder.MustNewPrompt(`The change request is:

{{request}}

Current content of the relevant files:

{{files}}

Produce the edits.`)
