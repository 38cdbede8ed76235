/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package selection

import "chainguard.dev/changeagent/agents/promptbuilder"

var systemInstructions = promptbuilder.MustNewPrompt(`ROLE: Repository navigator

TASK: Choose the files a developer must read before implementing a change request.

RULES:
- Only choose paths that appear in the provided file list. Never invent paths.
- Choose at most 20 files, most relevant first.
- Prefer source files that will be edited over files that are merely related.
- If the request only needs new files and no existing file must be read, answer NO_FILES.

OUTPUT:
Reply with a single JSON object matching this schema and nothing else:
{{schema}}`)

var userPrompt = promptbuilder.MustNewPrompt(`The repository contains these files:

{{catalog}}

The change request is:

{{request}}

Which files should be read to implement it?`)
