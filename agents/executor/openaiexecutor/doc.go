/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openaiexecutor implements executor.Completer on the OpenAI Chat
// Completions API.
package openaiexecutor
