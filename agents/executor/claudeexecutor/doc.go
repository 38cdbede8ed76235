/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package claudeexecutor implements executor.Completer on the Anthropic
// Messages API.
//
// The executor streams the reply and accumulates it into a single message, so
// long completions do not hit the non-streaming request timeout. Token usage is
// recorded both as OpenTelemetry metrics and on the in-flight agenttrace.Trace.
//
// # Basic Usage
//
//	client := anthropic.NewClient(option.WithAPIKey(key))
//
//	exec, err := claudeexecutor.New(client,
//	    claudeexecutor.WithModel("claude-sonnet-4-5"),
//	    claudeexecutor.WithMaxTokens(8192),
//	)
//	if err != nil {
//	    return err
//	}
//
//	completion, err := exec.Complete(ctx, executor.Request{
//	    Call:   "selection",
//	    System: "You select files.",
//	    Prompt: prompt,
//	})
//
// # Retries
//
// Complete makes exactly one request. Build the client with
// option.WithMaxRetries(0) so the SDK does not retry behind it either; a
// failed call fails the change request.
package claudeexecutor
