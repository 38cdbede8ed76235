/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package agenttrace provides tracing infrastructure for change-request runs.

# Overview

This package contains the foundational types for tracking a pipeline run:

  - ExecutionContext: request-level metadata (request ID, repository) for trace and metric enrichment
  - Trace: one run from prompt to pull request, with its phases and model calls
  - Phase: a single pipeline phase within a trace
  - Tracer: interface for creating and recording traces

Tracing is optional. A nil Tracer, or one taken from a context that carries
none, behaves as Noop: traces are still returned so callers need no nil checks,
but nothing is exported and no span is opened.

# Usage

	tracer := agenttrace.ByCode(func(trace *agenttrace.Trace) {
		log.Printf("run %s finished: %s", trace.ID, trace.Outcome)
	})

	trace := tracer.NewTrace(ctx, "Add a docstring to app.py")
	ctx = agenttrace.WithTrace(trace.Context(), trace)

	phase := trace.StartPhase("selecting")
	trace.RecordModelCall("selection", "claude-sonnet-4-5", 1200, 40)
	phase.Complete(nil)

	trace.Complete("complete", "https://github.com/o/r/pull/1", nil)
*/
package agenttrace
