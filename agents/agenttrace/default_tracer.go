/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"

	"github.com/chainguard-dev/clog"
)

// NewDefaultTracer creates a tracer that logs completed runs to clog
func NewDefaultTracer(ctx context.Context) Tracer {
	logger := clog.FromContext(ctx)

	return ByCode(func(trace *Trace) {
		logger.With(
			"trace_id", trace.ID,
			"outcome", trace.Outcome,
			"duration_ms", trace.Duration().Milliseconds(),
			"phases", len(trace.Phases),
			"model_calls", len(trace.ModelCalls),
		).Info("Change request trace completed", "trace", trace.String())
	})
}
