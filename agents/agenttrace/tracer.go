/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Tracer is the interface for creating and managing traces
type Tracer interface {
	// NewTrace creates a new trace with the given prompt
	NewTrace(ctx context.Context, prompt string) *Trace
	// RecordTrace records a completed trace
	RecordTrace(trace *Trace)
}

// TraceCallback is a function that receives completed traces
type TraceCallback func(*Trace)

// byCodeTracer implements Tracer by invoking callback functions
type byCodeTracer struct {
	callbacks []TraceCallback
}

// ByCode creates a Tracer that invokes the given callbacks when traces are recorded.
// Traces created by it open OpenTelemetry spans.
func ByCode(callbacks ...TraceCallback) Tracer {
	return &byCodeTracer{
		callbacks: callbacks,
	}
}

func (t *byCodeTracer) NewTrace(ctx context.Context, prompt string) *Trace {
	return newTraceWithTracer(ctx, t, prompt, true)
}

// RecordTrace invokes all callbacks with the completed trace in parallel
func (t *byCodeTracer) RecordTrace(trace *Trace) {
	g := new(errgroup.Group)
	for _, callback := range t.callbacks {
		if callback != nil {
			g.Go(func() error {
				callback(trace)
				return nil
			})
		}
	}
	// Callbacks never fail.
	_ = g.Wait()
}

type noopTracer struct{}

// Noop returns a Tracer that records nothing and opens no spans.
func Noop() Tracer {
	return noopTracer{}
}

func (n noopTracer) NewTrace(ctx context.Context, prompt string) *Trace {
	return newTraceWithTracer(ctx, n, prompt, false)
}

func (noopTracer) RecordTrace(*Trace) {}
