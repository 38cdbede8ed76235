/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestByCode(t *testing.T) {
	ctx := context.Background()
	var captured *Trace

	tracer := ByCode(func(trace *Trace) {
		captured = trace
	})

	trace := tracer.NewTrace(ctx, "Fix the typo in README.md")
	ctx = WithTrace(trace.Context(), trace)

	phase := trace.StartPhase("generating")
	FromContext(ctx).RecordModelCall("patch", "gpt-4o", 500, 60)
	phase.Complete(nil)
	trace.Complete("complete", "https://github.com/octo/hello/pull/7", nil)

	if captured == nil {
		t.Fatal("callback invocation: got = nil, wanted = trace")
	}
	if captured != trace {
		t.Errorf("captured trace: got = %v, wanted = %v", captured, trace)
	}
	if len(captured.ModelCalls) != 1 {
		t.Errorf("model calls: got = %d, wanted = 1", len(captured.ModelCalls))
	}
	if captured.Result != "https://github.com/octo/hello/pull/7" {
		t.Errorf("result: got = %q", captured.Result)
	}
}

func TestByCodeMultipleCallbacks(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var seen []string

	cb := func(trace *Trace) {
		calls.Add(1)
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, trace.Outcome)
	}
	tracer := ByCode(cb, nil, cb)

	trace := tracer.NewTrace(context.Background(), "prompt")
	trace.Complete("cancelled", "", nil)

	if got := calls.Load(); got != 2 {
		t.Errorf("callbacks: got = %d, wanted = 2", got)
	}
	for _, s := range seen {
		if s != "cancelled" {
			t.Errorf("outcome: got = %q, wanted = cancelled", s)
		}
	}
}
