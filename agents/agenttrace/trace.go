/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "chainguard.dev/changeagent/agenttrace"

func tracer() oteltrace.Tracer {
	return otel.Tracer(instrumentationName, oteltrace.WithInstrumentationVersion("1.0.0"))
}

// ModelCall records a single model invocation within a trace
type ModelCall struct {
	Call         string    `json:"call"`
	Model        string    `json:"model"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	Time         time.Time `json:"time"`
}

// Phase represents a single pipeline phase within a trace
type Phase struct {
	Name      string    `json:"name"`
	Error     error     `json:"error,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	trace     *Trace
	mu        sync.Mutex
	span      oteltrace.Span
}

// Trace represents one change request from prompt to pull request
type Trace struct {
	ID          string           `json:"id"`
	InputPrompt string           `json:"input_prompt"`
	ExecContext ExecutionContext `json:"exec_context,omitempty"`
	Phases      []*Phase         `json:"phases"`
	ModelCalls  []ModelCall      `json:"model_calls"`
	Outcome     string           `json:"outcome"`
	Result      string           `json:"result,omitempty"`
	Error       error            `json:"error,omitempty"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     time.Time        `json:"end_time"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	tracer      Tracer
	mu          sync.Mutex
	ctx         context.Context
	span        oteltrace.Span
}

func newTraceWithTracer(ctx context.Context, t Tracer, prompt string, withSpan bool) *Trace {
	execCtx := GetExecutionContext(ctx)

	id := execCtx.RequestID
	if id == "" {
		id = uuid.New().String()
	}

	trace := &Trace{
		ID:          id,
		InputPrompt: prompt,
		ExecContext: execCtx,
		Phases:      []*Phase{},
		StartTime:   time.Now(),
		Metadata:    make(map[string]any),
		tracer:      t,
		ctx:         ctx,
	}
	if !withSpan {
		return trace
	}

	attrs := []attribute.KeyValue{
		attribute.String("request.id", id),
		attribute.String("agent.prompt", prompt),
	}
	if execCtx.Repository != "" {
		attrs = append(attrs, attribute.String("repository", execCtx.Repository))
	}
	trace.ctx, trace.span = tracer().Start(ctx, "changeagent.run", oteltrace.WithAttributes(attrs...))
	return trace
}

// Context returns the context carrying the run span, or nil for a nil trace.
func (t *Trace) Context() context.Context {
	if t == nil {
		return nil
	}
	return t.ctx
}

// StartPhase opens a phase; Complete must be called on the returned value.
func (t *Trace) StartPhase(name string) *Phase {
	if t == nil {
		return nil
	}
	p := &Phase{
		Name:      name,
		StartTime: time.Now(),
		trace:     t,
	}
	if t.span != nil {
		_, p.span = tracer().Start(t.ctx, "changeagent.phase", oteltrace.WithAttributes(
			attribute.String("phase", name),
		))
	}
	return p
}

// Complete closes the phase and attaches it to its trace.
func (p *Phase) Complete(err error) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.Error = err
	p.EndTime = time.Now()
	span := p.span
	p.mu.Unlock()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	p.trace.mu.Lock()
	defer p.trace.mu.Unlock()
	p.trace.Phases = append(p.trace.Phases, p)
}

// Duration returns the duration of the phase
func (p *Phase) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.EndTime.IsZero() {
		return time.Since(p.StartTime)
	}
	return p.EndTime.Sub(p.StartTime)
}

// RecordModelCall records model and token usage on the trace and its span.
func (t *Trace) RecordModelCall(call, model string, inputTokens, outputTokens int64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ModelCalls = append(t.ModelCalls, ModelCall{
		Call:         call,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Time:         time.Now(),
	})

	if t.span != nil {
		t.span.AddEvent("model.call", oteltrace.WithAttributes(
			attribute.String("call", call),
			attribute.String("model", model),
			attribute.Int64("tokens.input", inputTokens),
			attribute.Int64("tokens.output", outputTokens),
			attribute.Int64("tokens.total", inputTokens+outputTokens),
		))
	}
}

// Complete marks the trace as finished and hands it to its tracer.
// outcome is the terminal state name; result is the PR URL on success.
func (t *Trace) Complete(outcome, result string, err error) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.Outcome = outcome
	t.Result = result
	t.Error = err
	t.EndTime = time.Now()
	tr := t.tracer
	span := t.span
	t.mu.Unlock()

	if span != nil {
		span.SetAttributes(attribute.String("outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	if tr != nil {
		tr.RecordTrace(t)
	}
}

// Duration returns the total duration of the trace
func (t *Trace) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.EndTime.IsZero() {
		return time.Since(t.StartTime)
	}
	return t.EndTime.Sub(t.StartTime)
}

// String returns a structured representation of the trace
func (t *Trace) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sb strings.Builder

	var duration time.Duration
	if t.EndTime.IsZero() {
		duration = time.Since(t.StartTime)
	} else {
		duration = t.EndTime.Sub(t.StartTime)
	}

	fmt.Fprintf(&sb, "=== Trace %s ===\n", t.ID)
	if t.ExecContext.Repository != "" {
		fmt.Fprintf(&sb, "Repository: %s\n", t.ExecContext.Repository)
	}
	fmt.Fprintf(&sb, "Prompt: %q\n", t.InputPrompt)
	fmt.Fprintf(&sb, "Duration: %v\n", duration)

	if len(t.Phases) > 0 {
		fmt.Fprintf(&sb, "\nPhases (%d):\n", len(t.Phases))
		for i, p := range t.Phases {
			// Inline duration to avoid taking the phase lock under the trace lock.
			d := p.EndTime.Sub(p.StartTime)
			fmt.Fprintf(&sb, "  [%d] %s (%v)\n", i+1, p.Name, d)
			if p.Error != nil {
				fmt.Fprintf(&sb, "      Error: %v\n", p.Error)
			}
		}
	}

	if len(t.ModelCalls) > 0 {
		fmt.Fprintf(&sb, "\nModel Calls (%d):\n", len(t.ModelCalls))
		for i, mc := range t.ModelCalls {
			fmt.Fprintf(&sb, "  [%d] %s via %s: %d in / %d out\n", i+1, mc.Call, mc.Model, mc.InputTokens, mc.OutputTokens)
		}
	}

	fmt.Fprintf(&sb, "\nOutcome: %s\n", t.Outcome)
	switch {
	case t.Error != nil:
		fmt.Fprintf(&sb, "  Error: %v\n", t.Error)
	case t.Result != "":
		fmt.Fprintf(&sb, "  Result: %s\n", t.Result)
	}

	if len(t.Metadata) > 0 {
		sb.WriteString("\nMetadata:\n")
		for k, v := range t.Metadata {
			fmt.Fprintf(&sb, "  %s: %v\n", k, v)
		}
	}

	return sb.String()
}
