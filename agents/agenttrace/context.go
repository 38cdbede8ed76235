/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// ExecutionContext provides request-level context for a pipeline run.
// It is used to enrich metrics and spans for a single change request.
type ExecutionContext struct {
	RequestID  string `json:"request_id,omitempty"` // Unique per change request
	Repository string `json:"repository,omitempty"` // "owner/name"
	Provider   string `json:"provider,omitempty"`   // Model provider serving the run
}

// EnrichAttributes adds execution context attributes to the provided base attributes.
//
// Note: request_id is NOT included in metrics to prevent unbounded cardinality.
// It remains on the trace and in logs.
func (e ExecutionContext) EnrichAttributes(baseAttrs []attribute.KeyValue) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(baseAttrs), len(baseAttrs)+2)
	copy(attrs, baseAttrs)

	if e.Repository != "" {
		attrs = append(attrs, attribute.String("repository", e.Repository))
	}
	if e.Provider != "" {
		attrs = append(attrs, attribute.String("provider", e.Provider))
	}
	return attrs
}

type contextKey string

const (
	executionContextKey contextKey = "execution_context"
	traceKey            contextKey = "trace"
)

// WithExecutionContext adds execution context to the Go context
func WithExecutionContext(ctx context.Context, execCtx ExecutionContext) context.Context {
	return context.WithValue(ctx, executionContextKey, execCtx)
}

// GetExecutionContext retrieves execution context from the Go context
func GetExecutionContext(ctx context.Context) ExecutionContext {
	if execCtx, ok := ctx.Value(executionContextKey).(ExecutionContext); ok {
		return execCtx
	}
	return ExecutionContext{}
}

// WithTrace attaches the in-flight trace so that model executors can record
// their calls on it.
func WithTrace(ctx context.Context, trace *Trace) context.Context {
	return context.WithValue(ctx, traceKey, trace)
}

// FromContext returns the in-flight trace, or nil. All Trace methods accept a
// nil receiver.
func FromContext(ctx context.Context) *Trace {
	trace, _ := ctx.Value(traceKey).(*Trace)
	return trace
}
