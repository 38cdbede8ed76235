/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Pipeline provides OpenTelemetry metrics for change-request runs.
type Pipeline struct {
	runs          metric.Int64Counter
	phaseDuration metric.Float64Histogram
	edits         metric.Int64Counter
	attrEnricher  AttributeEnricher
}

// NewPipeline creates the run-level instruments on the named meter.
func NewPipeline(meterName string) *Pipeline {
	meter := otel.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))

	runs, err := meter.Int64Counter("changeagent.runs",
		metric.WithDescription("Change requests by terminal state and error kind"),
		metric.WithUnit("{runs}"))
	if err != nil {
		slog.Warn("Failed to create runs counter, metrics will be disabled", "error", err, "meter", meterName)
		runs = noop.Int64Counter{}
	}

	phaseDuration, err := meter.Float64Histogram("changeagent.phase.duration",
		metric.WithDescription("Time spent in each pipeline phase"),
		metric.WithUnit("s"))
	if err != nil {
		slog.Warn("Failed to create phase histogram, metrics will be disabled", "error", err, "meter", meterName)
		phaseDuration = noop.Float64Histogram{}
	}

	edits, err := meter.Int64Counter("changeagent.edits",
		metric.WithDescription("Edit operations applied, by operation"),
		metric.WithUnit("{edits}"))
	if err != nil {
		slog.Warn("Failed to create edits counter, metrics will be disabled", "error", err, "meter", meterName)
		edits = noop.Int64Counter{}
	}

	return &Pipeline{
		runs:          runs,
		phaseDuration: phaseDuration,
		edits:         edits,
	}
}

// SetAttributeEnricher sets the attribute enricher for this metrics instance.
func (p *Pipeline) SetAttributeEnricher(enricher AttributeEnricher) {
	p.attrEnricher = enricher
}

func (p *Pipeline) enrich(ctx context.Context, attrs []attribute.KeyValue) []attribute.KeyValue {
	if p.attrEnricher != nil {
		return p.attrEnricher(ctx, attrs)
	}
	return attrs
}

// RecordRun counts a finished run. errorKind is empty on success.
func (p *Pipeline) RecordRun(ctx context.Context, state, errorKind string) {
	attrs := p.enrich(ctx, []attribute.KeyValue{
		attribute.String("state", state),
		attribute.String("error_kind", errorKind),
	})
	p.runs.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPhase records how long a phase took and whether it failed.
func (p *Pipeline) RecordPhase(ctx context.Context, phase string, d time.Duration, failed bool) {
	attrs := p.enrich(ctx, []attribute.KeyValue{
		attribute.String("phase", phase),
		attribute.Bool("failed", failed),
	})
	p.phaseDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

// RecordEdit counts one applied edit operation.
func (p *Pipeline) RecordEdit(ctx context.Context, op string) {
	attrs := p.enrich(ctx, []attribute.KeyValue{attribute.String("operation", op)})
	p.edits.Add(ctx, 1, metric.WithAttributes(attrs...))
}
