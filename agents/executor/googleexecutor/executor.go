/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package googleexecutor

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/changeagent/agents/agenttrace"
	"chainguard.dev/changeagent/agents/executor"
	"chainguard.dev/changeagent/agents/metrics"
	"github.com/chainguard-dev/clog"
	"google.golang.org/genai"
)

// DefaultModel is used when WithModel is not given.
const DefaultModel = "gemini-2.5-pro"

// Executor completes requests with Gemini.
type Executor struct {
	client          *genai.Client
	model           string
	temperature     float32
	maxOutputTokens int32
	genaiMetrics    *metrics.GenAI
}

var _ executor.Completer = (*Executor)(nil)

// New creates a new Gemini executor with the given configuration
func New(client *genai.Client, options ...Option) (*Executor, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}

	e := &Executor{
		client:          client,
		model:           DefaultModel,
		temperature:     0.1,
		maxOutputTokens: 8192,
		genaiMetrics:    metrics.NewGenAI(metrics.MeterName),
	}
	for _, opt := range options {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return e, nil
}

// Complete implements executor.Completer.
func (e *Executor) Complete(ctx context.Context, req executor.Request) (_ *executor.Completion, err error) {
	log := clog.FromContext(ctx).With("model", e.model, "call", req.Call)
	defer func() {
		e.genaiMetrics.RecordCall(ctx, e.model, req.Call, err)
	}()

	config := &genai.GenerateContentConfig{
		Temperature:     &e.temperature,
		MaxOutputTokens: e.maxOutputTokens,
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	log.With("prompt_length", len(req.Prompt)).Info("Calling Gemini")

	response, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Gemini content: %w", err)
	}

	var in, out int64
	if response.UsageMetadata != nil {
		in = int64(response.UsageMetadata.PromptTokenCount)
		out = int64(response.UsageMetadata.CandidatesTokenCount)
		e.genaiMetrics.RecordTokens(ctx, e.model, req.Call, in, out)
		agenttrace.FromContext(ctx).RecordModelCall(req.Call, e.model, in, out)
	}

	text := response.Text()
	if text == "" {
		return nil, errors.New("no content in Gemini's response")
	}

	log.With("output_tokens", out).Info("Gemini call completed")

	return &executor.Completion{
		Text:         text,
		Model:        e.model,
		InputTokens:  in,
		OutputTokens: out,
	}, nil
}
