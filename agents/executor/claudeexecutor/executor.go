/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudeexecutor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/changeagent/agents/agenttrace"
	"chainguard.dev/changeagent/agents/executor"
	"chainguard.dev/changeagent/agents/metrics"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
)

// DefaultModel is used when WithModel is not given.
const DefaultModel = "claude-sonnet-4-5"

// Executor completes requests with Claude.
type Executor struct {
	client       anthropic.Client
	modelName    string
	maxTokens    int64
	temperature  float64
	genaiMetrics *metrics.GenAI
}

var _ executor.Completer = (*Executor)(nil)

// New creates a new Executor with minimal required configuration
func New(client anthropic.Client, opts ...Option) (*Executor, error) {
	e := &Executor{
		client:       client,
		modelName:    DefaultModel,
		maxTokens:    8192,
		temperature:  0.1,
		genaiMetrics: metrics.NewGenAI(metrics.MeterName),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return e, nil
}

// Complete implements executor.Completer.
func (e *Executor) Complete(ctx context.Context, req executor.Request) (_ *executor.Completion, err error) {
	log := clog.FromContext(ctx).With("model", e.modelName, "call", req.Call)
	defer func() {
		e.genaiMetrics.RecordCall(ctx, e.modelName, req.Call, err)
	}()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.modelName),
		MaxTokens: e.maxTokens,
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(req.Prompt),
			},
		}},
	}
	params.Temperature = anthropic.Float(e.temperature)
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	log.With("prompt_length", len(req.Prompt)).Info("Calling Claude")

	message, err := e.stream(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to stream Claude response: %w", err)
	}

	if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
		e.genaiMetrics.RecordTokens(ctx, e.modelName, req.Call, message.Usage.InputTokens, message.Usage.OutputTokens)
		agenttrace.FromContext(ctx).RecordModelCall(req.Call, e.modelName, message.Usage.InputTokens, message.Usage.OutputTokens)
	}

	var text strings.Builder
	for _, content := range message.Content {
		if content.Type == "text" {
			text.WriteString(content.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errors.New("no content in Claude's response")
	}

	log.With("stop_reason", string(message.StopReason)).
		With("output_tokens", message.Usage.OutputTokens).
		Info("Claude call completed")

	return &executor.Completion{
		Text:         text.String(),
		Model:        e.modelName,
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}, nil
}

// stream sends params and accumulates the streamed reply into one message.
func (e *Executor) stream(ctx context.Context, params anthropic.MessageNewParams) (anthropic.Message, error) {
	stream := e.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var msg anthropic.Message
	for stream.Next() {
		if err := msg.Accumulate(stream.Current()); err != nil {
			return msg, fmt.Errorf("failed to accumulate event: %w", err)
		}
	}
	return msg, stream.Err()
}
