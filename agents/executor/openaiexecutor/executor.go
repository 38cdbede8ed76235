/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openaiexecutor

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/changeagent/agents/agenttrace"
	"chainguard.dev/changeagent/agents/executor"
	"chainguard.dev/changeagent/agents/metrics"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
)

// DefaultModel is used when WithModel is not given.
const DefaultModel = "gpt-4o"

// Executor completes requests with an OpenAI chat model.
type Executor struct {
	client       openai.Client
	model        string
	maxTokens    int64
	temperature  float64
	genaiMetrics *metrics.GenAI
}

var _ executor.Completer = (*Executor)(nil)

// Option is a functional option for configuring the executor
type Option func(*Executor) error

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(e *Executor) error {
		if model == "" {
			return errors.New("model cannot be empty")
		}
		e.model = model
		return nil
	}
}

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(tokens int64) Option {
	return func(e *Executor) error {
		if tokens <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", tokens)
		}
		e.maxTokens = tokens
		return nil
	}
}

// WithTemperature sets the sampling temperature (0.0 to 2.0).
func WithTemperature(temp float64) Option {
	return func(e *Executor) error {
		if temp < 0.0 || temp > 2.0 {
			return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", temp)
		}
		e.temperature = temp
		return nil
	}
}

// WithMetrics replaces the GenAI instruments.
func WithMetrics(m *metrics.GenAI) Option {
	return func(e *Executor) error {
		if m == nil {
			return errors.New("metrics cannot be nil")
		}
		e.genaiMetrics = m
		return nil
	}
}

// New creates an executor on the given client.
func New(client openai.Client, opts ...Option) (*Executor, error) {
	e := &Executor{
		client:       client,
		model:        DefaultModel,
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
	log := clog.FromContext(ctx).With("model", e.model, "call", req.Call)
	defer func() {
		e.genaiMetrics.RecordCall(ctx, e.model, req.Call, err)
	}()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(e.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(e.maxTokens),
		Temperature:         openai.Float(e.temperature),
	}

	log.With("prompt_length", len(req.Prompt)).Info("Calling OpenAI")

	completion, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI completion: %w", err)
	}

	in, out := completion.Usage.PromptTokens, completion.Usage.CompletionTokens
	if in > 0 || out > 0 {
		e.genaiMetrics.RecordTokens(ctx, e.model, req.Call, in, out)
		agenttrace.FromContext(ctx).RecordModelCall(req.Call, e.model, in, out)
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, errors.New("no content in OpenAI's response")
	}

	log.With("finish_reason", completion.Choices[0].FinishReason).
		With("output_tokens", out).
		Info("OpenAI call completed")

	return &executor.Completion{
		Text:         completion.Choices[0].Message.Content,
		Model:        e.model,
		InputTokens:  in,
		OutputTokens: out,
	}, nil
}
