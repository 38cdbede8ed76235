/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package executor defines the single-shot model call shared by every
// provider-specific executor.
package executor

import (
	"context"
)

// Request is one self-contained model invocation.
type Request struct {
	// Call names the pipeline step issuing the request ("selection", "patch").
	// It is used as a metric and trace dimension.
	Call string
	// System carries the system instructions, if any.
	System string
	// Prompt is the fully rendered user prompt.
	Prompt string
}

// Completion is the model's reply to a Request.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Completer performs a single model call. Implementations perform no
// conversation state; every call is independent.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (*Completion, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (*Completion, error) {
	return f(ctx, req)
}
