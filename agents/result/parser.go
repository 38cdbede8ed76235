/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
)

// Layer names a parsing strategy.
type Layer string

const (
	LayerStrict   Layer = "strict"
	LayerFragment Layer = "fragment"
	LayerPattern  Layer = "pattern"
)

// errNoCandidate is recorded for a layer that found nothing to try.
var errNoCandidate = errors.New("no candidate found")

// Attempt records why one layer failed.
type Attempt struct {
	Layer Layer
	Err   error
}

// ParseError is returned when every layer failed.
type ParseError struct {
	Attempts []Attempt
}

func (e *ParseError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Layer, a.Err))
	}
	return "unparseable reply (" + strings.Join(parts, "; ") + ")"
}

// Parser decodes a model reply into T through the strict, fragment and
// pattern layers.
type Parser[T any] struct {
	// Decode turns one JSON candidate into T. It defaults to json.Unmarshal;
	// callers override it to reject well-formed JSON of the wrong shape.
	Decode func([]byte) (T, error)
	// Pattern is the last-resort extractor. A nil Pattern disables the layer.
	Pattern func(text string) (T, bool)
}

func (p Parser[T]) decode(b []byte) (T, error) {
	if p.Decode != nil {
		return p.Decode(b)
	}
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}

// Parse runs the layers in order and reports which one succeeded.
func (p Parser[T]) Parse(ctx context.Context, reply string) (T, Layer, error) {
	log := clog.FromContext(ctx)
	var zero T
	perr := &ParseError{}

	trimmed := strings.TrimSpace(reply)
	v, err := p.decode([]byte(trimmed))
	if err == nil {
		log.Debug("Reply parsed", "layer", LayerStrict)
		return v, LayerStrict, nil
	}
	perr.Attempts = append(perr.Attempts, Attempt{Layer: LayerStrict, Err: err})
	log.Debug("Strict parse failed", "error", err)

	v, err = p.fragment(trimmed)
	if err == nil {
		log.Warn("Reply was not strict JSON, recovered a fragment", "layer", LayerFragment)
		return v, LayerFragment, nil
	}
	perr.Attempts = append(perr.Attempts, Attempt{Layer: LayerFragment, Err: err})
	log.Debug("Fragment parse failed", "error", err)

	if p.Pattern == nil {
		return zero, "", perr
	}
	if v, ok := p.Pattern(trimmed); ok {
		log.Warn("Reply recovered by pattern extraction", "layer", LayerPattern)
		return v, LayerPattern, nil
	}
	perr.Attempts = append(perr.Attempts, Attempt{Layer: LayerPattern, Err: errNoCandidate})
	log.Warn("All reply parsing layers failed", "error", perr)
	return zero, "", perr
}

// fragment tries fenced blocks first, then bare bracketed fragments.
func (p Parser[T]) fragment(reply string) (T, error) {
	var zero T
	seen := map[string]bool{}
	var candidates []string
	add := func(c string) {
		c = strings.TrimSpace(c)
		if c != "" && !seen[c] {
			seen[c] = true
			candidates = append(candidates, c)
		}
	}
	for _, b := range FencedBlocks(reply) {
		add(b.Content)
		// A fenced block may itself mix prose and JSON.
		for _, f := range Fragments(b.Content) {
			add(f)
		}
	}
	for _, f := range Fragments(reply) {
		add(f)
	}
	if len(candidates) == 0 {
		return zero, errNoCandidate
	}

	var lastErr error
	for _, c := range candidates {
		v, err := p.decode([]byte(c))
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return zero, fmt.Errorf("%d candidates, none decoded: %w", len(candidates), lastErr)
}

// Extract decodes T from reply using the strict and fragment layers.
func Extract[T any](reply string) (T, error) {
	v, _, err := Parser[T]{}.Parse(context.Background(), reply)
	return v, err
}
